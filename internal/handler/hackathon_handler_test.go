package handler_test

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/handler"
	"github.com/hackstage/hackstage-api/internal/service"
)

type mockHackathonService struct {
	lastFilter dto.HackathonFilter
	lastCreate dto.HackathonCreateRequest
	list       dto.HackathonListResponse
	single     dto.HackathonResponse
	err        error
}

func (m *mockHackathonService) List(_ context.Context, filter dto.HackathonFilter) (dto.HackathonListResponse, error) {
	m.lastFilter = filter
	if m.err != nil {
		return dto.HackathonListResponse{}, m.err
	}
	return m.list, nil
}

func (m *mockHackathonService) GetBySlug(_ context.Context, _ string) (dto.HackathonResponse, error) {
	if m.err != nil {
		return dto.HackathonResponse{}, m.err
	}
	return m.single, nil
}

func (m *mockHackathonService) Create(_ context.Context, payload dto.HackathonCreateRequest) (dto.HackathonResponse, error) {
	m.lastCreate = payload
	if m.err != nil {
		return dto.HackathonResponse{}, m.err
	}
	return m.single, nil
}

func (m *mockHackathonService) Update(_ context.Context, _ uint, _ dto.HackathonUpdateRequest) (dto.HackathonResponse, error) {
	if m.err != nil {
		return dto.HackathonResponse{}, m.err
	}
	return m.single, nil
}

func (m *mockHackathonService) UploadCover(_ context.Context, _ uint, _ *multipart.FileHeader) (dto.HackathonResponse, error) {
	if m.err != nil {
		return dto.HackathonResponse{}, m.err
	}
	return m.single, nil
}

func newHackathonApp(svc service.HackathonService) *fiber.App {
	app := fiber.New()
	h := handler.NewHackathonHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	h.Register(app.Group("/api/v1/hackathons"), allowAll)
	return app
}

func TestHackathonHandler_ListParsesFilter(t *testing.T) {
	svc := &mockHackathonService{list: dto.HackathonListResponse{
		Items: []dto.HackathonResponse{{ID: 1, Slug: "spring-jam", Title: "Spring Jam"}},
		Total: 1,
	}}
	app := newHackathonApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hackathons?status=open&page=2&limit=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                      `json:"success"`
		Data    dto.HackathonListResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Len(t, body.Data.Items, 1)

	require.NotNil(t, svc.lastFilter.Status)
	require.Equal(t, "open", *svc.lastFilter.Status)
	require.Equal(t, 2, svc.lastFilter.Page)
	require.Equal(t, 10, svc.lastFilter.Limit)
}

func TestHackathonHandler_ListInvalidPage(t *testing.T) {
	app := newHackathonApp(&mockHackathonService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hackathons?page=oops", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHackathonHandler_GetBySlugNotFound(t *testing.T) {
	app := newHackathonApp(&mockHackathonService{err: service.ErrHackathonNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hackathons/ghost", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHackathonHandler_CreateReturnsCreated(t *testing.T) {
	svc := &mockHackathonService{single: dto.HackathonResponse{ID: 7, Slug: "spring-jam"}}
	app := newHackathonApp(svc)

	payload := `{"slug":"spring-jam","title":"Spring Jam","starts_at":"2026-09-01T00:00:00Z","ends_at":"2026-09-03T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackathons", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "spring-jam", svc.lastCreate.Slug)
}

func TestHackathonHandler_CreateSlugConflict(t *testing.T) {
	app := newHackathonApp(&mockHackathonService{err: service.ErrSlugTaken})

	payload := `{"slug":"spring-jam","title":"Spring Jam","starts_at":"2026-09-01T00:00:00Z","ends_at":"2026-09-03T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackathons", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestHackathonHandler_UpdateInvalidID(t *testing.T) {
	app := newHackathonApp(&mockHackathonService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/hackathons/zero", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHackathonHandler_UploadCoverRequiresFile(t *testing.T) {
	app := newHackathonApp(&mockHackathonService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackathons/1/cover", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
