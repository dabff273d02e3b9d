package handler_test

import (
	"context"
	"io"
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

type mockSubmissionService struct {
	lastHackathonID uint
	lastID          string
	regenerated     []string
	single          dto.SubmissionResponse
	err             error
}

func (m *mockSubmissionService) ListByHackathon(_ context.Context, hackathonID uint) ([]dto.SubmissionResponse, error) {
	m.lastHackathonID = hackathonID
	if m.err != nil {
		return nil, m.err
	}
	return []dto.SubmissionResponse{m.single}, nil
}

func (m *mockSubmissionService) GetByID(_ context.Context, id string) (dto.SubmissionResponse, error) {
	m.lastID = id
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.single, nil
}

func (m *mockSubmissionService) Create(_ context.Context, hackathonID uint, _ dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	m.lastHackathonID = hackathonID
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.single, nil
}

func (m *mockSubmissionService) Delete(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

func (m *mockSubmissionService) Regenerate(_ context.Context, id string) error {
	m.regenerated = append(m.regenerated, id)
	return m.err
}

type mockScreenshotService struct {
	captured []string
	deleted  []uint
	shots    []dto.ScreenshotResponse
	err      error
}

func (m *mockScreenshotService) Capture(_ context.Context, submissionID string, _ dto.ScreenshotCaptureRequest) ([]dto.ScreenshotResponse, error) {
	m.captured = append(m.captured, submissionID)
	if m.err != nil {
		return nil, m.err
	}
	return m.shots, nil
}

func (m *mockScreenshotService) Delete(_ context.Context, id uint) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func newSubmissionApp(svc service.SubmissionService, shots service.ScreenshotService) *fiber.App {
	app := fiber.New()
	h := handler.NewSubmissionHandler(svc, shots, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	h.RegisterHackathonRoutes(app.Group("/api/v1/hackathons"), allowAll)
	h.Register(app.Group("/api/v1/submissions"), allowAll)
	h.RegisterScreenshotRoutes(app.Group("/api/v1/screenshots"), allowAll)
	return app
}

func TestSubmissionHandler_CreateReturnsCreated(t *testing.T) {
	svc := &mockSubmissionService{single: dto.SubmissionResponse{ID: "sub-1", Title: "Pixel Garden"}}
	app := newSubmissionApp(svc, &mockScreenshotService{})

	payload := `{"title":"Pixel Garden","team_name":"Team Fern","repo_url":"https://github.com/fern/pixel-garden"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackathons/3/submissions", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, uint(3), svc.lastHackathonID)

	var body struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "sub-1", body.Data.ID)
}

func TestSubmissionHandler_CreateClosedHackathon(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{err: service.ErrSubmissionsClosed}, &mockScreenshotService{})

	payload := `{"title":"Pixel Garden","team_name":"Team Fern","repo_url":"https://github.com/fern/pixel-garden"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackathons/3/submissions", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestSubmissionHandler_CreateRejectsNonGitHubRepo(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{err: service.ErrInvalidRepoURL}, &mockScreenshotService{})

	payload := `{"title":"Pixel Garden","team_name":"Team Fern","repo_url":"https://gitlab.com/fern/pixel-garden"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackathons/3/submissions", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandler_GetByIDNotFound(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{err: service.ErrSubmissionNotFound}, &mockScreenshotService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/ghost", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandler_RegenerateAccepted(t *testing.T) {
	svc := &mockSubmissionService{}
	app := newSubmissionApp(svc, &mockScreenshotService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/sub-1/regenerate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"sub-1"}, svc.regenerated)
}

func TestSubmissionHandler_CaptureScreenshots(t *testing.T) {
	shots := &mockScreenshotService{shots: []dto.ScreenshotResponse{{ID: 1, PageName: "home"}}}
	app := newSubmissionApp(&mockSubmissionService{}, shots)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/sub-1/screenshots", strings.NewReader(`{"full_page":true}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, []string{"sub-1"}, shots.captured)
}

func TestSubmissionHandler_CaptureWithoutSiteURL(t *testing.T) {
	shots := &mockScreenshotService{err: service.ErrNoSiteURL}
	app := newSubmissionApp(&mockSubmissionService{}, shots)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/sub-1/screenshots", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandler_DeleteScreenshot(t *testing.T) {
	shots := &mockScreenshotService{}
	app := newSubmissionApp(&mockSubmissionService{}, shots)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/screenshots/9", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []uint{9}, shots.deleted)
}
