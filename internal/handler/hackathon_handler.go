package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/service"
	"github.com/hackstage/hackstage-api/internal/utils"
)

// HackathonHandler manages event endpoints.
type HackathonHandler struct {
	service   service.HackathonService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewHackathonHandler builds a hackathon handler instance.
func NewHackathonHandler(service service.HackathonService, validator *validator.Validate, logger zerolog.Logger) *HackathonHandler {
	return &HackathonHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "hackathon_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. The organizer
// guard protects the mutating endpoints; reads are public.
func (h *HackathonHandler) Register(router fiber.Router, organizerOnly fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:slug", h.getBySlug)
	router.Post("", organizerOnly, h.create)
	router.Patch("/:id", organizerOnly, h.update)
	router.Post("/:id/cover", organizerOnly, h.uploadCover)
}

func (h *HackathonHandler) list(c *fiber.Ctx) error {
	filter := dto.HackathonFilter{}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	filter.Page = page
	filter.Limit = limit

	hackathons, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "hackathons retrieved", hackathons)
}

func (h *HackathonHandler) getBySlug(c *fiber.Ctx) error {
	hackathon, err := h.service.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "hackathon retrieved", hackathon)
}

func (h *HackathonHandler) create(c *fiber.Ctx) error {
	var payload dto.HackathonCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	hackathon, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "hackathon created", hackathon)
}

func (h *HackathonHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.HackathonUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	hackathon, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "hackathon updated", hackathon)
}

func (h *HackathonHandler) uploadCover(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("cover")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "cover image is required")
	}

	hackathon, err := h.service.UploadCover(c.Context(), id, file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "cover uploaded", hackathon)
}

func (h *HackathonHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrHackathonNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "hackathon not found")
	case errors.Is(err, service.ErrSlugTaken):
		return utils.SendError(c, fiber.StatusConflict, "slug already in use")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
