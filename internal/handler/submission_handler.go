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

// SubmissionHandler manages entry endpoints, including the screenshot
// sub-resource.
type SubmissionHandler struct {
	service     service.SubmissionService
	screenshots service.ScreenshotService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, screenshots service.ScreenshotService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:     service,
		screenshots: screenshots,
		validator:   validator,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterHackathonRoutes attaches the routes nested under a hackathon. The
// create endpoint is public, so it carries a rate limit instead of a guard.
func (h *SubmissionHandler) RegisterHackathonRoutes(router fiber.Router, createLimit fiber.Handler) {
	router.Get("/:id/submissions", h.listByHackathon)
	router.Post("/:id/submissions", createLimit, h.create)
}

// Register attaches the top-level submission routes. The organizer guard
// protects destructive and reprocessing endpoints.
func (h *SubmissionHandler) Register(router fiber.Router, organizerOnly fiber.Handler) {
	router.Get("/:id", h.getByID)
	router.Delete("/:id", organizerOnly, h.delete)
	router.Post("/:id/regenerate", organizerOnly, h.regenerate)
	router.Post("/:id/screenshots", organizerOnly, h.captureScreenshots)
}

// RegisterScreenshotRoutes attaches the top-level screenshot routes.
func (h *SubmissionHandler) RegisterScreenshotRoutes(router fiber.Router, organizerOnly fiber.Handler) {
	router.Delete("/:id", organizerOnly, h.deleteScreenshot)
}

func (h *SubmissionHandler) listByHackathon(c *fiber.Ctx) error {
	hackathonID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListByHackathon(c.Context(), hackathonID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	hackathonID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Create(c.Context(), hackathonID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) getByID(c *fiber.Ctx) error {
	submission, err := h.service.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission deleted", nil)
}

func (h *SubmissionHandler) regenerate(c *fiber.Ctx) error {
	if err := h.service.Regenerate(c.Context(), c.Params("id")); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "reprocessing scheduled", nil)
}

func (h *SubmissionHandler) captureScreenshots(c *fiber.Ctx) error {
	var payload dto.ScreenshotCaptureRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	shots, err := h.screenshots.Capture(c.Context(), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "screenshots captured", shots)
}

func (h *SubmissionHandler) deleteScreenshot(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.screenshots.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "screenshot deleted", nil)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrHackathonNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "hackathon not found")
	case errors.Is(err, service.ErrScreenshotNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "screenshot not found")
	case errors.Is(err, service.ErrSubmissionsClosed):
		return utils.SendError(c, fiber.StatusConflict, "hackathon is not accepting submissions")
	case errors.Is(err, service.ErrInvalidRepoURL):
		return utils.SendError(c, fiber.StatusBadRequest, "repository URL must point to a GitHub repository")
	case errors.Is(err, service.ErrNoSiteURL):
		return utils.SendError(c, fiber.StatusBadRequest, "submission has no site URL to capture")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
