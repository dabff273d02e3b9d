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

// RatingHandler manages judge scoring endpoints.
type RatingHandler struct {
	service   service.RatingService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRatingHandler builds a rating handler instance.
func NewRatingHandler(service service.RatingService, validator *validator.Validate, logger zerolog.Logger) *RatingHandler {
	return &RatingHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "rating_handler").Logger(),
	}
}

// Register attaches the rating routes under the submissions group.
func (h *RatingHandler) Register(router fiber.Router, judgeOnly fiber.Handler, organizerOnly fiber.Handler) {
	router.Put("/:id/rating", judgeOnly, h.upsert)
	router.Get("/:id/ratings", organizerOnly, h.list)
}

func (h *RatingHandler) upsert(c *fiber.Ctx) error {
	judgeID := userIDFromContext(c)
	if judgeID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.RatingUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rating, err := h.service.Upsert(c.Context(), c.Params("id"), judgeID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "rating saved", rating)
}

func (h *RatingHandler) list(c *fiber.Ctx) error {
	ratings, err := h.service.ListBySubmission(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "ratings retrieved", ratings)
}

func (h *RatingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrJudgingClosed):
		return utils.SendError(c, fiber.StatusConflict, "hackathon is not in the judging phase")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
