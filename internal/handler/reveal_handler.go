package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/hackstage/hackstage-api/internal/service"
	"github.com/hackstage/hackstage-api/internal/utils"
)

// RevealHandler wires ceremony endpoints including the websocket upgrade
// audiences watch during the live reveal.
type RevealHandler struct {
	service service.RevealService
	logger  zerolog.Logger
}

// NewRevealHandler creates a reveal handler instance.
func NewRevealHandler(service service.RevealService, logger zerolog.Logger) *RevealHandler {
	return &RevealHandler{
		service: service,
		logger:  logger.With().Str("component", "reveal_handler").Logger(),
	}
}

// Register binds ceremony routes under the hackathons group. Stepping the
// ceremony forward is restricted to organizers; watching is public.
func (h *RevealHandler) Register(router fiber.Router, organizerOnly fiber.Handler) {
	router.Post("/:id/reveal/start", organizerOnly, h.start)
	router.Post("/:id/reveal/next", organizerOnly, h.next)
	router.Get("/:id/reveal", h.state)

	router.Use("/:id/reveal/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/:id/reveal/ws", websocket.New(h.handleConnection))
}

func (h *RevealHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.Start(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "reveal started", state)
}

func (h *RevealHandler) next(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.Next(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "next entry revealed", state)
}

func (h *RevealHandler) state(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.State(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "reveal state", state)
}

func (h *RevealHandler) handleConnection(conn *websocket.Conn) {
	hackathonID := websocketHackathonID(conn)
	if hackathonID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "invalid hackathon id"))
		_ = conn.Close()
		return
	}

	h.logger.Info().Uint("hackathon_id", hackathonID).Msg("reveal websocket connected")
	h.service.ServeViewer(conn, hackathonID)
	h.logger.Info().Uint("hackathon_id", hackathonID).Msg("reveal websocket disconnected")
}

func (h *RevealHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrHackathonNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "hackathon not found")
	case errors.Is(err, service.ErrRevealNotStarted):
		return utils.SendError(c, fiber.StatusConflict, "reveal has not started")
	case errors.Is(err, service.ErrRevealAlreadyStarted):
		return utils.SendError(c, fiber.StatusConflict, "reveal already started")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func websocketHackathonID(conn *websocket.Conn) uint {
	raw := strings.TrimSpace(conn.Params("id"))
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(parsed)
}
