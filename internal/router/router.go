package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hackstage/hackstage-api/internal/config"
	"github.com/hackstage/hackstage-api/internal/handler"
	"github.com/hackstage/hackstage-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	HackathonHandler  *handler.HackathonHandler
	SubmissionHandler *handler.SubmissionHandler
	RatingHandler     *handler.RatingHandler
	RevealHandler     *handler.RevealHandler

	// OrganizerGuard and JudgeGuard override the JWT based guards, used by
	// tests to bypass token validation.
	OrganizerGuard fiber.Handler
	JudgeGuard     fiber.Handler
}

// Register wires the HTTP routes into the fiber application. Guards are
// attached per route because public reads share groups with protected
// mutations.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	organizerOnly := deps.OrganizerGuard
	if organizerOnly == nil {
		organizerOnly = middleware.Protected(cfg.JWTSecret, "organizer")
	}
	judgeOnly := deps.JudgeGuard
	if judgeOnly == nil {
		judgeOnly = middleware.Protected(cfg.JWTSecret, "judge", "organizer")
	}

	if deps.HackathonHandler != nil {
		hackathons := api.Group("/hackathons")
		deps.HackathonHandler.Register(hackathons, organizerOnly)

		if deps.SubmissionHandler != nil {
			createLimit := middleware.RateLimit("submission-create", 10, time.Minute)
			deps.SubmissionHandler.RegisterHackathonRoutes(hackathons, createLimit)
		}
		if deps.RevealHandler != nil {
			deps.RevealHandler.Register(hackathons, organizerOnly)
		}
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions")
		deps.SubmissionHandler.Register(submissions, organizerOnly)
		deps.SubmissionHandler.RegisterScreenshotRoutes(api.Group("/screenshots"), organizerOnly)

		if deps.RatingHandler != nil {
			deps.RatingHandler.Register(submissions, judgeOnly, organizerOnly)
		}
	}
}
