package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/pipeline"
	"github.com/hackstage/hackstage-api/internal/repository"
	"github.com/hackstage/hackstage-api/pkg/screenshot"
)

// ErrScreenshotNotFound indicates the screenshot could not be found.
var ErrScreenshotNotFound = errors.New("screenshot not found")

// ErrNoSiteURL indicates the submission has no live site to capture.
var ErrNoSiteURL = errors.New("submission has no site url")

// PageCapturer renders a live site and returns its pages as PNG images.
type PageCapturer interface {
	Capture(ctx context.Context, siteURL string, fullPage bool) ([]screenshot.CapturedPage, error)
}

// ScreenshotStore persists captured images under the submission's prefix.
type ScreenshotStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// ScreenshotService captures and manages live-site screenshots.
type ScreenshotService interface {
	Capture(ctx context.Context, submissionID string, payload dto.ScreenshotCaptureRequest) ([]dto.ScreenshotResponse, error)
	Delete(ctx context.Context, id uint) error
}

type screenshotService struct {
	submissions repository.SubmissionRepository
	capturer    PageCapturer
	store       ScreenshotStore
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewScreenshotService constructs a ScreenshotService instance.
func NewScreenshotService(
	submissions repository.SubmissionRepository,
	capturer PageCapturer,
	store ScreenshotStore,
	validate *validator.Validate,
	logger zerolog.Logger,
) ScreenshotService {
	return &screenshotService{
		submissions: submissions,
		capturer:    capturer,
		store:       store,
		validator:   validate,
		logger:      logger.With().Str("component", "screenshot_service").Logger(),
		now:         time.Now,
	}
}

func (s *screenshotService) Capture(ctx context.Context, submissionID string, payload dto.ScreenshotCaptureRequest) ([]dto.ScreenshotResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}
	if s.capturer == nil || s.store == nil {
		return nil, errors.New("screenshot capture is not configured")
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	target := payload.PageURL
	if target == "" {
		target = submission.SiteURL
	}
	if target == "" {
		return nil, ErrNoSiteURL
	}

	pages, err := s.capturer.Capture(ctx, target, payload.FullPage)
	if err != nil {
		return nil, fmt.Errorf("capture site: %w", err)
	}

	captured := s.now()
	responses := make([]dto.ScreenshotResponse, 0, len(pages))
	for i, page := range pages {
		key := fmt.Sprintf("%s%d-%d.png", pipeline.ScreenshotPrefix(submission.ID), captured.Unix(), i)
		if err := s.store.Put(ctx, key, bytes.NewReader(page.PNG), int64(len(page.PNG)), "image/png", map[string]string{
			"submission-id": submission.ID,
			"page-url":      page.PageURL,
		}); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("skipping screenshot that failed to store")
			continue
		}

		pageName := payload.PageName
		if pageName == "" {
			pageName = page.PageName
		}

		shot := models.Screenshot{
			SubmissionID: submission.ID,
			R2Key:        key,
			URL:          s.store.PublicURL(key),
			PageURL:      page.PageURL,
			PageName:     pageName,
			CapturedAt:   captured,
		}
		if err := s.submissions.AddScreenshot(ctx, &shot); err != nil {
			return nil, err
		}
		responses = append(responses, dto.NewScreenshotResponse(shot))
	}

	s.logger.Info().
		Str("submission_id", submission.ID).
		Int("pages", len(responses)).
		Msg("screenshots captured")

	return responses, nil
}

func (s *screenshotService) Delete(ctx context.Context, id uint) error {
	shot, err := s.submissions.GetScreenshot(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScreenshotNotFound
		}
		return err
	}

	if s.store != nil && shot.R2Key != "" {
		if err := s.store.Delete(ctx, shot.R2Key); err != nil {
			s.logger.Warn().Err(err).Str("key", shot.R2Key).Msg("object removal failed, deleting record anyway")
		}
	}

	return s.submissions.DeleteScreenshot(ctx, id)
}
