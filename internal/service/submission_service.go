package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/pipeline"
	"github.com/hackstage/hackstage-api/internal/repository"
	"github.com/hackstage/hackstage-api/pkg/github"
)

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionsClosed indicates the hackathon is not accepting entries.
var ErrSubmissionsClosed = errors.New("hackathon is not accepting submissions")

// ErrInvalidRepoURL indicates the repository URL cannot be parsed.
var ErrInvalidRepoURL = errors.New("repository url is not a valid github repository")

// PipelineTrigger enqueues processing runs for a submission.
type PipelineTrigger interface {
	Trigger(submissionID string, force bool) error
}

// ObjectCleaner removes everything stored under a key prefix.
type ObjectCleaner interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// SubmissionService orchestrates contestant entries and their processing.
type SubmissionService interface {
	ListByHackathon(ctx context.Context, hackathonID uint) ([]dto.SubmissionResponse, error)
	GetByID(ctx context.Context, id string) (dto.SubmissionResponse, error)
	Create(ctx context.Context, hackathonID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, id string) error
	Regenerate(ctx context.Context, id string) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	hackathons  repository.HackathonRepository
	trigger     PipelineTrigger
	cleaner     ObjectCleaner
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. The trigger
// and cleaner may be nil in deployments without the pipeline configured.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	hackathons repository.HackathonRepository,
	trigger PipelineTrigger,
	cleaner ObjectCleaner,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		hackathons:  hackathons,
		trigger:     trigger,
		cleaner:     cleaner,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) ListByHackathon(ctx context.Context, hackathonID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.hackathons.GetByID(ctx, hackathonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHackathonNotFound
		}
		return nil, err
	}

	submissions, err := s.submissions.ListByHackathon(ctx, hackathonID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) GetByID(ctx context.Context, id string) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Create(ctx context.Context, hackathonID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	hackathon, err := s.hackathons.GetByID(ctx, hackathonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrHackathonNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !hackathon.AcceptsSubmissions() {
		return dto.SubmissionResponse{}, ErrSubmissionsClosed
	}

	if _, _, err := github.ParseRepoURL(payload.RepoURL); err != nil {
		return dto.SubmissionResponse{}, ErrInvalidRepoURL
	}

	submission := models.Submission{
		ID:          uuid.NewString(),
		HackathonID: hackathon.ID,
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		TeamName:    strings.TrimSpace(s.sanitizer.Sanitize(payload.TeamName)),
		RepoURL:     strings.TrimSpace(payload.RepoURL),
		SiteURL:     strings.TrimSpace(payload.SiteURL),
		VideoURL:    strings.TrimSpace(payload.VideoURL),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
	}
	submission.Source.ProcessingState = models.ProcessingStateDownloading

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.trigger != nil {
		if err := s.trigger.Trigger(submission.ID, false); err != nil {
			// The entry is saved; processing can be retried with Regenerate.
			s.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("failed to enqueue processing")
		}
	}

	s.logger.Info().
		Str("submission_id", submission.ID).
		Uint("hackathon_id", hackathon.ID).
		Msg("submission created")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Delete(ctx context.Context, id string) error {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if s.cleaner != nil {
		for _, prefix := range []string{pipeline.RepoPrefix(id), pipeline.ScreenshotPrefix(id)} {
			deleted, cleanErr := s.cleaner.DeletePrefix(ctx, prefix)
			if cleanErr != nil {
				s.logger.Warn().Err(cleanErr).Str("prefix", prefix).Msg("object cleanup incomplete")
				continue
			}
			if deleted > 0 {
				s.logger.Info().Str("prefix", prefix).Int("objects", deleted).Msg("object prefix removed")
			}
		}
	}

	if err := s.submissions.Delete(ctx, submission.ID); err != nil {
		return err
	}

	s.logger.Info().Str("submission_id", submission.ID).Msg("submission deleted")
	return nil
}

func (s *submissionService) Regenerate(ctx context.Context, id string) error {
	if _, err := s.submissions.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if s.trigger == nil {
		return errors.New("processing pipeline is not configured")
	}

	return s.trigger.Trigger(id, true)
}
