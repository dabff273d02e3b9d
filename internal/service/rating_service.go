package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/repository"
)

// ErrJudgingClosed indicates the hackathon is not in its judging window.
var ErrJudgingClosed = errors.New("hackathon is not open for judging")

// RatingService records judge scores for submissions.
type RatingService interface {
	Upsert(ctx context.Context, submissionID string, judgeID uint, payload dto.RatingUpsertRequest) (dto.RatingResponse, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]dto.RatingResponse, error)
}

type ratingService struct {
	ratings     repository.RatingRepository
	submissions repository.SubmissionRepository
	hackathons  repository.HackathonRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRatingService constructs a RatingService instance.
func NewRatingService(
	ratings repository.RatingRepository,
	submissions repository.SubmissionRepository,
	hackathons repository.HackathonRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) RatingService {
	return &ratingService{
		ratings:     ratings,
		submissions: submissions,
		hackathons:  hackathons,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "rating_service").Logger(),
		now:         time.Now,
	}
}

func (s *ratingService) Upsert(ctx context.Context, submissionID string, judgeID uint, payload dto.RatingUpsertRequest) (dto.RatingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RatingResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RatingResponse{}, ErrSubmissionNotFound
		}
		return dto.RatingResponse{}, err
	}

	hackathon, err := s.hackathons.GetByID(ctx, submission.HackathonID)
	if err != nil {
		return dto.RatingResponse{}, err
	}
	if hackathon.Status != models.HackathonStatusJudging {
		return dto.RatingResponse{}, ErrJudgingClosed
	}

	rating := models.Rating{
		SubmissionID: submission.ID,
		JudgeID:      judgeID,
		Score:        payload.Score,
		Comment:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment)),
	}

	if err := s.ratings.Upsert(ctx, &rating); err != nil {
		return dto.RatingResponse{}, err
	}

	s.logger.Info().
		Str("submission_id", submission.ID).
		Uint("judge_id", judgeID).
		Int("score", payload.Score).
		Msg("rating recorded")

	return dto.NewRatingResponse(rating), nil
}

func (s *ratingService) ListBySubmission(ctx context.Context, submissionID string) ([]dto.RatingResponse, error) {
	if _, err := s.submissions.GetByID(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	ratings, err := s.ratings.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return dto.NewRatingResponseSlice(ratings), nil
}
