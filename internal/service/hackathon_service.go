package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/repository"
)

// ErrHackathonNotFound indicates the event could not be found.
var ErrHackathonNotFound = errors.New("hackathon not found")

// ErrSlugTaken indicates another event already uses the requested slug.
var ErrSlugTaken = errors.New("slug already in use")

// FileUploader pushes an image to the media CDN and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// HackathonService manages event lifecycle and cover images.
type HackathonService interface {
	List(ctx context.Context, filter dto.HackathonFilter) (dto.HackathonListResponse, error)
	GetBySlug(ctx context.Context, slug string) (dto.HackathonResponse, error)
	Create(ctx context.Context, payload dto.HackathonCreateRequest) (dto.HackathonResponse, error)
	Update(ctx context.Context, id uint, payload dto.HackathonUpdateRequest) (dto.HackathonResponse, error)
	UploadCover(ctx context.Context, id uint, file *multipart.FileHeader) (dto.HackathonResponse, error)
}

type hackathonService struct {
	hackathons repository.HackathonRepository
	validator  *validator.Validate
	uploader   FileUploader
	logger     zerolog.Logger
	now        func() time.Time
}

// NewHackathonService constructs a HackathonService instance.
func NewHackathonService(repo repository.HackathonRepository, validate *validator.Validate, uploader FileUploader, logger zerolog.Logger) HackathonService {
	return &hackathonService{
		hackathons: repo,
		validator:  validate,
		uploader:   uploader,
		logger:     logger.With().Str("component", "hackathon_service").Logger(),
		now:        time.Now,
	}
}

func (s *hackathonService) List(ctx context.Context, filter dto.HackathonFilter) (dto.HackathonListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.HackathonListResponse{}, err
	}

	items, total, err := s.hackathons.List(ctx, repository.HackathonFilter{
		Status:   filter.Status,
		Page:     filter.Page,
		PageSize: filter.Limit,
	})
	if err != nil {
		return dto.HackathonListResponse{}, err
	}

	return dto.HackathonListResponse{
		Items: dto.NewHackathonResponseSlice(items),
		Total: total,
	}, nil
}

func (s *hackathonService) GetBySlug(ctx context.Context, slug string) (dto.HackathonResponse, error) {
	hackathon, err := s.hackathons.GetBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HackathonResponse{}, ErrHackathonNotFound
		}
		return dto.HackathonResponse{}, err
	}

	return dto.NewHackathonResponse(hackathon), nil
}

func (s *hackathonService) Create(ctx context.Context, payload dto.HackathonCreateRequest) (dto.HackathonResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HackathonResponse{}, err
	}

	if _, err := s.hackathons.GetBySlug(ctx, payload.Slug); err == nil {
		return dto.HackathonResponse{}, ErrSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.HackathonResponse{}, err
	}

	hackathon := models.Hackathon{
		Slug:        payload.Slug,
		Title:       payload.Title,
		Description: payload.Description,
		Rubric:      payload.Rubric,
		Status:      models.HackathonStatusDraft,
		JudgeWeight: 0.7,
		StartsAt:    payload.StartsAt,
		EndsAt:      payload.EndsAt,
	}
	if payload.JudgeWeight != nil {
		hackathon.JudgeWeight = *payload.JudgeWeight
	}

	if err := s.hackathons.Create(ctx, &hackathon); err != nil {
		return dto.HackathonResponse{}, err
	}

	s.logger.Info().Uint("hackathon_id", hackathon.ID).Str("slug", hackathon.Slug).Msg("hackathon created")

	return dto.NewHackathonResponse(hackathon), nil
}

func (s *hackathonService) Update(ctx context.Context, id uint, payload dto.HackathonUpdateRequest) (dto.HackathonResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HackathonResponse{}, err
	}

	hackathon, err := s.hackathons.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HackathonResponse{}, ErrHackathonNotFound
		}
		return dto.HackathonResponse{}, err
	}

	if payload.Title != nil {
		hackathon.Title = *payload.Title
	}
	if payload.Description != nil {
		hackathon.Description = *payload.Description
	}
	if payload.Rubric != nil {
		hackathon.Rubric = *payload.Rubric
	}
	if payload.Status != nil {
		hackathon.Status = strings.ToLower(*payload.Status)
	}
	if payload.JudgeWeight != nil {
		hackathon.JudgeWeight = *payload.JudgeWeight
	}
	if payload.StartsAt != nil {
		hackathon.StartsAt = *payload.StartsAt
	}
	if payload.EndsAt != nil {
		hackathon.EndsAt = *payload.EndsAt
	}

	if err := s.hackathons.Update(ctx, &hackathon); err != nil {
		return dto.HackathonResponse{}, err
	}

	s.logger.Info().Uint("hackathon_id", hackathon.ID).Msg("hackathon updated")

	return dto.NewHackathonResponse(hackathon), nil
}

func (s *hackathonService) UploadCover(ctx context.Context, id uint, file *multipart.FileHeader) (dto.HackathonResponse, error) {
	if file == nil {
		return dto.HackathonResponse{}, fmt.Errorf("cover image is required")
	}

	hackathon, err := s.hackathons.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HackathonResponse{}, ErrHackathonNotFound
		}
		return dto.HackathonResponse{}, err
	}

	if err := validateImageType(file); err != nil {
		return dto.HackathonResponse{}, err
	}

	reader, err := file.Open()
	if err != nil {
		return dto.HackathonResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	url, err := s.uploader.Upload(ctx, file.Filename, reader)
	if err != nil {
		return dto.HackathonResponse{}, fmt.Errorf("failed to upload cover: %w", err)
	}

	hackathon.CoverURL = url
	if err := s.hackathons.Update(ctx, &hackathon); err != nil {
		return dto.HackathonResponse{}, err
	}

	s.logger.Info().Uint("hackathon_id", hackathon.ID).Msg("cover image replaced")

	return dto.NewHackathonResponse(hackathon), nil
}

func validateImageType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{"image/png", "image/jpeg", "image/webp"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("unsupported image type: %s", mime.String())
}
