package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/models"
)

// HackathonFilter narrows hackathon listings.
type HackathonFilter struct {
	Status   *string
	Page     int
	PageSize int
}

// HackathonRepository defines data operations for hackathons.
type HackathonRepository interface {
	List(ctx context.Context, filter HackathonFilter) ([]models.Hackathon, int64, error)
	GetByID(ctx context.Context, id uint) (models.Hackathon, error)
	GetBySlug(ctx context.Context, slug string) (models.Hackathon, error)
	Create(ctx context.Context, hackathon *models.Hackathon) error
	Update(ctx context.Context, hackathon *models.Hackathon) error
}

type hackathonRepository struct {
	db *gorm.DB
}

// NewHackathonRepository instantiates the repository.
func NewHackathonRepository(db *gorm.DB) HackathonRepository {
	return &hackathonRepository{db: db}
}

func (r *hackathonRepository) List(ctx context.Context, filter HackathonFilter) ([]models.Hackathon, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Hackathon{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var hackathons []models.Hackathon
	if err := query.Order("starts_at DESC").Find(&hackathons).Error; err != nil {
		return nil, 0, err
	}

	return hackathons, total, nil
}

func (r *hackathonRepository) GetByID(ctx context.Context, id uint) (models.Hackathon, error) {
	var hackathon models.Hackathon
	if err := r.db.WithContext(ctx).First(&hackathon, id).Error; err != nil {
		return models.Hackathon{}, err
	}

	return hackathon, nil
}

func (r *hackathonRepository) GetBySlug(ctx context.Context, slug string) (models.Hackathon, error) {
	var hackathon models.Hackathon
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&hackathon).Error; err != nil {
		return models.Hackathon{}, err
	}

	return hackathon, nil
}

func (r *hackathonRepository) Create(ctx context.Context, hackathon *models.Hackathon) error {
	return r.db.WithContext(ctx).Create(hackathon).Error
}

func (r *hackathonRepository) Update(ctx context.Context, hackathon *models.Hackathon) error {
	return r.db.WithContext(ctx).Save(hackathon).Error
}
