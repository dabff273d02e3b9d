package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackstage/hackstage-api/internal/models"
)

// RatingRepository defines data operations for judge ratings.
type RatingRepository interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	ListBySubmission(ctx context.Context, submissionID string) ([]models.Rating, error)
	ListByHackathon(ctx context.Context, hackathonID uint) ([]models.Rating, error)
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository instantiates the repository.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "judge_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "comment", "updated_at"}),
		}).
		Create(rating).Error
}

func (r *ratingRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.Rating, error) {
	var ratings []models.Rating
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("updated_at DESC").
		Find(&ratings).Error; err != nil {
		return nil, err
	}

	return ratings, nil
}

func (r *ratingRepository) ListByHackathon(ctx context.Context, hackathonID uint) ([]models.Rating, error) {
	var ratings []models.Rating
	if err := r.db.WithContext(ctx).
		Joins("JOIN submissions ON submissions.id = ratings.submission_id").
		Where("submissions.hackathon_id = ?", hackathonID).
		Find(&ratings).Error; err != nil {
		return nil, err
	}

	return ratings, nil
}
