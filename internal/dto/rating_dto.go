package dto

import (
	"time"

	"github.com/hackstage/hackstage-api/internal/models"
)

// RatingUpsertRequest records or replaces a judge's score for a submission.
type RatingUpsertRequest struct {
	Score   int    `json:"score" validate:"gte=0,lte=100"`
	Comment string `json:"comment" validate:"omitempty,max=5000"`
}

// RatingResponse serializes a judge rating.
type RatingResponse struct {
	ID           uint      `json:"id"`
	SubmissionID string    `json:"submission_id"`
	JudgeID      uint      `json:"judge_id"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRatingResponse converts a Rating model into a DTO.
func NewRatingResponse(model models.Rating) RatingResponse {
	return RatingResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		JudgeID:      model.JudgeID,
		Score:        model.Score,
		Comment:      model.Comment,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewRatingResponseSlice converts a slice of models into DTOs.
func NewRatingResponseSlice(items []models.Rating) []RatingResponse {
	responses := make([]RatingResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewRatingResponse(item))
	}
	return responses
}
