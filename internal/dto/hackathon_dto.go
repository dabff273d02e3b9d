package dto

import (
	"time"

	"github.com/hackstage/hackstage-api/internal/models"
)

// HackathonCreateRequest is the organizer payload for a new event.
type HackathonCreateRequest struct {
	Slug        string    `json:"slug" validate:"required,min=3,max=128,lowercase"`
	Title       string    `json:"title" validate:"required,min=3,max=256"`
	Description string    `json:"description" validate:"omitempty,max=10000"`
	Rubric      string    `json:"rubric" validate:"omitempty,max=10000"`
	JudgeWeight *float64  `json:"judge_weight" validate:"omitempty,gte=0,lte=1"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// HackathonUpdateRequest patches event fields; nil fields are untouched.
type HackathonUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=256"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Rubric      *string    `json:"rubric" validate:"omitempty,max=10000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=draft open judging revealed"`
	JudgeWeight *float64   `json:"judge_weight" validate:"omitempty,gte=0,lte=1"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// HackathonFilter describes query string filters for listing events.
type HackathonFilter struct {
	Status *string `query:"status" validate:"omitempty,oneof=draft open judging revealed"`
	Page   int     `query:"page" validate:"omitempty,gte=1"`
	Limit  int     `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// HackathonResponse is returned to API clients when viewing events.
type HackathonResponse struct {
	ID          uint      `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rubric      string    `json:"rubric"`
	Status      string    `json:"status"`
	CoverURL    string    `json:"cover_url"`
	JudgeWeight float64   `json:"judge_weight"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HackathonListResponse wraps a page of events with its total count.
type HackathonListResponse struct {
	Items []HackathonResponse `json:"items"`
	Total int64               `json:"total"`
}

// NewHackathonResponse converts a Hackathon model into a DTO.
func NewHackathonResponse(model models.Hackathon) HackathonResponse {
	return HackathonResponse{
		ID:          model.ID,
		Slug:        model.Slug,
		Title:       model.Title,
		Description: model.Description,
		Rubric:      model.Rubric,
		Status:      model.Status,
		CoverURL:    model.CoverURL,
		JudgeWeight: model.JudgeWeight,
		StartsAt:    model.StartsAt,
		EndsAt:      model.EndsAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewHackathonResponseSlice converts a slice of models into DTOs.
func NewHackathonResponseSlice(items []models.Hackathon) []HackathonResponse {
	responses := make([]HackathonResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewHackathonResponse(item))
	}
	return responses
}
