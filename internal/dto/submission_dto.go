package dto

import (
	"encoding/json"
	"time"

	"github.com/hackstage/hackstage-api/internal/models"
)

// SubmissionCreateRequest is a contestant's entry payload.
type SubmissionCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=256"`
	TeamName    string `json:"team_name" validate:"required,min=2,max=128"`
	RepoURL     string `json:"repo_url" validate:"required,url,max=512"`
	SiteURL     string `json:"site_url" validate:"omitempty,url,max=512"`
	VideoURL    string `json:"video_url" validate:"omitempty,url,max=512"`
	Description string `json:"description" validate:"omitempty,max=10000"`
}

// ScreenshotCaptureRequest asks for a capture of the submission's live site.
type ScreenshotCaptureRequest struct {
	PageURL  string `json:"page_url" validate:"omitempty,url,max=512"`
	PageName string `json:"page_name" validate:"omitempty,max=256"`
	FullPage bool   `json:"full_page"`
}

// SubmissionSourceResponse exposes pipeline progress to clients.
type SubmissionSourceResponse struct {
	ProcessingState string     `json:"processing_state"`
	AISummary       string     `json:"ai_summary"`
	SummarizedAt    *time.Time `json:"summarized_at"`
	Readme          string     `json:"readme"`
	ReadmeFilename  string     `json:"readme_filename"`
	UploadedAt      *time.Time `json:"uploaded_at"`
}

// SubmissionAIResponse exposes the generated review and score.
type SubmissionAIResponse struct {
	Summary        string          `json:"summary"`
	Score          *int            `json:"score"`
	ScoreDetail    json.RawMessage `json:"score_detail,omitempty"`
	LastReviewedAt *time.Time      `json:"last_reviewed_at"`
}

// ScreenshotResponse serializes a captured page image.
type ScreenshotResponse struct {
	ID         uint      `json:"id"`
	URL        string    `json:"url"`
	PageURL    string    `json:"page_url"`
	PageName   string    `json:"page_name"`
	CapturedAt time.Time `json:"captured_at"`
}

// SubmissionResponse is returned to API clients when viewing entries.
type SubmissionResponse struct {
	ID          string                   `json:"id"`
	HackathonID uint                     `json:"hackathon_id"`
	Title       string                   `json:"title"`
	TeamName    string                   `json:"team_name"`
	RepoURL     string                   `json:"repo_url"`
	SiteURL     string                   `json:"site_url"`
	VideoURL    string                   `json:"video_url"`
	Description string                   `json:"description"`
	Source      SubmissionSourceResponse `json:"source"`
	AI          SubmissionAIResponse     `json:"ai"`
	Screenshots []ScreenshotResponse     `json:"screenshots"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	screenshots := make([]ScreenshotResponse, 0, len(model.Screenshots))
	for _, shot := range model.Screenshots {
		screenshots = append(screenshots, NewScreenshotResponse(shot))
	}

	return SubmissionResponse{
		ID:          model.ID,
		HackathonID: model.HackathonID,
		Title:       model.Title,
		TeamName:    model.TeamName,
		RepoURL:     model.RepoURL,
		SiteURL:     model.SiteURL,
		VideoURL:    model.VideoURL,
		Description: model.Description,
		Source: SubmissionSourceResponse{
			ProcessingState: model.Source.ProcessingState,
			AISummary:       model.Source.AISummary,
			SummarizedAt:    model.Source.SummarizedAt,
			Readme:          model.Source.Readme,
			ReadmeFilename:  model.Source.ReadmeFilename,
			UploadedAt:      model.Source.UploadedAt,
		},
		AI: SubmissionAIResponse{
			Summary:        model.AI.Summary,
			Score:          model.AI.Score,
			ScoreDetail:    json.RawMessage(model.AI.ScoreDetail),
			LastReviewedAt: model.AI.LastReviewedAt,
		},
		Screenshots: screenshots,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}

// NewScreenshotResponse converts a Screenshot model into a DTO.
func NewScreenshotResponse(model models.Screenshot) ScreenshotResponse {
	return ScreenshotResponse{
		ID:         model.ID,
		URL:        model.URL,
		PageURL:    model.PageURL,
		PageName:   model.PageName,
		CapturedAt: model.CapturedAt,
	}
}
