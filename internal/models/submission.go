package models

import (
	"time"

	"gorm.io/datatypes"
)

// Processing states of the submission pipeline. Transitions are monotonic in
// this order except for an explicit force-regenerate reset back to indexing.
const (
	ProcessingStateDownloading = "downloading"
	ProcessingStateUploading   = "uploading"
	ProcessingStateIndexing    = "indexing"
	ProcessingStateGenerating  = "generating"
	ProcessingStateComplete    = "complete"
	ProcessingStateError       = "error"
)

// SubmissionSource tracks pipeline progress over the submitted repository.
// Its fields are mutated only through SubmissionRepository.UpdateSource.
type SubmissionSource struct {
	R2Key                        string     `gorm:"size:512" json:"r2_key"`
	UploadStartedAt              *time.Time `json:"upload_started_at"`
	UploadCompletedAt            *time.Time `json:"upload_completed_at"`
	UploadedAt                   *time.Time `json:"uploaded_at"`
	AISearchSyncJobID            string     `gorm:"size:128" json:"ai_search_sync_job_id"`
	AISearchSyncStartedAt        *time.Time `json:"ai_search_sync_started_at"`
	AISearchSyncCompletedAt      *time.Time `json:"ai_search_sync_completed_at"`
	AISummary                    string     `gorm:"type:text" json:"ai_summary"`
	SummarizedAt                 *time.Time `json:"summarized_at"`
	SummaryGenerationStartedAt   *time.Time `json:"summary_generation_started_at"`
	SummaryGenerationCompletedAt *time.Time `json:"summary_generation_completed_at"`
	Readme                       string     `gorm:"type:text" json:"readme"`
	ReadmeFilename               string     `gorm:"size:256" json:"readme_filename"`
	ReadmeFetchedAt              *time.Time `json:"readme_fetched_at"`
	ProcessingState              string     `gorm:"size:32" json:"processing_state"`
}

// SubmissionAI holds the generated review and score for a submission.
// Mutated only through SubmissionRepository.UpdateAI / ResetAI / ClaimScoring.
type SubmissionAI struct {
	Summary          string         `gorm:"type:text" json:"summary"`
	Score            *int           `json:"score"`
	ScoreDetail      datatypes.JSON `json:"score_detail"`
	LastReviewedAt   *time.Time     `json:"last_reviewed_at"`
	InFlight         bool           `gorm:"default:false" json:"in_flight"`
	ScoreStartedAt   *time.Time     `json:"score_started_at"`
	ScoreCompletedAt *time.Time     `json:"score_completed_at"`
}

// Submission is a single contestant entry in a hackathon.
type Submission struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	HackathonID uint             `gorm:"not null;index" json:"hackathon_id"`
	Title       string           `gorm:"size:256;not null" json:"title"`
	TeamName    string           `gorm:"size:128;not null" json:"team_name"`
	RepoURL     string           `gorm:"size:512;not null" json:"repo_url"`
	SiteURL     string           `gorm:"size:512" json:"site_url"`
	VideoURL    string           `gorm:"size:512" json:"video_url"`
	Description string           `gorm:"type:text" json:"description"`
	Source      SubmissionSource `gorm:"embedded;embeddedPrefix:source_" json:"source"`
	AI          SubmissionAI     `gorm:"embedded;embeddedPrefix:ai_" json:"ai"`
	Screenshots []Screenshot     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"screenshots"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Hackathon   Hackathon        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Uploaded reports whether the repository files reached the object store.
// Presence of the key is the signal; timestamps are informational.
func (s Submission) Uploaded() bool {
	return s.Source.R2Key != ""
}

// Processed reports whether the pipeline has fully completed for this entry.
func (s Submission) Processed() bool {
	return s.Source.ProcessingState == ProcessingStateComplete &&
		s.Source.AISummary != "" && s.AI.Score != nil
}

// Screenshot is a captured image of the submission's live site.
type Screenshot struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID string    `gorm:"size:36;not null;index" json:"submission_id"`
	R2Key        string    `gorm:"size:512;not null" json:"r2_key"`
	URL          string    `gorm:"size:512" json:"url"`
	PageURL      string    `gorm:"size:512" json:"page_url"`
	PageName     string    `gorm:"size:256" json:"page_name"`
	CapturedAt   time.Time `json:"captured_at"`
	CreatedAt    time.Time `json:"created_at"`
}
