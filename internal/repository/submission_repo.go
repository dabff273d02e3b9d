package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/models"
)

// SourcePatch is a partial update of the submission's pipeline-tracking
// fields. Only non-nil members are written, so a step never clobbers
// progress recorded by an earlier step.
type SourcePatch struct {
	R2Key                        *string
	UploadStartedAt              *time.Time
	UploadCompletedAt            *time.Time
	UploadedAt                   *time.Time
	AISearchSyncJobID            *string
	AISearchSyncStartedAt        *time.Time
	AISearchSyncCompletedAt      *time.Time
	AISummary                    *string
	SummarizedAt                 *time.Time
	SummaryGenerationStartedAt   *time.Time
	SummaryGenerationCompletedAt *time.Time
	Readme                       *string
	ReadmeFilename               *string
	ReadmeFetchedAt              *time.Time
	ProcessingState              *string
}

// AIPatch is a partial update of the submission's review fields.
type AIPatch struct {
	Summary          *string
	Score            *int
	ScoreDetail      datatypes.JSON
	LastReviewedAt   *time.Time
	InFlight         *bool
	ScoreStartedAt   *time.Time
	ScoreCompletedAt *time.Time
}

// SubmissionRepository exposes persistence operations for submissions. The
// source and AI sub-records are mutated exclusively through the narrow patch
// methods; general Save is reserved for the descriptive fields.
type SubmissionRepository interface {
	ListByHackathon(ctx context.Context, hackathonID uint) ([]models.Submission, error)
	GetByID(ctx context.Context, id string) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id string) error
	UpdateSource(ctx context.Context, id string, patch SourcePatch) error
	UpdateAI(ctx context.Context, id string, patch AIPatch) error
	ResetAI(ctx context.Context, id string) error
	ClaimScoring(ctx context.Context, id string) (bool, error)
	ReleaseScoring(ctx context.Context, id string) error
	AddScreenshot(ctx context.Context, screenshot *models.Screenshot) error
	GetScreenshot(ctx context.Context, id uint) (models.Screenshot, error)
	DeleteScreenshot(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Screenshots")
}

func (r *submissionRepository) ListByHackathon(ctx context.Context, hackathonID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("hackathon_id = ?", hackathonID).
		Order("created_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Select("Screenshots").
		Delete(&models.Submission{ID: id}).Error
}

func (r *submissionRepository) UpdateSource(ctx context.Context, id string, patch SourcePatch) error {
	updates := map[string]interface{}{}

	setString(updates, "source_r2_key", patch.R2Key)
	setTime(updates, "source_upload_started_at", patch.UploadStartedAt)
	setTime(updates, "source_upload_completed_at", patch.UploadCompletedAt)
	setTime(updates, "source_uploaded_at", patch.UploadedAt)
	setString(updates, "source_ai_search_sync_job_id", patch.AISearchSyncJobID)
	setTime(updates, "source_ai_search_sync_started_at", patch.AISearchSyncStartedAt)
	setTime(updates, "source_ai_search_sync_completed_at", patch.AISearchSyncCompletedAt)
	setString(updates, "source_ai_summary", patch.AISummary)
	setTime(updates, "source_summarized_at", patch.SummarizedAt)
	setTime(updates, "source_summary_generation_started_at", patch.SummaryGenerationStartedAt)
	setTime(updates, "source_summary_generation_completed_at", patch.SummaryGenerationCompletedAt)
	setString(updates, "source_readme", patch.Readme)
	setString(updates, "source_readme_filename", patch.ReadmeFilename)
	setTime(updates, "source_readme_fetched_at", patch.ReadmeFetchedAt)
	setString(updates, "source_processing_state", patch.ProcessingState)

	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *submissionRepository) UpdateAI(ctx context.Context, id string, patch AIPatch) error {
	updates := map[string]interface{}{}

	setString(updates, "ai_summary", patch.Summary)
	if patch.Score != nil {
		updates["ai_score"] = *patch.Score
	}
	if patch.ScoreDetail != nil {
		updates["ai_score_detail"] = patch.ScoreDetail
	}
	setTime(updates, "ai_last_reviewed_at", patch.LastReviewedAt)
	if patch.InFlight != nil {
		updates["ai_in_flight"] = *patch.InFlight
	}
	setTime(updates, "ai_score_started_at", patch.ScoreStartedAt)
	setTime(updates, "ai_score_completed_at", patch.ScoreCompletedAt)

	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ResetAI clears the generated summary and score ahead of a forced
// regeneration and rewinds the processing state to indexing.
func (r *submissionRepository) ResetAI(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ai_summary":                             "",
			"ai_score":                               nil,
			"ai_score_detail":                        nil,
			"ai_last_reviewed_at":                    nil,
			"ai_in_flight":                           false,
			"ai_score_started_at":                    nil,
			"ai_score_completed_at":                  nil,
			"source_ai_summary":                      "",
			"source_summarized_at":                   nil,
			"source_summary_generation_started_at":   nil,
			"source_summary_generation_completed_at": nil,
			"source_processing_state":                models.ProcessingStateIndexing,
		}).Error
}

// ClaimScoring atomically marks the submission as being scored. It succeeds
// only when no score exists and no other invocation holds the claim, which
// prevents concurrent triggers from double-invoking the scorer.
func (r *submissionRepository) ClaimScoring(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND ai_in_flight = ? AND ai_score IS NULL", id, false).
		Updates(map[string]interface{}{
			"ai_in_flight":        true,
			"ai_score_started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) ReleaseScoring(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Update("ai_in_flight", false).Error
}

func (r *submissionRepository) AddScreenshot(ctx context.Context, screenshot *models.Screenshot) error {
	return r.db.WithContext(ctx).Create(screenshot).Error
}

func (r *submissionRepository) GetScreenshot(ctx context.Context, id uint) (models.Screenshot, error) {
	var screenshot models.Screenshot
	if err := r.db.WithContext(ctx).First(&screenshot, id).Error; err != nil {
		return models.Screenshot{}, err
	}

	return screenshot, nil
}

func (r *submissionRepository) DeleteScreenshot(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Screenshot{}, id).Error
}

func setString(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = *value
	}
}

func setTime(updates map[string]interface{}, column string, value *time.Time) {
	if value != nil {
		updates[column] = *value
	}
}
