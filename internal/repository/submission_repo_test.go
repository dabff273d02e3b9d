package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hackstage/hackstage-api/internal/models"
)

func setupTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))

	return db
}

func seedSubmission(t *testing.T, db *gorm.DB) models.Submission {
	t.Helper()

	hackathon := models.Hackathon{Slug: "spring-jam", Title: "Spring Jam", Status: models.HackathonStatusOpen}
	require.NoError(t, db.Create(&hackathon).Error)

	submission := models.Submission{
		ID:          uuid.NewString(),
		HackathonID: hackathon.ID,
		Title:       "Widget",
		TeamName:    "Acme",
		RepoURL:     "https://github.com/acme/widget",
	}
	require.NoError(t, db.Create(&submission).Error)

	return submission
}

func TestUpdateSourceOnlyWritesProvidedFields(t *testing.T) {
	db := setupTestDB(t, &models.Hackathon{}, &models.Submission{}, &models.Screenshot{})
	repo := NewSubmissionRepository(db)
	submission := seedSubmission(t, db)

	uploaded := time.Now().UTC().Truncate(time.Second)
	key := "repos/" + submission.ID + "/files/"
	state := models.ProcessingStateIndexing
	require.NoError(t, repo.UpdateSource(context.Background(), submission.ID, SourcePatch{
		R2Key:           &key,
		UploadedAt:      &uploaded,
		ProcessingState: &state,
	}))

	stored, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, key, stored.Source.R2Key)
	require.Equal(t, models.ProcessingStateIndexing, stored.Source.ProcessingState)
	require.NotNil(t, stored.Source.UploadedAt)
	require.Nil(t, stored.Source.SummarizedAt, "unrelated fields must stay untouched")
	require.Empty(t, stored.Source.AISummary)

	// an empty patch is a no-op, not a full overwrite
	require.NoError(t, repo.UpdateSource(context.Background(), submission.ID, SourcePatch{}))
	again, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, key, again.Source.R2Key)
}

func TestResetAIClearsResultsAndRewindsState(t *testing.T) {
	db := setupTestDB(t, &models.Hackathon{}, &models.Submission{}, &models.Screenshot{})
	repo := NewSubmissionRepository(db)
	submission := seedSubmission(t, db)

	score := 88
	summary := "A fine widget."
	now := time.Now().UTC()
	state := models.ProcessingStateComplete
	require.NoError(t, repo.UpdateSource(context.Background(), submission.ID, SourcePatch{
		AISummary:       &summary,
		SummarizedAt:    &now,
		ProcessingState: &state,
	}))
	require.NoError(t, repo.UpdateAI(context.Background(), submission.ID, AIPatch{
		Summary:        &summary,
		Score:          &score,
		LastReviewedAt: &now,
	}))

	require.NoError(t, repo.ResetAI(context.Background(), submission.ID))

	stored, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Empty(t, stored.AI.Summary)
	require.Nil(t, stored.AI.Score)
	require.Nil(t, stored.AI.LastReviewedAt)
	require.Empty(t, stored.Source.AISummary)
	require.Nil(t, stored.Source.SummarizedAt)
	require.Equal(t, models.ProcessingStateIndexing, stored.Source.ProcessingState)
}

func TestClaimScoringIsExclusive(t *testing.T) {
	db := setupTestDB(t, &models.Hackathon{}, &models.Submission{}, &models.Screenshot{})
	repo := NewSubmissionRepository(db)
	submission := seedSubmission(t, db)

	claimed, err := repo.ClaimScoring(context.Background(), submission.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// second claim while the first is in flight must fail
	claimed, err = repo.ClaimScoring(context.Background(), submission.ID)
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, repo.ReleaseScoring(context.Background(), submission.ID))

	score := 70
	require.NoError(t, repo.UpdateAI(context.Background(), submission.ID, AIPatch{Score: &score}))

	// once a score exists the claim stays closed even after release
	claimed, err = repo.ClaimScoring(context.Background(), submission.ID)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestDeleteRemovesScreenshots(t *testing.T) {
	db := setupTestDB(t, &models.Hackathon{}, &models.Submission{}, &models.Screenshot{})
	repo := NewSubmissionRepository(db)
	submission := seedSubmission(t, db)

	require.NoError(t, repo.AddScreenshot(context.Background(), &models.Screenshot{
		SubmissionID: submission.ID,
		R2Key:        "screenshots/" + submission.ID + "/home.png",
		CapturedAt:   time.Now().UTC(),
	}))

	require.NoError(t, repo.Delete(context.Background(), submission.ID))

	_, err := repo.GetByID(context.Background(), submission.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Screenshot{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRatingUpsertKeepsOneRowPerJudge(t *testing.T) {
	db := setupTestDB(t, &models.Hackathon{}, &models.Submission{}, &models.Screenshot{}, &models.Rating{})
	ratings := NewRatingRepository(db)
	submission := seedSubmission(t, db)

	first := models.Rating{SubmissionID: submission.ID, JudgeID: 7, Score: 60, Comment: "solid"}
	require.NoError(t, ratings.Upsert(context.Background(), &first))

	second := models.Rating{SubmissionID: submission.ID, JudgeID: 7, Score: 85, Comment: "better on re-read"}
	require.NoError(t, ratings.Upsert(context.Background(), &second))

	list, err := ratings.ListBySubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 85, list[0].Score)
}
