package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type hackathonRepoStub struct {
	items map[uint]models.Hackathon
}

func newHackathonRepoStub(items ...models.Hackathon) *hackathonRepoStub {
	stub := &hackathonRepoStub{items: map[uint]models.Hackathon{}}
	for _, item := range items {
		stub.items[item.ID] = item
	}
	return stub
}

func (s *hackathonRepoStub) List(_ context.Context, _ repository.HackathonFilter) ([]models.Hackathon, int64, error) {
	items := make([]models.Hackathon, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	return items, int64(len(items)), nil
}

func (s *hackathonRepoStub) GetByID(_ context.Context, id uint) (models.Hackathon, error) {
	if item, ok := s.items[id]; ok {
		return item, nil
	}
	return models.Hackathon{}, gorm.ErrRecordNotFound
}

func (s *hackathonRepoStub) GetBySlug(_ context.Context, slug string) (models.Hackathon, error) {
	for _, item := range s.items {
		if item.Slug == slug {
			return item, nil
		}
	}
	return models.Hackathon{}, gorm.ErrRecordNotFound
}

func (s *hackathonRepoStub) Create(_ context.Context, hackathon *models.Hackathon) error {
	hackathon.ID = uint(len(s.items) + 1)
	s.items[hackathon.ID] = *hackathon
	return nil
}

func (s *hackathonRepoStub) Update(_ context.Context, hackathon *models.Hackathon) error {
	s.items[hackathon.ID] = *hackathon
	return nil
}

type submissionRepoStub struct {
	items       map[string]models.Submission
	screenshots map[uint]models.Screenshot
	nextShotID  uint
	deleted     []string
}

func newSubmissionRepoStub(items ...models.Submission) *submissionRepoStub {
	stub := &submissionRepoStub{
		items:       map[string]models.Submission{},
		screenshots: map[uint]models.Screenshot{},
	}
	for _, item := range items {
		stub.items[item.ID] = item
	}
	return stub
}

func (s *submissionRepoStub) ListByHackathon(_ context.Context, hackathonID uint) ([]models.Submission, error) {
	items := make([]models.Submission, 0)
	for _, item := range s.items {
		if item.HackathonID == hackathonID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *submissionRepoStub) GetByID(_ context.Context, id string) (models.Submission, error) {
	if item, ok := s.items[id]; ok {
		return item, nil
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (s *submissionRepoStub) Create(_ context.Context, submission *models.Submission) error {
	s.items[submission.ID] = *submission
	return nil
}

func (s *submissionRepoStub) Delete(_ context.Context, id string) error {
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *submissionRepoStub) UpdateSource(_ context.Context, id string, patch repository.SourcePatch) error {
	item, ok := s.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if patch.ProcessingState != nil {
		item.Source.ProcessingState = *patch.ProcessingState
	}
	if patch.AISummary != nil {
		item.Source.AISummary = *patch.AISummary
	}
	s.items[id] = item
	return nil
}

func (s *submissionRepoStub) UpdateAI(_ context.Context, id string, patch repository.AIPatch) error {
	item, ok := s.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if patch.Score != nil {
		item.AI.Score = patch.Score
	}
	if patch.Summary != nil {
		item.AI.Summary = *patch.Summary
	}
	s.items[id] = item
	return nil
}

func (s *submissionRepoStub) ResetAI(_ context.Context, id string) error {
	item, ok := s.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.AI = models.SubmissionAI{}
	item.Source.AISummary = ""
	item.Source.ProcessingState = models.ProcessingStateIndexing
	s.items[id] = item
	return nil
}

func (s *submissionRepoStub) ClaimScoring(_ context.Context, id string) (bool, error) {
	item, ok := s.items[id]
	if !ok || item.AI.InFlight || item.AI.Score != nil {
		return false, nil
	}
	item.AI.InFlight = true
	s.items[id] = item
	return true, nil
}

func (s *submissionRepoStub) ReleaseScoring(_ context.Context, id string) error {
	item := s.items[id]
	item.AI.InFlight = false
	s.items[id] = item
	return nil
}

func (s *submissionRepoStub) AddScreenshot(_ context.Context, screenshot *models.Screenshot) error {
	s.nextShotID++
	screenshot.ID = s.nextShotID
	s.screenshots[screenshot.ID] = *screenshot
	return nil
}

func (s *submissionRepoStub) GetScreenshot(_ context.Context, id uint) (models.Screenshot, error) {
	if shot, ok := s.screenshots[id]; ok {
		return shot, nil
	}
	return models.Screenshot{}, gorm.ErrRecordNotFound
}

func (s *submissionRepoStub) DeleteScreenshot(_ context.Context, id uint) error {
	delete(s.screenshots, id)
	return nil
}

type ratingRepoStub struct {
	items []models.Rating
}

func (s *ratingRepoStub) Upsert(_ context.Context, rating *models.Rating) error {
	for i, existing := range s.items {
		if existing.SubmissionID == rating.SubmissionID && existing.JudgeID == rating.JudgeID {
			rating.ID = existing.ID
			s.items[i] = *rating
			return nil
		}
	}
	rating.ID = uint(len(s.items) + 1)
	s.items = append(s.items, *rating)
	return nil
}

func (s *ratingRepoStub) ListBySubmission(_ context.Context, submissionID string) ([]models.Rating, error) {
	items := make([]models.Rating, 0)
	for _, item := range s.items {
		if item.SubmissionID == submissionID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *ratingRepoStub) ListByHackathon(_ context.Context, _ uint) ([]models.Rating, error) {
	return s.items, nil
}

type triggerStub struct {
	calls []struct {
		ID    string
		Force bool
	}
	err error
}

func (s *triggerStub) Trigger(submissionID string, force bool) error {
	s.calls = append(s.calls, struct {
		ID    string
		Force bool
	}{submissionID, force})
	return s.err
}

type cleanerStub struct {
	prefixes []string
}

func (s *cleanerStub) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.prefixes = append(s.prefixes, prefix)
	return 1, nil
}

func openHackathon(id uint) models.Hackathon {
	now := time.Now()
	return models.Hackathon{
		ID:          id,
		Slug:        "spring-jam",
		Title:       "Spring Jam",
		Rubric:      "originality, execution, polish",
		Status:      models.HackathonStatusOpen,
		JudgeWeight: 0.7,
		StartsAt:    now.Add(-24 * time.Hour),
		EndsAt:      now.Add(24 * time.Hour),
	}
}

func entry(id string, hackathonID uint, title string) models.Submission {
	return models.Submission{
		ID:          id,
		HackathonID: hackathonID,
		Title:       title,
		TeamName:    strings.ReplaceAll(title, " ", "-"),
		RepoURL:     "https://github.com/acme/" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
	}
}
