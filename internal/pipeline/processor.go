// Package pipeline implements the submission processing state machine:
// download the repository archive, upload its filtered contents to object
// storage, wait for the AI search service to index them, generate a
// validated summary, and score the project against the hackathon rubric.
//
// Every step is expressed as "do one check, then either finish or ask to be
// re-invoked later"; the durable scheduler owns the waiting. That keeps the
// machine resumable from persisted state after a process restart and makes
// it testable without timers.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/repository"
	"github.com/hackstage/hackstage-api/pkg/ai"
	"github.com/hackstage/hackstage-api/pkg/aisearch"
)

const probeQuery = "List the files that make up this project."

// Processor executes single steps of the submission pipeline.
type Processor struct {
	submissions repository.SubmissionRepository
	hackathons  repository.HackathonRepository
	provider    SourceProvider
	store       ObjectStore
	search      SearchClient
	scorer      ai.Scorer
	policy      Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProcessor constructs a pipeline processor. The scorer and search client
// may be nil when unconfigured; affected stages degrade to diagnostic
// summaries instead of failing.
func NewProcessor(
	submissions repository.SubmissionRepository,
	hackathons repository.HackathonRepository,
	provider SourceProvider,
	store ObjectStore,
	search SearchClient,
	scorer ai.Scorer,
	policy Policy,
	logger zerolog.Logger,
) *Processor {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}

	return &Processor{
		submissions: submissions,
		hackathons:  hackathons,
		provider:    provider,
		store:       store,
		search:      search,
		scorer:      scorer,
		policy:      policy,
		logger:      logger.With().Str("component", "pipeline").Logger(),
		now:         time.Now,
	}
}

// Process runs one step of the state machine for the given task. It is safe
// to invoke repeatedly: a completed submission short-circuits immediately,
// and every stage re-derives its position from the persisted record.
func (p *Processor) Process(ctx context.Context, task Task) (Outcome, error) {
	submission, err := p.submissions.GetByID(ctx, task.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Outcome{}, ErrSubmissionNotFound
		}
		return Outcome{}, err
	}

	// Completed work is never redone unless explicitly forced.
	if !task.ForceRegenerate && submission.Processed() {
		return done(), nil
	}

	if task.ForceRegenerate && hasPriorResults(submission) {
		if err := p.submissions.ResetAI(ctx, submission.ID); err != nil {
			return Outcome{}, err
		}
		submission, err = p.submissions.GetByID(ctx, submission.ID)
		if err != nil {
			return Outcome{}, err
		}
		p.logger.Info().Str("submission_id", submission.ID).Msg("cleared prior results for forced regeneration")
	}

	if !submission.Uploaded() {
		if err := p.ingest(ctx, submission); err != nil {
			if IsFatal(err) {
				p.markError(ctx, submission.ID)
				stepOutcomes.WithLabelValues("fatal").Inc()
				return Outcome{}, err
			}
			p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("ingest failed, will retry")
			stepOutcomes.WithLabelValues("retry").Inc()
			return runAgainAfter(p.policy.pollDelay(task.Attempt)), nil
		}

		// Give the index service a moment to observe the new objects
		// before the first poll.
		stepOutcomes.WithLabelValues("uploaded").Inc()
		return runAgainAfter(p.policy.SettleDelay), nil
	}

	indexed, outcome, err := p.checkIndexed(ctx, submission, task)
	if err != nil {
		if IsFatal(err) {
			p.markError(ctx, submission.ID)
			stepOutcomes.WithLabelValues("fatal").Inc()
			return Outcome{}, err
		}
		// Ambiguous upstream responses are not failures; keep polling.
		p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("indexing check inconclusive")
	}
	if !indexed {
		if task.Attempt < p.policy.MaxAttempts {
			stepOutcomes.WithLabelValues("polling").Inc()
			return outcome, nil
		}
		attemptsExhausted.Inc()
		p.logger.Warn().
			Str("submission_id", submission.ID).
			Int("attempts", task.Attempt).
			Msg("max indexing attempts exceeded, proceeding without confirmation")
	}

	return p.summarizeAndScore(ctx, submission)
}

func hasPriorResults(submission models.Submission) bool {
	return submission.Source.AISummary != "" ||
		submission.AI.Score != nil ||
		submission.Source.ProcessingState == models.ProcessingStateComplete
}

// checkIndexed determines whether the submission's files are queryable. The
// sync job status is authoritative when it resolves; otherwise a probe query
// against the path prefix stands in. Two escape hatches bound the wait: a
// wall-clock threshold since upload, and the caller's attempt ceiling.
func (p *Processor) checkIndexed(ctx context.Context, submission models.Submission, task Task) (bool, Outcome, error) {
	if jobID := submission.Source.AISearchSyncJobID; jobID != "" && p.search != nil {
		status, err := p.search.JobStatus(ctx, jobID)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("sync job status unavailable, probing instead")
		case status == aisearch.JobStatusCompleted:
			now := p.now()
			if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
				AISearchSyncCompletedAt: &now,
			}); err != nil {
				p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to record sync completion time")
			}
			return true, Outcome{}, nil
		case status == aisearch.JobStatusFailed:
			p.logger.Warn().Str("job_id", jobID).Msg("sync job failed, falling back to document probe")
		default:
			// running or pending: not yet.
			return false, runAgainAfter(p.policy.pollDelay(task.Attempt)), nil
		}
	}

	if p.search != nil {
		result, err := p.search.Search(ctx, probeQuery, submission.Source.R2Key)
		if err != nil {
			if errors.Is(err, aisearch.ErrInstanceNotFound) {
				return false, Outcome{}, &ConfigError{Reason: err.Error()}
			}
			return false, runAgainAfter(p.policy.pollDelay(task.Attempt)), err
		}

		if len(result.Documents) > 0 {
			matched, _ := partitionByPrefix(result.Documents, submission.Source.R2Key)
			if len(matched) > 0 {
				return true, Outcome{}, nil
			}
			// Documents from other prefixes mean the index is alive but the
			// filter is unreliable; fall through to the wall-clock escape.
		}
	}

	if p.waitedLongEnough(submission, task) {
		forcedIndexed.Inc()
		p.logger.Warn().
			Str("submission_id", submission.ID).
			Int("attempt", task.Attempt).
			Msg("forcing indexed state after grace period")
		return true, Outcome{}, nil
	}

	return false, runAgainAfter(p.policy.pollDelay(task.Attempt)), nil
}

func (p *Processor) waitedLongEnough(submission models.Submission, task Task) bool {
	if submission.Source.UploadedAt == nil {
		return false
	}
	return p.now().Sub(*submission.Source.UploadedAt) > p.policy.ForceIndexAfter &&
		task.Attempt >= p.policy.MinProbeAttempts
}

// summarizeAndScore runs the generating stage: persist a validated summary,
// then invoke the scorer exactly once, then mark the submission complete.
// Scoring failures are logged and swallowed; they never block completion.
func (p *Processor) summarizeAndScore(ctx context.Context, submission models.Submission) (Outcome, error) {
	started := p.now()
	generating := models.ProcessingStateGenerating
	if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
		ProcessingState:            &generating,
		SummaryGenerationStartedAt: &started,
	}); err != nil {
		return Outcome{}, err
	}

	outcome := p.generateSummary(ctx, submission)

	completed := p.now()
	if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
		AISummary:                    &outcome.Text,
		SummarizedAt:                 &completed,
		SummaryGenerationCompletedAt: &completed,
	}); err != nil {
		return Outcome{}, err
	}
	if err := p.submissions.UpdateAI(ctx, submission.ID, repository.AIPatch{
		Summary:        &outcome.Text,
		LastReviewedAt: &completed,
	}); err != nil {
		return Outcome{}, err
	}

	if outcome.Accepted && submission.AI.Score == nil {
		p.scoreOnce(ctx, submission, outcome.Text)
	}

	complete := models.ProcessingStateComplete
	if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
		ProcessingState: &complete,
	}); err != nil {
		return Outcome{}, err
	}

	stepOutcomes.WithLabelValues("complete").Inc()
	return done(), nil
}

// scoreOnce claims the scoring stage before invoking the scorer so that
// overlapping triggers cannot double-bill the model.
func (p *Processor) scoreOnce(ctx context.Context, submission models.Submission, summary string) {
	if p.scorer == nil {
		p.logger.Debug().Str("submission_id", submission.ID).Msg("no scorer configured, skipping scoring")
		return
	}

	claimed, err := p.submissions.ClaimScoring(ctx, submission.ID)
	if err != nil {
		p.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("failed to claim scoring")
		return
	}
	if !claimed {
		p.logger.Info().Str("submission_id", submission.ID).Msg("scoring already claimed or scored, skipping")
		return
	}

	rubric := ""
	if hackathon, err := p.hackathons.GetByID(ctx, submission.HackathonID); err == nil {
		rubric = hackathon.Rubric
	} else {
		p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("rubric unavailable, scoring without it")
	}

	result, err := p.scorer.Score(ctx, ai.ScoreInput{
		ProjectTitle: submission.Title,
		TeamName:     submission.TeamName,
		Rubric:       rubric,
		Summary:      summary,
		Readme:       submission.Source.Readme,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("scoring failed")
		if releaseErr := p.submissions.ReleaseScoring(ctx, submission.ID); releaseErr != nil {
			p.logger.Error().Err(releaseErr).Str("submission_id", submission.ID).Msg("failed to release scoring claim")
		}
		return
	}

	detail, err := json.Marshal(result)
	if err != nil {
		detail = nil
	}

	now := p.now()
	inFlight := false
	if err := p.submissions.UpdateAI(ctx, submission.ID, repository.AIPatch{
		Score:            &result.Score,
		ScoreDetail:      detail,
		ScoreCompletedAt: &now,
		InFlight:         &inFlight,
	}); err != nil {
		p.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("failed to persist score")
	}
}

func (p *Processor) markError(ctx context.Context, submissionID string) {
	state := models.ProcessingStateError
	if err := p.submissions.UpdateSource(ctx, submissionID, repository.SourcePatch{
		ProcessingState: &state,
	}); err != nil {
		p.logger.Error().Err(err).Str("submission_id", submissionID).Msg("failed to record error state")
	}
}
