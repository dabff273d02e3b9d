package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/hackstage/hackstage-api/pkg/aisearch"
	"github.com/hackstage/hackstage-api/pkg/github"
)

// Task is one invocation of the processing state machine for a submission.
type Task struct {
	SubmissionID    string `json:"submission_id"`
	Attempt         int    `json:"attempt"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

// Outcome tells the scheduler what to do after a step: either the pipeline is
// finished for this submission, or the same task should run again after a
// delay. Steps never sleep; all waiting is expressed through RunAgainAfter.
type Outcome struct {
	Done          bool
	RunAgainAfter time.Duration
}

func done() Outcome {
	return Outcome{Done: true}
}

func runAgainAfter(d time.Duration) Outcome {
	return Outcome{RunAgainAfter: d}
}

// Policy bounds the pipeline's polling and filtering behavior. The force
// thresholds are escape hatches for an upstream index whose filtering is
// unreliable; they are configuration because the right values are a product
// decision, not an engineering one.
type Policy struct {
	MaxAttempts      int
	InitialPollDelay time.Duration
	MaxPollDelay     time.Duration
	SettleDelay      time.Duration
	ForceIndexAfter  time.Duration
	MinProbeAttempts int
	MaxFileBytes     int64
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      60,
		InitialPollDelay: 3 * time.Second,
		MaxPollDelay:     10 * time.Second,
		SettleDelay:      7 * time.Second,
		ForceIndexAfter:  5 * time.Minute,
		MinProbeAttempts: 5,
		MaxFileBytes:     100 * 1024,
	}
}

// pollDelay grows linearly with the attempt count up to the ceiling.
func (p Policy) pollDelay(attempt int) time.Duration {
	delay := p.InitialPollDelay + time.Duration(attempt)*500*time.Millisecond
	if delay > p.MaxPollDelay {
		delay = p.MaxPollDelay
	}
	return delay
}

// SourceProvider fetches repository metadata, archives, and READMEs.
type SourceProvider interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	DownloadArchive(ctx context.Context, owner, repo string, branches []string) (github.Archive, error)
	FetchReadme(ctx context.Context, owner, repo string) (string, string, error)
}

// ObjectStore persists extracted files under a per-submission prefix.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// SearchClient queries the AI search service and its indexing jobs.
type SearchClient interface {
	Search(ctx context.Context, query, prefix string) (aisearch.SearchResult, error)
	TriggerSync(ctx context.Context) (string, error)
	JobStatus(ctx context.Context, jobID string) (string, error)
}
