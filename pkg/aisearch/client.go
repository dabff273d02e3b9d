// Package aisearch talks to a managed search-and-generation service that
// indexes object storage asynchronously and answers natural-language queries
// with a generated response plus the matched source documents. The upstream
// API is unreliable in two specific ways this client has to absorb: its
// server-side path filter sometimes rejects valid filter shapes with a 400,
// and sometimes silently returns documents from outside the requested
// prefix. Filtering quirks are handled here; prefix validation is the
// caller's responsibility because only the caller knows which prefix is
// correct.
package aisearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInstanceNotFound indicates the account or instance routing failed. This
// is a configuration problem and must not be retried.
var ErrInstanceNotFound = errors.New("ai search instance not found")

// Sync job states reported by the indexing service.
const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusRunning   = "running"
	JobStatusPending   = "pending"
)

// Document is one source file matched by a search. The path can surface in
// any of three places depending on upstream version, so consumers should go
// through NormalizeDocumentPath instead of reading fields directly.
type Document struct {
	Filename   string                 `json:"filename,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// SearchResult is the generated answer plus the documents it drew from.
type SearchResult struct {
	Response  string
	Documents []Document
}

// Config identifies the AI search instance.
type Config struct {
	BaseURL    string
	AccountID  string
	Instance   string
	Token      string
	Model      string
	MaxResults int
	HTTPClient *http.Client
}

// Client is an HTTP client for the AI search service.
type Client struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// New constructs an AI search client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.AccountID == "" || cfg.Instance == "" || cfg.Token == "" {
		return nil, fmt.Errorf("ai search account, instance, and token must be provided")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudflare.com/client/v4"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}

	return &Client{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/hackstage/hackstage-api/pkg/aisearch"),
		logger: logger.With().Str("component", "aisearch_client").Logger(),
	}, nil
}

type searchRequest struct {
	Query         string        `json:"query"`
	Model         string        `json:"model,omitempty"`
	MaxNumResults int           `json:"max_num_results"`
	Filters       *searchFilter `json:"filters,omitempty"`
}

type searchFilter struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type searchEnvelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		Response string     `json:"response"`
		Data     []Document `json:"data"`
	} `json:"result"`
}

// Search issues a scoped natural-language query. The primary attempt filters
// by the "folder" key; on HTTP 400 it retries once with the alternate
// "path" key and finally with no filter at all, since older instances
// reject one or the other shape.
func (c *Client) Search(parent context.Context, query, prefix string) (SearchResult, error) {
	ctx, span := c.tracer.Start(parent, "aisearch.search", trace.WithAttributes(
		attribute.String("aisearch.instance", c.cfg.Instance),
		attribute.String("aisearch.prefix", prefix),
	))
	defer span.End()

	filters := []*searchFilter{
		{Type: "eq", Key: "folder", Value: prefix},
		{Type: "eq", Key: "path", Value: prefix},
		nil,
	}
	if prefix == "" {
		filters = []*searchFilter{nil}
	}

	var lastErr error
	for i, filter := range filters {
		result, status, err := c.doSearch(ctx, searchRequest{
			Query:         query,
			Model:         c.cfg.Model,
			MaxNumResults: c.cfg.MaxResults,
			Filters:       filter,
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrInstanceNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return SearchResult{}, err
		}
		if status != http.StatusBadRequest || i == len(filters)-1 {
			break
		}
		c.logger.Warn().Err(err).Int("attempt", i+1).Msg("search filter rejected, retrying with fallback filter")
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return SearchResult{}, lastErr
}

func (c *Client) doSearch(ctx context.Context, payload searchRequest) (SearchResult, int, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/autorag/rags/%s/ai-search",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID, c.cfg.Instance)

	body, err := json.Marshal(payload)
	if err != nil {
		return SearchResult{}, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return SearchResult{}, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return SearchResult{}, 0, fmt.Errorf("ai search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchResult{}, resp.StatusCode, fmt.Errorf("read ai search response: %w", err)
	}

	var envelope searchEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if routingError(string(raw)) {
			return SearchResult{}, resp.StatusCode, fmt.Errorf("%w: %s", ErrInstanceNotFound, truncate(string(raw), 200))
		}
		return SearchResult{}, resp.StatusCode, fmt.Errorf("decode ai search response (%d): %w", resp.StatusCode, err)
	}

	if !envelope.Success || resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("ai search returned %d", resp.StatusCode)
		for _, e := range envelope.Errors {
			message = fmt.Sprintf("%s: %d %s", message, e.Code, e.Message)
			if routingError(e.Message) {
				return SearchResult{}, resp.StatusCode, fmt.Errorf("%w: %s", ErrInstanceNotFound, e.Message)
			}
		}
		return SearchResult{}, resp.StatusCode, errors.New(message)
	}

	return SearchResult{
		Response:  envelope.Result.Response,
		Documents: envelope.Result.Data,
	}, resp.StatusCode, nil
}

type syncEnvelope struct {
	Success bool `json:"success"`
	Result  struct {
		JobID string `json:"job_id"`
	} `json:"result"`
}

// TriggerSync asks the service to rescan the bucket and index new objects.
// It returns the id of the sync job, which can be polled with JobStatus.
func (c *Client) TriggerSync(parent context.Context) (string, error) {
	ctx, span := c.tracer.Start(parent, "aisearch.trigger_sync", trace.WithAttributes(
		attribute.String("aisearch.instance", c.cfg.Instance),
	))
	defer span.End()

	endpoint := fmt.Sprintf("%s/accounts/%s/autorag/rags/%s/sync",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID, c.cfg.Instance)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("sync request returned %d", resp.StatusCode)
	}

	var envelope syncEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode sync response: %w", err)
	}
	if !envelope.Success {
		return "", errors.New("sync request was not accepted")
	}

	return envelope.Result.JobID, nil
}

type jobEnvelope struct {
	Success bool `json:"success"`
	Result  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"result"`
}

// JobStatus polls the state of an indexing sync job.
func (c *Client) JobStatus(parent context.Context, jobID string) (string, error) {
	ctx, span := c.tracer.Start(parent, "aisearch.job_status", trace.WithAttributes(
		attribute.String("aisearch.job_id", jobID),
	))
	defer span.End()

	endpoint := fmt.Sprintf("%s/accounts/%s/autorag/rags/%s/jobs/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID, c.cfg.Instance, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("job status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("job status request returned %d", resp.StatusCode)
	}

	var envelope jobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode job status: %w", err)
	}

	return strings.ToLower(envelope.Result.Status), nil
}

// NormalizeDocumentPath resolves the document's path from whichever field the
// upstream populated, applied once at the ingestion boundary. Returns ""
// when no path can be determined.
func NormalizeDocumentPath(doc Document) string {
	if doc.Path != "" {
		return doc.Path
	}
	if doc.Attributes != nil {
		if path, ok := doc.Attributes["path"].(string); ok && path != "" {
			return path
		}
		if path, ok := doc.Attributes["folder"].(string); ok && path != "" {
			if doc.Filename != "" {
				return strings.TrimSuffix(path, "/") + "/" + doc.Filename
			}
			return path
		}
	}
	return doc.Filename
}

func routingError(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "could not route") ||
		strings.Contains(lowered, "no such instance") ||
		strings.Contains(lowered, "rag not found") ||
		strings.Contains(lowered, "autorag not found")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
