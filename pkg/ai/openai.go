package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	scoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hackstage",
		Subsystem: "ai",
		Name:      "score_duration_seconds",
		Help:      "Duration of AI scoring requests",
	}, []string{"model"})

	scoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackstage",
		Subsystem: "ai",
		Name:      "score_failures_total",
		Help:      "Number of AI scoring failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI scorer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIScorer implements Scorer against the OpenAI chat completion API.
type OpenAIScorer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIScorer builds a new scorer using the provided configuration.
func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 768
	}

	tracer := otel.Tracer("github.com/hackstage/hackstage-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIScorer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Score sends the grading request to OpenAI and parses the response.
func (s *OpenAIScorer) Score(parent context.Context, input ScoreInput) (ScoreResult, error) {
	ctx, span := s.tracer.Start(parent, "openai.score", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scorerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScorePrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	scoreDuration.WithLabelValues(s.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		scoreFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScoreResult{}, fmt.Errorf("openai score: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		scoreFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScoreResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseScoreResponse(content)
	if err != nil {
		scoreFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScoreResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func scorerSystemPrompt() string {
	return "You are a hackathon judge. Grade the project described below against the event rubric. " +
		"Respond with a JSON object containing score (integer 0-100), verdict (one short phrase), and feedback " +
		"(two or three sentences aimed at the team). Judge only what the summary supports; do not invent features."
}

func buildScorePrompt(input ScoreInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Project\n")
	builder.WriteString(input.ProjectTitle)
	builder.WriteString("\n\n## Team\n")
	builder.WriteString(input.TeamName)
	builder.WriteString("\n\n## Rubric\n")
	builder.WriteString(input.Rubric)
	builder.WriteString("\n\n## Code Summary\n")
	builder.WriteString(input.Summary)
	if input.Readme != "" {
		builder.WriteString("\n\n## README\n")
		builder.WriteString(input.Readme)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseScoreResponse(content string) (ScoreResult, error) {
	type payload struct {
		Score    int    `json:"score"`
		Verdict  string `json:"verdict"`
		Feedback string `json:"feedback"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return ScoreResult{}, fmt.Errorf("parse score json: %w", err)
	}

	if data.Score < 0 {
		data.Score = 0
	}
	if data.Score > 100 {
		data.Score = 100
	}

	return ScoreResult{
		Score:    data.Score,
		Verdict:  data.Verdict,
		Feedback: data.Feedback,
	}, nil
}
