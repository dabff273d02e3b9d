package ai

import "context"

// ScoreInput contains the artefacts needed to grade a hackathon submission.
type ScoreInput struct {
	ProjectTitle string
	TeamName     string
	Rubric       string
	Summary      string
	Readme       string
}

// ScoreResult is the structured review returned by the AI scorer.
type ScoreResult struct {
	Score    int                    `json:"score"`
	Verdict  string                 `json:"verdict"`
	Feedback string                 `json:"feedback"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Scorer describes an AI model capable of grading submissions against a rubric.
type Scorer interface {
	Score(ctx context.Context, input ScoreInput) (ScoreResult, error)
}
