package models

import "time"

// Hackathon statuses.
const (
	HackathonStatusDraft    = "draft"
	HackathonStatusOpen     = "open"
	HackathonStatusJudging  = "judging"
	HackathonStatusRevealed = "revealed"
)

// Hackathon represents a single event with its judging rubric.
type Hackathon struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Slug        string    `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Rubric      string    `gorm:"type:text" json:"rubric"`
	Status      string    `gorm:"size:32;not null;default:draft" json:"status"`
	CoverURL    string    `gorm:"size:512" json:"cover_url"`
	JudgeWeight float64   `gorm:"default:0.7" json:"judge_weight"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AcceptsSubmissions reports whether contestants may still submit entries.
func (h Hackathon) AcceptsSubmissions() bool {
	return h.Status == HackathonStatusOpen
}
