package models

import "time"

// Rating is a judge's score for a submission. One rating per judge per
// submission; repeated submits update the existing row.
type Rating struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SubmissionID string     `gorm:"size:36;not null;uniqueIndex:idx_rating_judge" json:"submission_id"`
	JudgeID      uint       `gorm:"not null;uniqueIndex:idx_rating_judge" json:"judge_id"`
	Score        int        `gorm:"not null" json:"score"`
	Comment      string     `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Submission   Submission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
