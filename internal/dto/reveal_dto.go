package dto

import "time"

// RevealStanding is one ranked entry in the ceremony. Rank 1 is the winner;
// entries are revealed from the highest rank number down.
type RevealStanding struct {
	Rank         int      `json:"rank"`
	SubmissionID string   `json:"submission_id"`
	Title        string   `json:"title"`
	TeamName     string   `json:"team_name"`
	JudgeAverage *float64 `json:"judge_average"`
	AIScore      *int     `json:"ai_score"`
	FinalScore   float64  `json:"final_score"`
	Revealed     bool     `json:"revealed"`
}

// RevealStateResponse is the ceremony snapshot served over HTTP and pushed
// to websocket viewers after every step. Unrevealed standings are masked.
type RevealStateResponse struct {
	HackathonID  uint             `json:"hackathon_id"`
	Started      bool             `json:"started"`
	Finished     bool             `json:"finished"`
	NextRank     int              `json:"next_rank"`
	TotalEntries int              `json:"total_entries"`
	Standings    []RevealStanding `json:"standings"`
	LastRevealed *RevealStanding  `json:"last_revealed,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// RevealEvent is the websocket frame pushed to ceremony viewers.
type RevealEvent struct {
	Type  string              `json:"type"`
	State RevealStateResponse `json:"state"`
}
