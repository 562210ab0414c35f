package model

import "time"

// Attempt is the log entry written when a session completes.
type Attempt struct {
	ID            int64     `json:"attempt_id"`
	StudentID     int       `json:"student_id"`
	TestID        int       `json:"test_id"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	Answered      int       `json:"answered"`
	Percentage    int       `json:"percentage"`
	TimeUsed      int       `json:"time_used_seconds"`
	TotalSeconds  int       `json:"total_seconds"`
	AutoSubmitted bool      `json:"auto_submitted"`
	FinishedAt    time.Time `json:"finished_at"`
}
