package model

import "time"

// Test represents a timed multiple-choice test.
type Test struct {
	ID               int       `json:"test_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	TimeLimitMinutes *int      `json:"time_limit_minutes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// TotalSeconds returns the countdown budget of the test. A missing or
// non-positive time limit falls back to the given default.
func (t *Test) TotalSeconds(fallback int) int {
	if t == nil || t.TimeLimitMinutes == nil || *t.TimeLimitMinutes <= 0 {
		return fallback
	}
	return *t.TimeLimitMinutes * 60
}

// Difficulty labels a test by its time limit.
type Difficulty string

const (
	DifficultyQuick    Difficulty = "QUICK"
	DifficultyStandard Difficulty = "STANDARD"
	DifficultyExtended Difficulty = "EXTENDED"
)

// TestListing is a test as shown in the student's catalogue.
type TestListing struct {
	Test
	QuestionCount int        `json:"question_count"`
	Difficulty    Difficulty `json:"difficulty"`
	Taken         bool       `json:"taken"`
}
