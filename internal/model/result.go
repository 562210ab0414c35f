package model

import "time"

// SubmissionRow is one answered question ready to be stored. GivenAnswer is
// 1-based.
type SubmissionRow struct {
	QuestionID  int `json:"question_id"`
	GivenAnswer int `json:"given_answer"`
}

// ResultRow is a stored per-question result joined with its test and
// question. The joined columns are nil when the referenced row is gone.
type ResultRow struct {
	ResultID        int64     `json:"result_id"`
	StudentID       int       `json:"student_id"`
	TestID          int       `json:"test_id"`
	QuestionID      int       `json:"question_id"`
	GivenAnswer     int       `json:"given_answer"`
	CreatedAt       time.Time `json:"created_at"`
	TestTitle       *string   `json:"test_title,omitempty"`
	TestDescription *string   `json:"test_description,omitempty"`
	QuestionPrompt  *string   `json:"question_prompt,omitempty"`
	AnswerKey       *int      `json:"answer_key,omitempty"`
}

// IsCorrect compares the given answer against the joined key. A missing key
// is never correct.
func (r ResultRow) IsCorrect() bool {
	return r.AnswerKey != nil && *r.AnswerKey == r.GivenAnswer
}

// AnswerReview is one answered question inside a summary.
type AnswerReview struct {
	QuestionID    int     `json:"question_id"`
	Prompt        *string `json:"prompt,omitempty"`
	GivenAnswer   int     `json:"given_answer"`
	CorrectAnswer *int    `json:"correct_answer"`
	IsCorrect     bool    `json:"is_correct"`
}

// TestSummary is a per-test view derived from result rows. It is never
// stored.
type TestSummary struct {
	TestID         int            `json:"test_id"`
	Title          *string        `json:"title,omitempty"`
	Description    *string        `json:"description,omitempty"`
	TotalQuestions int            `json:"total_questions"`
	CorrectAnswers int            `json:"correct_answers"`
	Score          int            `json:"score"`
	CompletedAt    time.Time      `json:"completed_at"`
	Answers        []AnswerReview `json:"answers"`
}

// ListQuery bounds a history listing.
type ListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
