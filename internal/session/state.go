// Package session runs a single timed test attempt: cursor movement, answer
// capture, the countdown and submission.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// Status enumerates session states.
type Status string

const (
	StatusLoading    Status = "LOADING"
	StatusActive     Status = "ACTIVE"
	StatusSubmitting Status = "SUBMITTING"
	StatusCompleted  Status = "COMPLETED"
	StatusAbandoned  Status = "ABANDONED"
)

// Terminal reports whether the session can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

var (
	// ErrLoad wraps failures fetching the test or its questions. The session
	// stays loading and Start may be called again.
	ErrLoad = errors.New("test could not be loaded")
	// ErrSubmission wraps persistence failures. The session stays submitting
	// with its answers and RetrySubmit may be called.
	ErrSubmission = errors.New("results could not be saved")
	// ErrOwnershipConflict means another session took the countdown. A
	// session that lost it while active is abandoned. It is never shown to
	// the student.
	ErrOwnershipConflict = errors.New("session no longer owns the countdown")

	ErrNotLoading        = errors.New("session is not loading")
	ErrNotActive         = errors.New("session is not active")
	ErrNoSelection       = errors.New("no choice selected")
	ErrInvalidChoice     = errors.New("choice is not offered for this question")
	ErrAtFirstQuestion   = errors.New("already at the first question")
	ErrNotSubmitting     = errors.New("session has no pending submission")
	ErrLoadInProgress    = errors.New("test is already loading")
	ErrSubmitInProgress  = errors.New("submission already in progress")
	ErrLeaveNotRequested = errors.New("leave was not requested")
)

// Store is the remote data the session depends on.
type Store interface {
	FetchTestByID(ctx context.Context, testID int) (*model.Test, error)
	FetchQuestionsForTest(ctx context.Context, testID int) ([]model.Question, error)
	SubmitResultRows(ctx context.Context, studentID, testID int, rows []model.SubmissionRow) (int, error)
}

// Config holds the countdown parameters.
type Config struct {
	DefaultSeconds int
	WarningSeconds int
	TickInterval   time.Duration
	SubmitTimeout  time.Duration
}

// DefaultConfig is a ten minute budget with a two minute warning.
func DefaultConfig() Config {
	return Config{
		DefaultSeconds: 600,
		WarningSeconds: 120,
		TickInterval:   time.Second,
		SubmitTimeout:  10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultSeconds <= 0 {
		c.DefaultSeconds = d.DefaultSeconds
	}
	if c.WarningSeconds < 0 {
		c.WarningSeconds = d.WarningSeconds
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = d.SubmitTimeout
	}
	return c
}

// Outcome is the scored result of a completed session.
type Outcome struct {
	Score          int                   `json:"score"`
	Total          int                   `json:"total"`
	Answered       int                   `json:"answered"`
	Percentage     int                   `json:"percentage"`
	Grade          string                `json:"grade"`
	Feedback       string                `json:"feedback"`
	TimeUsed       int                   `json:"time_used_seconds"`
	TotalSeconds   int                   `json:"total_seconds"`
	TimeEfficiency int                   `json:"time_efficiency"`
	AutoSubmitted  bool                  `json:"auto_submitted"`
	Persisted      int                   `json:"persisted_rows"`
	Rows           []model.SubmissionRow `json:"rows"`
	FinishedAt     time.Time             `json:"finished_at"`
}

func newOutcome(res *scoring.Result, persisted, total, remaining int, auto bool, at time.Time) *Outcome {
	pct := res.Percentage()
	used := total - remaining
	return &Outcome{
		Score:          res.Score,
		Total:          res.Total,
		Answered:       res.Answered,
		Percentage:     pct,
		Grade:          scoring.Grade(pct),
		Feedback:       scoring.Feedback(pct),
		TimeUsed:       used,
		TotalSeconds:   total,
		TimeEfficiency: scoring.TimeEfficiency(total, used),
		AutoSubmitted:  auto,
		Persisted:      persisted,
		Rows:           res.Rows,
		FinishedAt:     at,
	}
}

// Snapshot is a read-only copy of the session for callers and clients.
type Snapshot struct {
	StudentID     int                       `json:"student_id"`
	TestID        int                       `json:"test_id"`
	Title         string                    `json:"title,omitempty"`
	Status        Status                    `json:"status"`
	Cursor        int                       `json:"cursor"`
	QuestionCount int                       `json:"question_count"`
	Question      *model.QuestionForStudent `json:"question,omitempty"`
	Selected      model.Answer              `json:"selected"`
	Answers       []model.Answer            `json:"answers"`
	Remaining     int                       `json:"remaining_seconds"`
	Total         int                       `json:"total_seconds"`
	Warning       bool                      `json:"time_warning"`
	LeavePending  bool                      `json:"leave_pending"`
	Outcome       *Outcome                  `json:"outcome,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

// EventKind tells subscribers what changed.
type EventKind string

const (
	EventState     EventKind = "state"
	EventTick      EventKind = "tick"
	EventCompleted EventKind = "completed"
)

// Event carries a snapshot taken right after a change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}
