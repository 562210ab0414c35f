package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"github.com/stemsi/exstem-quiz/internal/timer"
)

type fakeStore struct {
	mu         sync.Mutex
	test       *model.Test
	questions  []model.Question
	fetchErr   error
	submitErr  error
	duringLoad func()
	submitted  [][]model.SubmissionRow
}

func (f *fakeStore) FetchTestByID(_ context.Context, testID int) (*model.Test, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	t := *f.test
	t.ID = testID
	return &t, nil
}

func (f *fakeStore) FetchQuestionsForTest(context.Context, int) ([]model.Question, error) {
	if f.duringLoad != nil {
		f.duringLoad()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questions, nil
}

func (f *fakeStore) SubmitResultRows(_ context.Context, _, _ int, rows []model.SubmissionRow) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return 0, f.submitErr
	}
	f.submitted = append(f.submitted, rows)
	return len(rows), nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func minutes(m int) *int { return &m }

func pythonQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Prompt: "What is the output of print(2 ** 3)?", Choices: [4]string{"6", "8", "9", "5"}, AnswerKey: 2},
		{ID: 2, Prompt: "Which keyword defines a function?", Choices: [4]string{"func", "define", "def", "function"}, AnswerKey: 3},
		{ID: 3, Prompt: "Which type is immutable?", Choices: [4]string{"list", "dict", "tuple", ""}, AnswerKey: 3},
	}
}

type harness struct {
	store   *fakeStore
	clock   *timer.FakeClock
	arbiter *timer.Arbiter
	events  []Event
	mu      sync.Mutex
}

func newHarness(limit *int) *harness {
	return &harness{
		store: &fakeStore{
			test:      &model.Test{Title: "Python Basics", TimeLimitMinutes: limit},
			questions: pythonQuestions(),
		},
		clock:   timer.NewFakeClock(time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)),
		arbiter: timer.NewArbiter(),
	}
}

func (h *harness) session(testID int) *Session {
	return New(Options{
		StudentID: 42,
		TestID:    testID,
		Store:     h.store,
		Arbiter:   h.arbiter,
		Clock:     h.clock,
		Config:    DefaultConfig(),
		Logger:    zerolog.Nop(),
		OnEvent: func(e Event) {
			h.mu.Lock()
			h.events = append(h.events, e)
			h.mu.Unlock()
		},
	})
}

func (h *harness) count(kind EventKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func answer(t *testing.T, s *Session, choice int) {
	t.Helper()
	require.NoError(t, s.SelectChoice(choice))
	require.NoError(t, s.Advance(context.Background()))
}

func TestSession_StartUsesTimeLimit(t *testing.T) {
	h := newHarness(minutes(15))
	s := h.session(1)

	require.NoError(t, s.Start(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, StatusActive, snap.Status)
	assert.Equal(t, 900, snap.Total)
	assert.Equal(t, 900, snap.Remaining)
	assert.Equal(t, 3, snap.QuestionCount)
	require.NotNil(t, snap.Question)
	assert.Equal(t, 1, snap.Question.ID)
	assert.True(t, h.arbiter.IsActive(1))
	assert.Equal(t, 1, h.clock.Active())
}

func TestSession_DefaultBudgetWhenNoLimit(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)

	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 600, s.Snapshot().Total)
	assert.False(t, s.Snapshot().Warning)
}

func TestSession_ShortTestStartsWarned(t *testing.T) {
	h := newHarness(minutes(1))
	s := h.session(1)

	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 60, s.Snapshot().Total)
	assert.True(t, s.Snapshot().Warning)
}

func TestSession_AutoSubmitOnExpiry(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	answer(t, s, 1) // correct
	answer(t, s, 2) // correct
	require.NoError(t, s.SelectChoice(0))

	h.clock.Advance(600 * time.Second)

	snap := s.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, 2, snap.Outcome.Score)
	assert.Equal(t, 3, snap.Outcome.Total)
	assert.Equal(t, 2, snap.Outcome.Answered)
	assert.Len(t, snap.Outcome.Rows, 2, "unrecorded selection is not submitted")
	assert.Equal(t, 600, snap.Outcome.TimeUsed)
	assert.True(t, snap.Outcome.AutoSubmitted)
	assert.Equal(t, 67, snap.Outcome.Percentage)
	assert.Equal(t, "C", snap.Outcome.Grade)
	assert.Equal(t, 0, snap.Remaining)

	require.Equal(t, 1, h.store.calls())
	assert.Equal(t, []model.SubmissionRow{
		{QuestionID: 1, GivenAnswer: 2},
		{QuestionID: 2, GivenAnswer: 3},
	}, h.store.submitted[0])
	assert.Zero(t, h.clock.Active())
	assert.False(t, h.arbiter.IsActive(1))
	assert.Equal(t, 1, h.count(EventCompleted))
}

func TestSession_WarningThreshold(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	h.clock.Advance(479 * time.Second)
	assert.Equal(t, 121, s.Snapshot().Remaining)
	assert.False(t, s.Snapshot().Warning)

	h.clock.Advance(time.Second)
	assert.Equal(t, 120, s.Snapshot().Remaining)
	assert.True(t, s.Snapshot().Warning)
}

func TestSession_StaleTickIsNoop(t *testing.T) {
	h := newHarness(nil)
	a := h.session(1)
	b := h.session(2)
	require.NoError(t, a.Start(context.Background()))
	h.clock.Advance(10 * time.Second)

	require.NoError(t, b.Start(context.Background()))
	assert.False(t, h.arbiter.IsActive(1))
	assert.True(t, h.arbiter.IsActive(2))

	a.Tick()
	h.clock.Advance(5 * time.Second)

	assert.Equal(t, 590, a.Snapshot().Remaining)
	assert.Equal(t, StatusAbandoned, a.Status())
	assert.Equal(t, 595, b.Snapshot().Remaining)
	assert.Equal(t, 1, h.clock.Active(), "only one countdown may run")
}

func TestSession_LosingCountdownBlocksSubmission(t *testing.T) {
	h := newHarness(nil)
	a := h.session(1)
	b := h.session(2)
	require.NoError(t, a.Start(context.Background()))
	answer(t, a, 1)
	answer(t, a, 2)

	require.NoError(t, b.Start(context.Background()))
	h.clock.Advance(3 * time.Second)

	assert.ErrorIs(t, a.SelectChoice(0), ErrOwnershipConflict)
	assert.Equal(t, StatusAbandoned, a.Status())
	assert.ErrorIs(t, a.Advance(context.Background()), ErrNotActive)
	assert.ErrorIs(t, a.Retreat(), ErrNotActive)

	assert.Zero(t, h.store.calls(), "a session without the countdown must not submit")
	assert.Empty(t, a.Snapshot().Answers)
	assert.True(t, h.arbiter.IsActive(2))
	assert.Equal(t, StatusActive, b.Status())
	assert.Equal(t, 597, b.Snapshot().Remaining)
}

func TestSession_LeaveAfterLosingCountdownIsImmediate(t *testing.T) {
	h := newHarness(nil)
	a := h.session(1)
	b := h.session(2)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))

	needsConfirm, err := a.RequestLeave()

	require.NoError(t, err)
	assert.False(t, needsConfirm)
	assert.Equal(t, StatusAbandoned, a.Status())
	assert.True(t, h.arbiter.IsActive(2), "the new owner keeps the countdown")
}

func TestSession_OwnershipLostDuringLoad(t *testing.T) {
	h := newHarness(nil)
	h.store.duringLoad = func() { h.arbiter.SetActive(99) }
	s := h.session(1)

	err := s.Start(context.Background())

	assert.ErrorIs(t, err, ErrOwnershipConflict)
	assert.Equal(t, StatusLoading, s.Status())
	assert.Zero(t, h.clock.Active())
}

func TestSession_LoadErrorThenRetry(t *testing.T) {
	h := newHarness(nil)
	h.store.fetchErr = errors.New("connection refused")
	s := h.session(1)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, StatusLoading, s.Status())
	assert.NotEmpty(t, s.Snapshot().Error)
	assert.Zero(t, h.clock.Active())

	h.store.fetchErr = nil
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatusActive, s.Status())
	assert.Empty(t, s.Snapshot().Error)
}

func TestSession_NoQuestionsIsLoadError(t *testing.T) {
	h := newHarness(nil)
	h.store.questions = nil
	s := h.session(1)

	assert.ErrorIs(t, s.Start(context.Background()), ErrLoad)
	assert.Equal(t, StatusLoading, s.Status())
}

func TestSession_NavigationRestoresAnswers(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	answer(t, s, 1)
	require.NoError(t, s.SelectChoice(3))
	require.NoError(t, s.Retreat())

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Cursor)
	assert.Equal(t, model.Selected(1), snap.Selected)

	require.NoError(t, s.Advance(context.Background()))
	snap = s.Snapshot()
	assert.Equal(t, 1, snap.Cursor)
	assert.False(t, snap.Selected.IsAnswered(), "retreat does not record the current selection")
	assert.Equal(t, []model.Answer{model.Selected(1), model.Unanswered(), model.Unanswered()}, snap.Answers)
}

func TestSession_Preconditions(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)

	assert.ErrorIs(t, s.SelectChoice(0), ErrNotActive)
	assert.ErrorIs(t, s.Advance(context.Background()), ErrNotActive)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrNotLoading)
	assert.ErrorIs(t, s.Advance(context.Background()), ErrNoSelection)
	assert.ErrorIs(t, s.Retreat(), ErrAtFirstQuestion)
	assert.ErrorIs(t, s.SelectChoice(4), ErrInvalidChoice)
	assert.ErrorIs(t, s.RetrySubmit(context.Background()), ErrNotSubmitting)

	answer(t, s, 0)
	answer(t, s, 0)
	assert.ErrorIs(t, s.SelectChoice(3), ErrInvalidChoice, "absent slot is never offered")
}

func TestSession_ManualSubmitOnLastQuestion(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	h.clock.Advance(30 * time.Second)
	answer(t, s, 0)
	answer(t, s, 2)
	answer(t, s, 2)

	snap := s.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Outcome.Score)
	assert.Equal(t, 3, snap.Outcome.Persisted)
	assert.Equal(t, 30, snap.Outcome.TimeUsed)
	assert.Equal(t, 95, snap.Outcome.TimeEfficiency)
	assert.False(t, snap.Outcome.AutoSubmitted)
	assert.Zero(t, h.clock.Active())

	h.clock.Advance(time.Minute)
	assert.Equal(t, 570, s.Snapshot().Remaining, "countdown stops on submit")
}

func TestSession_SubmissionFailureThenRetry(t *testing.T) {
	h := newHarness(nil)
	h.store.submitErr = errors.New("network down")
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	answer(t, s, 1)
	answer(t, s, 2)
	require.NoError(t, s.SelectChoice(2))
	err := s.Advance(context.Background())

	require.ErrorIs(t, err, ErrSubmission)
	snap := s.Snapshot()
	assert.Equal(t, StatusSubmitting, snap.Status)
	assert.Equal(t, []model.Answer{model.Selected(1), model.Selected(2), model.Selected(2)}, snap.Answers)
	assert.NotEmpty(t, snap.Error)

	h.store.submitErr = nil
	require.NoError(t, s.RetrySubmit(context.Background()))
	assert.Equal(t, StatusCompleted, s.Status())
	assert.Equal(t, 3, s.Snapshot().Outcome.Score)
	assert.Equal(t, 1, h.store.calls())
}

func TestSession_InvalidAnswerValueIsNotRetryable(t *testing.T) {
	h := newHarness(nil)
	h.store.submitErr = fmt.Errorf("insert results: %w", scoring.ErrInvalidAnswerValue)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	answer(t, s, 0)
	answer(t, s, 0)
	require.NoError(t, s.SelectChoice(0))
	err := s.Advance(context.Background())

	assert.ErrorIs(t, err, scoring.ErrInvalidAnswerValue)
	assert.NotErrorIs(t, err, ErrSubmission)
	assert.Zero(t, h.store.calls())

	snap := s.Snapshot()
	assert.Equal(t, StatusAbandoned, snap.Status)
	assert.NotEmpty(t, snap.Error)
	assert.ErrorIs(t, s.RetrySubmit(context.Background()), ErrNotSubmitting)
	assert.Zero(t, h.clock.Active())
}

func TestSession_LeaveCancelKeepsCounting(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	needsConfirm, err := s.RequestLeave()
	require.NoError(t, err)
	assert.True(t, needsConfirm)
	assert.True(t, s.Snapshot().LeavePending)

	h.clock.Advance(5 * time.Second)
	require.NoError(t, s.CancelLeave())

	snap := s.Snapshot()
	assert.Equal(t, StatusActive, snap.Status)
	assert.False(t, snap.LeavePending)
	assert.Equal(t, 595, snap.Remaining)
	assert.ErrorIs(t, s.CancelLeave(), ErrLeaveNotRequested)
}

func TestSession_LeaveConfirmDiscards(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))
	answer(t, s, 1)

	assert.ErrorIs(t, s.ConfirmLeave(), ErrLeaveNotRequested)
	_, err := s.RequestLeave()
	require.NoError(t, err)
	require.NoError(t, s.ConfirmLeave())

	snap := s.Snapshot()
	assert.Equal(t, StatusAbandoned, snap.Status)
	assert.Empty(t, snap.Answers)
	assert.Zero(t, h.clock.Active())
	assert.False(t, h.arbiter.IsActive(1))
	assert.Zero(t, h.store.calls())

	h.clock.Advance(700 * time.Second)
	assert.Zero(t, h.store.calls(), "abandoned session never submits")
}

func TestSession_LeaveWhileLoadingIsImmediate(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)

	needsConfirm, err := s.RequestLeave()

	require.NoError(t, err)
	assert.False(t, needsConfirm)
	assert.Equal(t, StatusAbandoned, s.Status())
}

func TestSession_DiscardStopsCountdown(t *testing.T) {
	h := newHarness(nil)
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	s.Discard()

	assert.Equal(t, StatusAbandoned, s.Status())
	assert.Zero(t, h.clock.Active())
	_, ok := h.arbiter.Active()
	assert.False(t, ok)
}

func TestSession_RemainingNeverIncreases(t *testing.T) {
	h := newHarness(minutes(2))
	s := h.session(1)
	require.NoError(t, s.Start(context.Background()))

	prev := s.Snapshot().Remaining
	for i := 0; i < 150; i++ {
		h.clock.Advance(time.Second)
		cur := s.Snapshot().Remaining
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, 0)
		prev = cur
	}
	assert.Equal(t, StatusCompleted, s.Status())
	assert.Equal(t, 0, s.Snapshot().Outcome.Answered)
}
