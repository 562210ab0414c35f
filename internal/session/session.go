package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"github.com/stemsi/exstem-quiz/internal/timer"
)

// Options wires a session to its collaborators.
type Options struct {
	StudentID int
	TestID    int
	Store     Store
	Arbiter   *timer.Arbiter
	Clock     timer.Clock
	Config    Config
	Logger    zerolog.Logger
	// OnEvent is called after every change, outside the session lock.
	OnEvent func(Event)
}

// Session is one student's attempt at one test. All methods are safe for
// concurrent use; store calls never run under the session lock.
type Session struct {
	mu sync.Mutex

	studentID int
	testID    int
	store     Store
	arbiter   *timer.Arbiter
	clock     timer.Clock
	cfg       Config
	log       zerolog.Logger
	onEvent   func(Event)

	status    Status
	test      *model.Test
	questions []model.Question
	cursor    int
	selected  model.Answer
	answers   []model.Answer
	remaining int
	total     int
	warning   bool
	leave     bool
	ticker    timer.Ticker
	auto      bool
	busy      bool
	outcome   *Outcome
	lastErr   error
}

// New creates a session in the loading state. Call Start to fetch the test.
func New(opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = timer.RealClock{}
	}
	arbiter := opts.Arbiter
	if arbiter == nil {
		arbiter = timer.NewArbiter()
	}
	return &Session{
		studentID: opts.StudentID,
		testID:    opts.TestID,
		store:     opts.Store,
		arbiter:   arbiter,
		clock:     clock,
		cfg:       opts.Config.withDefaults(),
		log: opts.Logger.With().
			Int("student_id", opts.StudentID).
			Int("test_id", opts.TestID).
			Logger(),
		onEvent: opts.OnEvent,
		status:  StatusLoading,
	}
}

// TestID returns the id of the test this session runs.
func (s *Session) TestID() int { return s.testID }

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start claims the countdown, fetches the test and its questions and starts
// ticking. It is only valid while loading; a failed load leaves the session
// loading so Start can be retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusLoading {
		s.mu.Unlock()
		return ErrNotLoading
	}
	if s.busy {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	s.busy = true
	s.lastErr = nil
	s.arbiter.ClearActive()
	s.arbiter.SetActive(s.testID)
	s.mu.Unlock()

	test, questions, err := s.load(ctx)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.lastErr = err
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("Test load failed")
		s.emit(EventState, snap)
		return err
	}
	if s.status != StatusLoading {
		s.mu.Unlock()
		return ErrNotLoading
	}
	if !s.arbiter.IsActive(s.testID) {
		s.mu.Unlock()
		s.log.Debug().Msg("Countdown taken by another session during load")
		return ErrOwnershipConflict
	}

	s.test = test
	s.questions = questions
	s.answers = make([]model.Answer, len(questions))
	s.cursor = 0
	s.selected = model.Unanswered()
	s.total = test.TotalSeconds(s.cfg.DefaultSeconds)
	s.remaining = s.total
	s.warning = s.remaining <= s.cfg.WarningSeconds
	s.status = StatusActive
	s.ticker = s.clock.Every(s.cfg.TickInterval, s.Tick)
	s.arbiter.Register(s.testID, s.ticker)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Int("questions", len(questions)).Int("total_seconds", snap.Total).Msg("Session started")
	s.emit(EventState, snap)
	return nil
}

func (s *Session) load(ctx context.Context) (*model.Test, []model.Question, error) {
	test, err := s.store.FetchTestByID(ctx, s.testID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	questions, err := s.store.FetchQuestionsForTest(ctx, s.testID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if len(questions) == 0 {
		return nil, nil, fmt.Errorf("%w: test has no questions", ErrLoad)
	}
	return test, questions, nil
}

// SelectChoice marks the zero-based choice on the current question without
// recording it or moving the cursor.
func (s *Session) SelectChoice(choice int) error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.lostOwnershipLocked() {
		s.mu.Unlock()
		return ErrOwnershipConflict
	}
	if !s.questions[s.cursor].HasChoice(choice) {
		s.mu.Unlock()
		return ErrInvalidChoice
	}
	s.selected = model.Selected(choice)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(EventState, snap)
	return nil
}

// Advance records the selection for the current question and moves to the
// next one, restoring its earlier answer. On the last question it submits.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.lostOwnershipLocked() {
		s.mu.Unlock()
		return ErrOwnershipConflict
	}
	if !s.selected.IsAnswered() {
		s.mu.Unlock()
		return ErrNoSelection
	}
	s.answers[s.cursor] = s.selected

	if s.cursor < len(s.questions)-1 {
		s.cursor++
		s.selected = s.answers[s.cursor]
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(EventState, snap)
		return nil
	}

	job := s.beginSubmitLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(EventState, snap)
	return s.finishSubmit(ctx, job)
}

// Retreat moves to the previous question and restores its recorded answer.
// The current selection is not recorded.
func (s *Session) Retreat() error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.lostOwnershipLocked() {
		s.mu.Unlock()
		return ErrOwnershipConflict
	}
	if s.cursor == 0 {
		s.mu.Unlock()
		return ErrAtFirstQuestion
	}
	s.cursor--
	s.selected = s.answers[s.cursor]
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(EventState, snap)
	return nil
}

// Tick is the countdown callback. It is a no-op unless the session is
// active; an active session that lost the countdown is abandoned. Reaching
// zero submits the recorded answers; the current unrecorded selection is not
// included.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	if s.lostOwnershipLocked() {
		s.mu.Unlock()
		return
	}

	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining <= s.cfg.WarningSeconds {
		s.warning = true
	}
	if s.remaining > 0 {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(EventTick, snap)
		return
	}

	s.auto = true
	job := s.beginSubmitLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Msg("Time is up, submitting recorded answers")
	s.emit(EventState, snap)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout)
	defer cancel()
	if err := s.finishSubmit(ctx, job); err != nil {
		s.log.Error().Err(err).Msg("Automatic submission failed")
	}
}

// RetrySubmit persists the in-memory answers again after a failed
// submission. Answers rejected as invalid end the session instead, so
// there is nothing left to retry.
func (s *Session) RetrySubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusSubmitting {
		s.mu.Unlock()
		return ErrNotSubmitting
	}
	if s.busy {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.busy = true
	s.lastErr = nil
	job := s.jobLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(EventState, snap)
	return s.finishSubmit(ctx, job)
}

// RequestLeave asks to navigate away. An active session needs confirmation
// and keeps counting down until ConfirmLeave; any other session is left
// immediately. The returned flag is true when confirmation is required.
func (s *Session) RequestLeave() (bool, error) {
	s.mu.Lock()
	if s.lostOwnershipLocked() {
		s.mu.Unlock()
		return false, nil
	}
	switch {
	case s.status == StatusActive:
		s.leave = true
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(EventState, snap)
		return true, nil
	case s.busy && s.status == StatusSubmitting:
		s.mu.Unlock()
		return false, ErrSubmitInProgress
	}
	snap, changed := s.abandonLocked()
	s.mu.Unlock()
	if changed {
		s.emit(EventState, snap)
	}
	return false, nil
}

// ConfirmLeave abandons an active session after RequestLeave. The answers
// are discarded and nothing is submitted.
func (s *Session) ConfirmLeave() error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if !s.leave {
		s.mu.Unlock()
		return ErrLeaveNotRequested
	}
	snap, _ := s.abandonLocked()
	s.mu.Unlock()

	s.log.Info().Msg("Session abandoned")
	s.emit(EventState, snap)
	return nil
}

// CancelLeave withdraws a leave request. The countdown never paused.
func (s *Session) CancelLeave() error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.lostOwnershipLocked() {
		s.mu.Unlock()
		return ErrOwnershipConflict
	}
	if !s.leave {
		s.mu.Unlock()
		return ErrLeaveNotRequested
	}
	s.leave = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(EventState, snap)
	return nil
}

// Discard stops the countdown and abandons any non-terminal session without
// emitting events. Used when the owner replaces the session.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonLocked()
}

type submitJob struct {
	questions []model.Question
	answers   []model.Answer
	total     int
	remaining int
	auto      bool
}

// beginSubmitLocked moves to submitting and releases the countdown.
func (s *Session) beginSubmitLocked() submitJob {
	s.status = StatusSubmitting
	s.busy = true
	s.leave = false
	s.lastErr = nil
	s.stopTickerLocked()
	s.arbiter.Clear(s.testID)
	return s.jobLocked()
}

func (s *Session) jobLocked() submitJob {
	answers := make([]model.Answer, len(s.answers))
	copy(answers, s.answers)
	return submitJob{
		questions: s.questions,
		answers:   answers,
		total:     s.total,
		remaining: s.remaining,
		auto:      s.auto,
	}
}

func (s *Session) finishSubmit(ctx context.Context, job submitJob) error {
	res, err := scoring.Score(job.questions, job.answers)
	if err != nil {
		return s.rejectSubmit(err)
	}

	n, err := s.store.SubmitResultRows(ctx, s.studentID, s.testID, res.Rows)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidAnswerValue) {
			return s.rejectSubmit(err)
		}
		return s.failSubmit(fmt.Errorf("%w: %w", ErrSubmission, err))
	}

	outcome := newOutcome(res, n, job.total, job.remaining, job.auto, s.clock.Now())

	s.mu.Lock()
	s.busy = false
	s.status = StatusCompleted
	s.outcome = outcome
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().
		Int("score", outcome.Score).
		Int("total", outcome.Total).
		Int("answered", outcome.Answered).
		Int("time_used", outcome.TimeUsed).
		Bool("auto_submitted", outcome.AutoSubmitted).
		Msg("Session completed")
	s.emit(EventCompleted, snap)
	return nil
}

// rejectSubmit ends a submission whose answers can never be stored. The
// same answers would fail again, so the session is abandoned with the error
// kept on its snapshot.
func (s *Session) rejectSubmit(err error) error {
	s.mu.Lock()
	s.busy = false
	s.abandonLocked()
	s.lastErr = err
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("Submission rejected, session abandoned")
	s.emit(EventState, snap)
	return err
}

func (s *Session) failSubmit(err error) error {
	s.mu.Lock()
	s.busy = false
	s.lastErr = err
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("Submission failed")
	s.emit(EventState, snap)
	return err
}

// lostOwnershipLocked abandons an active session whose countdown was taken
// over by another session. Its answers are dropped and nothing is submitted.
func (s *Session) lostOwnershipLocked() bool {
	if s.status != StatusActive || s.arbiter.IsActive(s.testID) {
		return false
	}
	s.abandonLocked()
	s.log.Debug().Msg("Countdown owned by another session, abandoning")
	return true
}

func (s *Session) abandonLocked() (Snapshot, bool) {
	if s.status.Terminal() {
		return s.snapshotLocked(), false
	}
	s.stopTickerLocked()
	if s.arbiter.IsActive(s.testID) {
		s.arbiter.ClearActive()
	}
	s.status = StatusAbandoned
	s.leave = false
	s.answers = nil
	s.selected = model.Unanswered()
	return s.snapshotLocked(), true
}

func (s *Session) stopTickerLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		StudentID:     s.studentID,
		TestID:        s.testID,
		Status:        s.status,
		Cursor:        s.cursor,
		QuestionCount: len(s.questions),
		Selected:      s.selected,
		Answers:       append([]model.Answer(nil), s.answers...),
		Remaining:     s.remaining,
		Total:         s.total,
		Warning:       s.warning,
		LeavePending:  s.leave,
		Outcome:       s.outcome,
	}
	if s.test != nil {
		snap.Title = s.test.Title
	}
	if s.status == StatusActive && s.cursor < len(s.questions) {
		q := s.questions[s.cursor].ForStudent()
		snap.Question = &q
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

func (s *Session) emit(kind EventKind, snap Snapshot) {
	if s.onEvent != nil {
		s.onEvent(Event{Kind: kind, Snapshot: snap})
	}
}
