package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
	"github.com/stemsi/exstem-quiz/internal/timer"
)

var (
	ErrNoSession         = errors.New("no test in progress")
	ErrSessionInProgress = errors.New("another test is in progress")
)

// snapshotEveryTicks controls how often countdown ticks refresh the Redis
// snapshot. State changes always refresh it.
const snapshotEveryTicks = 10

// ResultWriter persists submitted rows.
type ResultWriter interface {
	Insert(ctx context.Context, studentID, testID int, rows []model.SubmissionRow) (int, error)
}

// SessionService owns one countdown arbiter and at most one live session per
// student. Every change is mirrored to Redis and fanned out to subscribers;
// completions are queued for the attempt log.
type SessionService struct {
	tests       *TestService
	results     ResultWriter
	rdb         *redis.Client
	clock       timer.Clock
	cfg         session.Config
	snapshotTTL time.Duration
	log         zerolog.Logger

	mu    sync.Mutex
	slots map[int]*studentSlot
}

type studentSlot struct {
	mu      sync.Mutex
	arbiter *timer.Arbiter
	current *session.Session

	subMu sync.Mutex
	subs  map[chan session.Event]struct{}
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	tests *TestService,
	results ResultWriter,
	rdb *redis.Client,
	clock timer.Clock,
	cfg session.Config,
	snapshotTTL time.Duration,
	log zerolog.Logger,
) *SessionService {
	if clock == nil {
		clock = timer.RealClock{}
	}
	return &SessionService{
		tests:       tests,
		results:     results,
		rdb:         rdb,
		clock:       clock,
		cfg:         cfg,
		snapshotTTL: snapshotTTL,
		log:         log.With().Str("component", "session_service").Logger(),
		slots:       make(map[int]*studentSlot),
	}
}

func (s *SessionService) slot(studentID int) *studentSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[studentID]
	if !ok {
		sl = &studentSlot{
			arbiter: timer.NewArbiter(),
			subs:    make(map[chan session.Event]struct{}),
		}
		s.slots[studentID] = sl
	}
	return sl
}

// Begin selects a test for the student and starts its session. Selecting the
// test that is already running returns its state unchanged; selecting a
// different test while one is running or awaiting a submission retry fails
// with ErrSessionInProgress. A session still loading, finished or abandoned
// is replaced.
func (s *SessionService) Begin(ctx context.Context, studentID, testID int) (session.Snapshot, error) {
	sl := s.slot(studentID)

	sl.mu.Lock()
	if cur := sl.current; cur != nil {
		status := cur.Status()
		if cur.TestID() == testID && !status.Terminal() {
			sl.mu.Unlock()
			if status == session.StatusLoading {
				return s.start(ctx, studentID, cur)
			}
			return cur.Snapshot(), nil
		}
		if status == session.StatusActive || status == session.StatusSubmitting {
			sl.mu.Unlock()
			return session.Snapshot{}, ErrSessionInProgress
		}
		cur.Discard()
	}

	sess := session.New(session.Options{
		StudentID: studentID,
		TestID:    testID,
		Store:     &sessionStore{tests: s.tests, results: s.results},
		Arbiter:   sl.arbiter,
		Clock:     s.clock,
		Config:    s.cfg,
		Logger:    s.log,
		OnEvent:   func(e session.Event) { s.publish(studentID, e) },
	})
	sl.current = sess
	sl.mu.Unlock()

	s.log.Info().Int("student_id", studentID).Int("test_id", testID).Msg("Test selected")
	return s.start(ctx, studentID, sess)
}

func (s *SessionService) start(ctx context.Context, studentID int, sess *session.Session) (session.Snapshot, error) {
	err := sess.Start(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrOwnershipConflict),
		errors.Is(err, session.ErrLoadInProgress),
		errors.Is(err, session.ErrNotLoading):
		// Another request for the same student got there first.
		s.log.Debug().Err(err).Int("student_id", studentID).Msg("Concurrent start ignored")
		return s.Current(ctx, studentID)
	default:
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

// Current returns the live session state, or the last mirrored snapshot
// when this process holds no session for the student.
func (s *SessionService) Current(ctx context.Context, studentID int) (session.Snapshot, error) {
	if sess := s.current(studentID); sess != nil {
		return sess.Snapshot(), nil
	}

	raw, err := s.rdb.Get(ctx, config.CacheKey.StudentQuizSessionKey(studentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Snapshot{}, ErrNoSession
		}
		return session.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Select marks a choice on the current question.
func (s *SessionService) Select(studentID, choice int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.SelectChoice(choice) })
}

// Advance records the selection and moves on, submitting after the last question.
func (s *SessionService) Advance(ctx context.Context, studentID int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.Advance(ctx) })
}

// Retreat moves back one question.
func (s *SessionService) Retreat(studentID int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.Retreat() })
}

// Reload retries a failed load.
func (s *SessionService) Reload(ctx context.Context, studentID int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.Start(ctx) })
}

// Submit retries a failed submission.
func (s *SessionService) Submit(ctx context.Context, studentID int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.RetrySubmit(ctx) })
}

// Leave requests to navigate away. The flag reports whether confirmation is
// needed before the session is abandoned.
func (s *SessionService) Leave(studentID int) (session.Snapshot, bool, error) {
	var needsConfirm bool
	snap, err := s.with(studentID, func(sess *session.Session) error {
		var err error
		needsConfirm, err = sess.RequestLeave()
		return err
	})
	return snap, needsConfirm, err
}

// ConfirmLeave abandons the session after a leave request.
func (s *SessionService) ConfirmLeave(studentID int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.ConfirmLeave() })
}

// CancelLeave keeps the session running.
func (s *SessionService) CancelLeave(studentID int) (session.Snapshot, error) {
	return s.with(studentID, func(sess *session.Session) error { return sess.CancelLeave() })
}

// Subscribe streams the student's session events. Slow subscribers lose
// older events, never the newest. The cancel func must be called once done.
func (s *SessionService) Subscribe(studentID int) (<-chan session.Event, func()) {
	sl := s.slot(studentID)
	ch := make(chan session.Event, 8)

	sl.subMu.Lock()
	sl.subs[ch] = struct{}{}
	sl.subMu.Unlock()

	cancel := func() {
		sl.subMu.Lock()
		if _, ok := sl.subs[ch]; ok {
			delete(sl.subs, ch)
			close(ch)
		}
		sl.subMu.Unlock()
	}
	return ch, cancel
}

// Close discards every live session and stops their countdowns.
func (s *SessionService) Close() {
	s.mu.Lock()
	slots := make([]*studentSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.Unlock()

	for _, sl := range slots {
		sl.mu.Lock()
		if sl.current != nil {
			sl.current.Discard()
		}
		sl.mu.Unlock()
	}
}

func (s *SessionService) current(studentID int) *session.Session {
	sl := s.slot(studentID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.current
}

func (s *SessionService) with(studentID int, fn func(*session.Session) error) (session.Snapshot, error) {
	sess := s.current(studentID)
	if sess == nil {
		return session.Snapshot{}, ErrNoSession
	}
	err := fn(sess)
	if errors.Is(err, session.ErrOwnershipConflict) {
		s.log.Debug().Err(err).Int("student_id", studentID).Msg("Action on a session without the countdown ignored")
		err = nil
	}
	return sess.Snapshot(), err
}

func (s *SessionService) publish(studentID int, e session.Event) {
	if e.Kind != session.EventTick || e.Snapshot.Remaining%snapshotEveryTicks == 0 {
		s.mirror(studentID, e.Snapshot)
	}
	if e.Kind == session.EventCompleted && e.Snapshot.Outcome != nil {
		s.enqueueAttempt(studentID, e.Snapshot)
	}

	sl := s.slot(studentID)
	sl.subMu.Lock()
	defer sl.subMu.Unlock()
	for ch := range sl.subs {
		select {
		case ch <- e:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- e
		}
	}
}

func (s *SessionService) mirror(studentID int, snap session.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Snapshot encode failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Set(ctx, config.CacheKey.StudentQuizSessionKey(studentID), raw, s.snapshotTTL).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Snapshot write failed")
	}
}

func (s *SessionService) enqueueAttempt(studentID int, snap session.Snapshot) {
	o := snap.Outcome
	attempt := model.Attempt{
		StudentID:     studentID,
		TestID:        snap.TestID,
		Score:         o.Score,
		Total:         o.Total,
		Answered:      o.Answered,
		Percentage:    o.Percentage,
		TimeUsed:      o.TimeUsed,
		TotalSeconds:  o.TotalSeconds,
		AutoSubmitted: o.AutoSubmitted,
		FinishedAt:    o.FinishedAt,
	}
	raw, err := json.Marshal(attempt)
	if err != nil {
		s.log.Error().Err(err).Msg("Attempt encode failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).
			Int("student_id", studentID).
			Int("test_id", snap.TestID).
			Msg("Failed to queue attempt")
	}
}

// sessionStore adapts the catalogue and result persistence to session.Store.
type sessionStore struct {
	tests   *TestService
	results ResultWriter
}

func (st *sessionStore) FetchTestByID(ctx context.Context, testID int) (*model.Test, error) {
	return st.tests.Get(ctx, testID)
}

func (st *sessionStore) FetchQuestionsForTest(ctx context.Context, testID int) ([]model.Question, error) {
	return st.tests.Questions(ctx, testID)
}

func (st *sessionStore) SubmitResultRows(ctx context.Context, studentID, testID int, rows []model.SubmissionRow) (int, error) {
	return st.results.Insert(ctx, studentID, testID, rows)
}
