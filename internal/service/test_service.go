package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"golang.org/x/sync/singleflight"
)

// sharedLoadTimeout bounds a database load shared by concurrent callers. The
// load runs detached from the first caller's context so its cancellation
// does not fail the other callers.
const sharedLoadTimeout = 10 * time.Second

var (
	ErrTestNotFound = errors.New("test not found")
	ErrNoQuestions  = errors.New("test has no questions")
)

// TestStore is the test catalogue persistence.
type TestStore interface {
	GetByID(ctx context.Context, id int) (*model.Test, error)
	ListWithCounts(ctx context.Context, studentID int) ([]model.TestListing, error)
	ListIDs(ctx context.Context) ([]int, error)
}

// QuestionStore loads a test's questions.
type QuestionStore interface {
	ListByTest(ctx context.Context, testID int) ([]model.Question, error)
}

// TestService serves the catalogue and keeps test metadata and question
// sets cached in Redis. Concurrent cache misses for the same test share one
// database load.
type TestService struct {
	tests     TestStore
	questions QuestionStore
	rdb       *redis.Client
	ttl       time.Duration
	group     singleflight.Group
	log       zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests TestStore, questions QuestionStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *TestService {
	return &TestService{
		tests:     tests,
		questions: questions,
		rdb:       rdb,
		ttl:       ttl,
		log:       log.With().Str("component", "test_service").Logger(),
	}
}

// List returns the catalogue ordered by id, annotated for the student.
func (s *TestService) List(ctx context.Context, studentID int) ([]model.TestListing, error) {
	listings, err := s.tests.ListWithCounts(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	for i := range listings {
		listings[i].Difficulty = scoring.Difficulty(listings[i].TimeLimitMinutes)
	}
	return listings, nil
}

// Get returns a test's metadata, from cache when possible.
func (s *TestService) Get(ctx context.Context, id int) (*model.Test, error) {
	key := config.CacheKey.TestMetaKey(id)
	var test model.Test
	hit, err := s.readCache(ctx, key, &test)
	if err != nil {
		s.log.Warn().Err(err).Int("test_id", id).Msg("Test cache read failed, using database")
	}
	if hit {
		return &test, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		ctx, cancel := sharedLoadContext(ctx)
		defer cancel()

		t, err := s.tests.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTestNotFound
			}
			return nil, fmt.Errorf("get test: %w", err)
		}
		s.writeCache(ctx, key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*model.Test)
	return &t, nil
}

// Questions returns a test's questions, answer keys included. Only
// server-side callers see the keys.
func (s *TestService) Questions(ctx context.Context, testID int) ([]model.Question, error) {
	key := config.CacheKey.TestQuestionsKey(testID)
	var cached []model.Question
	hit, err := s.readCache(ctx, key, &cached)
	if err != nil {
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Question cache read failed, using database")
	}
	if hit && len(cached) > 0 {
		return cached, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		ctx, cancel := sharedLoadContext(ctx)
		defer cancel()

		questions, err := s.questions.ListByTest(ctx, testID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		if len(questions) == 0 {
			return nil, ErrNoQuestions
		}
		s.writeCache(ctx, key, questions)
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Int("test_id", testID).Msg("Question load shared with concurrent caller")
	}

	src := v.([]model.Question)
	out := make([]model.Question, len(src))
	copy(out, src)
	return out, nil
}

func sharedLoadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
}

// WarmTestCache loads one test's metadata and questions into Redis.
func (s *TestService) WarmTestCache(ctx context.Context, testID int) error {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	questions, err := s.questions.ListByTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	metaRaw, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal test: %w", err)
	}
	questionsRaw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestMetaKey(testID), metaRaw, s.ttl)
	if len(questions) > 0 {
		pipe.Set(ctx, config.CacheKey.TestQuestionsKey(testID), questionsRaw, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache test: %w", err)
	}

	s.log.Debug().
		Int("test_id", testID).
		Int("questions", len(questions)).
		Msg("Test cache warmed")
	return nil
}

// PrewarmAllCaches warms every test. Failures are logged and skipped.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.tests.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}

	if len(ids) == 0 {
		s.log.Info().Msg("No tests to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(ids)).Msg("Prewarming tests...")

	warmed := 0
	for _, id := range ids {
		if err := s.WarmTestCache(ctx, id); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", strconv.Itoa(id)).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}

func (s *TestService) readCache(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *TestService) writeCache(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
