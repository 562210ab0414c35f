package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
)

// AttemptWriter persists completed attempts.
type AttemptWriter interface {
	BulkInsert(ctx context.Context, batch []model.Attempt) error
	Insert(ctx context.Context, a model.Attempt) error
}

// AttemptWorker drains persist_attempts_queue into the attempts table and
// clears the session snapshots of students whose attempt is stored.
type AttemptWorker struct {
	attempts AttemptWriter
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAttemptWorker creates a new AttemptWorker.
func NewAttemptWorker(attempts AttemptWriter, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "attempt_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a
// goroutine.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]model.Attempt, 0, AttemptBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= AttemptBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			a, ok := w.next(ctx)
			if ok {
				batch = append(batch, a)
			}
		}
	}
}

func (w *AttemptWorker) next(ctx context.Context) (model.Attempt, bool) {
	item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return model.Attempt{}, false
	}
	if len(item) < 2 {
		return model.Attempt{}, false
	}

	var a model.Attempt
	if err := json.Unmarshal([]byte(item[1]), &a); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return model.Attempt{}, false
	}
	return a, true
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *AttemptWorker) flushSafe(ctx context.Context, batch []model.Attempt) {
	if len(batch) == 0 {
		return
	}

	stored := batch
	if err := w.attempts.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk attempt insert failed, using fallback")

		stored = make([]model.Attempt, 0, len(batch))
		for _, a := range batch {
			if err := w.attempts.Insert(ctx, a); err != nil {
				w.log.Error().Err(err).
					Int("student_id", a.StudentID).
					Int("test_id", a.TestID).
					Msg("attempt insert failed, requeueing")
				raw, _ := json.Marshal(a)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
				continue
			}
			stored = append(stored, a)
		}
	}

	w.clearSnapshots(ctx, stored)
	w.log.Debug().Int("stored", len(stored)).Int("batch", len(batch)).Msg("Attempts flushed")
}

// ----------------------------------------------------------------
// Snapshot cleanup
// ----------------------------------------------------------------

type snapshotHead struct {
	TestID int            `json:"test_id"`
	Status session.Status `json:"status"`
}

// clearSnapshots deletes a student's snapshot only while it still shows the
// completed attempt. A snapshot of a newer session is kept.
func (w *AttemptWorker) clearSnapshots(ctx context.Context, stored []model.Attempt) {
	for _, a := range stored {
		key := config.CacheKey.StudentQuizSessionKey(a.StudentID)
		err := w.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var head snapshotHead
			if err := json.Unmarshal(raw, &head); err != nil {
				return err
			}
			if head.TestID != a.TestID || head.Status != session.StatusCompleted {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)
		if err != nil && !errors.Is(err, redis.Nil) {
			w.log.Warn().Err(err).Int("student_id", a.StudentID).Msg("Snapshot cleanup skipped")
		}
	}
}
