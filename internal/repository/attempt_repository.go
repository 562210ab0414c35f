package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AttemptRepository handles the completed-attempt log.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// BulkInsert writes a batch of attempts with a single UNNEST insert.
func (r *AttemptRepository) BulkInsert(ctx context.Context, batch []model.Attempt) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	students := make([]int, n)
	tests := make([]int, n)
	scores := make([]int, n)
	totals := make([]int, n)
	answered := make([]int, n)
	percentages := make([]int, n)
	used := make([]int, n)
	budgets := make([]int, n)
	autos := make([]bool, n)
	finished := make([]time.Time, n)

	for i, a := range batch {
		students[i] = a.StudentID
		tests[i] = a.TestID
		scores[i] = a.Score
		totals[i] = a.Total
		answered[i] = a.Answered
		percentages[i] = a.Percentage
		used[i] = a.TimeUsed
		budgets[i] = a.TotalSeconds
		autos[i] = a.AutoSubmitted
		finished[i] = a.FinishedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attempts (student_id, test_id, score, total, answered, percentage,
		                      time_used, total_seconds, auto_submitted, finished_at)
		SELECT * FROM UNNEST(
			$1::int[], $2::int[], $3::int[], $4::int[], $5::int[], $6::int[],
			$7::int[], $8::int[], $9::bool[], $10::timestamptz[]
		)`,
		students, tests, scores, totals, answered, percentages, used, budgets, autos, finished,
	)
	return err
}

// Insert writes a single attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a model.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempts (student_id, test_id, score, total, answered, percentage,
		                       time_used, total_seconds, auto_submitted, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.StudentID, a.TestID, a.Score, a.Total, a.Answered, a.Percentage,
		a.TimeUsed, a.TotalSeconds, a.AutoSubmitted, a.FinishedAt,
	)
	return err
}

// ListByStudent retrieves a student's attempts, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, student_id, test_id, score, total, answered, percentage,
		        time_used, total_seconds, auto_submitted, finished_at
		 FROM attempts
		 WHERE student_id = $1
		 ORDER BY finished_at DESC
		 LIMIT $2`, studentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]model.Attempt, 0)
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.StudentID, &a.TestID, &a.Score, &a.Total, &a.Answered, &a.Percentage,
			&a.TimeUsed, &a.TotalSeconds, &a.AutoSubmitted, &a.FinishedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
