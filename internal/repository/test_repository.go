package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// TestRepository handles test catalogue data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test. Returns pgx.ErrNoRows when it does not exist.
func (r *TestRepository) GetByID(ctx context.Context, id int) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT test_id, title, description, time_limit_minutes, created_at
		 FROM tests WHERE test_id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.TimeLimitMinutes, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListWithCounts retrieves every test ordered by id together with its
// question count and whether the student already has results for it.
func (r *TestRepository) ListWithCounts(ctx context.Context, studentID int) ([]model.TestListing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.test_id, t.title, t.description, t.time_limit_minutes, t.created_at,
		        (SELECT COUNT(*) FROM test_questions tq WHERE tq.test_id = t.test_id) AS question_count,
		        EXISTS (SELECT 1 FROM results r WHERE r.test_id = t.test_id AND r.student_id = $1) AS taken
		 FROM tests t
		 ORDER BY t.test_id ASC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]model.TestListing, 0)
	for rows.Next() {
		var l model.TestListing
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.TimeLimitMinutes, &l.CreatedAt, &l.QuestionCount, &l.Taken); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// ListIDs returns every test id, used for cache prewarming.
func (r *TestRepository) ListIDs(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT test_id FROM tests ORDER BY test_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// CreateWithQuestions inserts a test and its questions in one transaction,
// linking them in the given order.
func (r *TestRepository) CreateWithQuestions(ctx context.Context, t *model.Test, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, description, time_limit_minutes)
		 VALUES ($1, $2, $3)
		 RETURNING test_id, created_at`,
		t.Title, t.Description, t.TimeLimitMinutes,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (prompt, choice1, choice2, choice3, choice4, answer)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING question_id`,
			q.Prompt, q.Choices[0], q.Choices[1], q.Choices[2], q.Choices[3], q.AnswerKey,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO test_questions (test_id, question_id, position) VALUES ($1, $2, $3)`,
			t.ID, q.ID, i,
		); err != nil {
			return fmt.Errorf("link question %d: %w", i+1, err)
		}
	}

	return tx.Commit(ctx)
}
