package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// ResultRepository handles per-question result rows.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Insert validates every row and copies them into results in one round
// trip. Nothing is written when any row is invalid.
func (r *ResultRepository) Insert(ctx context.Context, studentID, testID int, rows []model.SubmissionRow) (int, error) {
	if err := scoring.ValidateRows(rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"results"},
		[]string{"student_id", "test_id", "question_id", "given_answer"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{studentID, testID, rows[i].QuestionID, rows[i].GivenAnswer}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy results: %w", err)
	}
	return int(n), nil
}

const resultJoinQuery = `
	SELECT r.result_id, r.student_id, r.test_id, r.question_id, r.given_answer, r.created_at,
	       t.title, t.description, q.prompt, q.answer
	FROM results r
	LEFT JOIN tests t ON t.test_id = r.test_id
	LEFT JOIN questions q ON q.question_id = r.question_id
	WHERE r.student_id = $1`

// ListByStudent retrieves every result row of a student joined with its
// test and question, ordered by test id ascending.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ResultRow, error) {
	return r.query(ctx, resultJoinQuery+` ORDER BY r.test_id ASC, r.result_id ASC`, studentID)
}

// ListByStudentAndTest retrieves one test's rows for a student.
func (r *ResultRepository) ListByStudentAndTest(ctx context.Context, studentID, testID int) ([]model.ResultRow, error) {
	return r.query(ctx, resultJoinQuery+` AND r.test_id = $2 ORDER BY r.result_id ASC`, studentID, testID)
}

// ExistsForTest reports whether the student has any stored result for the test.
func (r *ResultRepository) ExistsForTest(ctx context.Context, studentID, testID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE student_id = $1 AND test_id = $2)`,
		studentID, testID,
	).Scan(&exists)
	return exists, err
}

func (r *ResultRepository) query(ctx context.Context, sql string, args ...any) ([]model.ResultRow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.ResultRow, 0)
	for rows.Next() {
		var row model.ResultRow
		if err := rows.Scan(
			&row.ResultID, &row.StudentID, &row.TestID, &row.QuestionID, &row.GivenAnswer, &row.CreatedAt,
			&row.TestTitle, &row.TestDescription, &row.QuestionPrompt, &row.AnswerKey,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
