package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves the questions linked to a test through the junction
// table, in their linked order.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.question_id, q.prompt, q.choice1, q.choice2, q.choice3, q.choice4, q.answer
		 FROM test_questions tq
		 JOIN questions q ON q.question_id = tq.question_id
		 WHERE tq.test_id = $1
		 ORDER BY tq.position, q.question_id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]model.Question, 0)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Choices[0], &q.Choices[1], &q.Choices[2], &q.Choices[3], &q.AnswerKey); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
