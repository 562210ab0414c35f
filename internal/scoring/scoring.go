// Package scoring turns a session's captured answers into a score and the
// rows that get persisted.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// ErrInvalidAnswerValue means a stored answer would fall outside 1..4.
var ErrInvalidAnswerValue = errors.New("answer value must be between 1 and 4")

// Result is the outcome of scoring a session.
type Result struct {
	Score    int                   `json:"score"`
	Total    int                   `json:"total"`
	Answered int                   `json:"answered"`
	Rows     []model.SubmissionRow `json:"rows"`
}

// Percentage is computed over every question, answered or not.
func (r *Result) Percentage() int {
	return Percentage(r.Score, r.Total)
}

// Score compares each answered question with its key. Unanswered questions
// emit no row and add nothing. answers is indexed like questions; a shorter
// slice leaves the tail unanswered.
func Score(questions []model.Question, answers []model.Answer) (*Result, error) {
	res := &Result{Total: len(questions), Rows: make([]model.SubmissionRow, 0, len(answers))}

	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		choice, ok := answers[i].Choice()
		if !ok {
			continue
		}
		given := choice + 1
		if !ValidGiven(given) {
			return nil, fmt.Errorf("question %d: %w (got %d)", q.ID, ErrInvalidAnswerValue, given)
		}
		res.Rows = append(res.Rows, model.SubmissionRow{QuestionID: q.ID, GivenAnswer: given})
		res.Answered++
		if given == q.AnswerKey {
			res.Score++
		}
	}
	return res, nil
}

// ValidGiven reports whether a 1-based answer may be stored.
func ValidGiven(given int) bool {
	return given >= 1 && given <= model.ChoiceCount
}

// ValidateRows checks every row before anything is written.
func ValidateRows(rows []model.SubmissionRow) error {
	for _, r := range rows {
		if !ValidGiven(r.GivenAnswer) {
			return fmt.Errorf("question %d: %w (got %d)", r.QuestionID, ErrInvalidAnswerValue, r.GivenAnswer)
		}
	}
	return nil
}

// Percentage rounds part/total to a whole percent. Zero total yields zero.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// TimeEfficiency is the share of the budget left unused, in percent.
func TimeEfficiency(totalSeconds, usedSeconds int) int {
	if totalSeconds <= 0 {
		return 0
	}
	return Percentage(totalSeconds-usedSeconds, totalSeconds)
}
