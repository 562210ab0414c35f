package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-quiz/internal/model"
)

func questions() []model.Question {
	return []model.Question{
		{ID: 11, Prompt: "q1", Choices: [4]string{"a", "b", "c", "d"}, AnswerKey: 1},
		{ID: 12, Prompt: "q2", Choices: [4]string{"a", "b", "c", "d"}, AnswerKey: 3},
		{ID: 13, Prompt: "q3", Choices: [4]string{"a", "b", "c", ""}, AnswerKey: 2},
	}
}

func TestScore_SkipsUnanswered(t *testing.T) {
	answers := []model.Answer{model.Selected(0), model.Unanswered(), model.Selected(2)}

	res, err := Score(questions(), answers)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Answered)
	assert.Equal(t, []model.SubmissionRow{
		{QuestionID: 11, GivenAnswer: 1},
		{QuestionID: 13, GivenAnswer: 3},
	}, res.Rows)
	assert.Equal(t, 33, res.Percentage(), "percentage counts unanswered questions")
}

func TestScore_RowsMatchAnsweredCount(t *testing.T) {
	cases := [][]model.Answer{
		{},
		{model.Unanswered(), model.Unanswered(), model.Unanswered()},
		{model.Selected(3), model.Selected(2), model.Selected(1)},
		{model.Selected(1)},
	}
	for _, answers := range cases {
		res, err := Score(questions(), answers)
		require.NoError(t, err)

		answered := 0
		for _, a := range answers {
			if a.IsAnswered() {
				answered++
			}
		}
		assert.Len(t, res.Rows, answered)
		assert.LessOrEqual(t, res.Score, res.Answered)
	}
}

func TestScore_Idempotent(t *testing.T) {
	answers := []model.Answer{model.Selected(0), model.Selected(2), model.Selected(1)}

	first, err := Score(questions(), answers)
	require.NoError(t, err)
	second, err := Score(questions(), answers)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, first.Score)
}

func TestScore_RejectsOutOfRangeAnswer(t *testing.T) {
	answers := []model.Answer{model.Selected(0), model.Selected(4)}

	res, err := Score(questions(), answers)

	assert.ErrorIs(t, err, ErrInvalidAnswerValue)
	assert.Nil(t, res)
}

func TestValidateRows(t *testing.T) {
	assert.NoError(t, ValidateRows([]model.SubmissionRow{{QuestionID: 1, GivenAnswer: 4}}))
	assert.ErrorIs(t, ValidateRows([]model.SubmissionRow{{QuestionID: 1, GivenAnswer: 0}}), ErrInvalidAnswerValue)
	assert.ErrorIs(t, ValidateRows([]model.SubmissionRow{{QuestionID: 1, GivenAnswer: 5}}), ErrInvalidAnswerValue)
}

func TestPercentageAndEfficiency(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 50, Percentage(1, 2))
	assert.Equal(t, 75, TimeEfficiency(600, 150))
	assert.Equal(t, 0, TimeEfficiency(600, 600))
	assert.Equal(t, 0, TimeEfficiency(0, 10))
}

func TestGrade(t *testing.T) {
	cases := map[int]string{100: "A+", 90: "A+", 89: "A", 80: "A", 70: "B", 65: "C", 50: "D", 49: "F", 0: "F"}
	for pct, want := range cases {
		assert.Equal(t, want, Grade(pct), "pct=%d", pct)
	}
}

func TestDifficulty(t *testing.T) {
	minutes := func(m int) *int { return &m }
	assert.Equal(t, model.DifficultyQuick, Difficulty(nil))
	assert.Equal(t, model.DifficultyQuick, Difficulty(minutes(30)))
	assert.Equal(t, model.DifficultyStandard, Difficulty(minutes(31)))
	assert.Equal(t, model.DifficultyStandard, Difficulty(minutes(60)))
	assert.Equal(t, model.DifficultyExtended, Difficulty(minutes(90)))
}
