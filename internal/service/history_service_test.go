package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-quiz/internal/model"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func resultRows() []model.ResultRow {
	at := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	return []model.ResultRow{
		{ResultID: 1, TestID: 1, QuestionID: 1, GivenAnswer: 2, CreatedAt: at, TestTitle: strPtr("Python Basics"), AnswerKey: intPtr(2)},
		{ResultID: 2, TestID: 1, QuestionID: 2, GivenAnswer: 1, CreatedAt: at, TestTitle: strPtr("Python Basics"), AnswerKey: intPtr(3)},
		{ResultID: 3, TestID: 2, QuestionID: 4, GivenAnswer: 4, CreatedAt: at.Add(time.Hour), TestTitle: strPtr("Go Basics"), AnswerKey: intPtr(4)},
		{ResultID: 4, TestID: 3, QuestionID: 7, GivenAnswer: 1, CreatedAt: at.Add(2 * time.Hour)},
	}
}

func TestHistoryService_SummariesNewestTestFirst(t *testing.T) {
	results := &mockResultStore{}
	results.On("ListByStudent", mock.Anything, studentID).Return(resultRows(), nil)
	svc := NewHistoryService(results, &mockAttemptLister{})

	summaries, total, err := svc.Summaries(context.Background(), studentID, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, total)
	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries[0].TestID)
	assert.Equal(t, 0, summaries[0].Score, "missing answer key counts as incorrect")
	assert.Equal(t, 2, summaries[1].TestID)
	assert.Equal(t, 100, summaries[1].Score)
}

func TestHistoryService_SummariesEmpty(t *testing.T) {
	results := &mockResultStore{}
	results.On("ListByStudent", mock.Anything, studentID).Return([]model.ResultRow{}, nil)
	svc := NewHistoryService(results, &mockAttemptLister{})

	summaries, total, err := svc.Summaries(context.Background(), studentID, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

func TestHistoryService_Completion(t *testing.T) {
	results := &mockResultStore{}
	rows := resultRows()[:2]
	results.On("ListByStudentAndTest", mock.Anything, studentID, 1).Return(rows, nil)
	results.On("ListByStudentAndTest", mock.Anything, studentID, 5).Return([]model.ResultRow{}, nil)
	svc := NewHistoryService(results, &mockAttemptLister{})

	summary, err := svc.Completion(context.Background(), studentID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Equal(t, 1, summary.CorrectAnswers)
	assert.Equal(t, 50, summary.Score)
	require.Len(t, summary.Answers, 2)
	assert.True(t, summary.Answers[0].IsCorrect)
	assert.False(t, summary.Answers[1].IsCorrect)

	_, err = svc.Completion(context.Background(), studentID, 5)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestHistoryService_HasTaken(t *testing.T) {
	results := &mockResultStore{}
	results.On("ExistsForTest", mock.Anything, studentID, 1).Return(true, nil)
	results.On("ExistsForTest", mock.Anything, studentID, 2).Return(false, errors.New("down"))
	svc := NewHistoryService(results, &mockAttemptLister{})

	taken, err := svc.HasTaken(context.Background(), studentID, 1)
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = svc.HasTaken(context.Background(), studentID, 2)
	assert.Error(t, err)
}

func TestHistoryService_Attempts(t *testing.T) {
	attempts := &mockAttemptLister{}
	attempts.On("ListByStudent", mock.Anything, studentID, 5).Return([]model.Attempt{{ID: 9, TestID: 1, Score: 2}}, nil)
	svc := NewHistoryService(&mockResultStore{}, attempts)

	list, err := svc.Attempts(context.Background(), studentID, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].ID)
	attempts.AssertExpectations(t)
}
