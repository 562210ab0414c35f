package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/stemsi/exstem-quiz/internal/model"
)

type mockTestStore struct{ mock.Mock }

func (m *mockTestStore) GetByID(ctx context.Context, id int) (*model.Test, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*model.Test)
	return t, args.Error(1)
}

func (m *mockTestStore) ListWithCounts(ctx context.Context, studentID int) ([]model.TestListing, error) {
	args := m.Called(ctx, studentID)
	l, _ := args.Get(0).([]model.TestListing)
	return l, args.Error(1)
}

func (m *mockTestStore) ListIDs(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int)
	return ids, args.Error(1)
}

type mockQuestionStore struct{ mock.Mock }

func (m *mockQuestionStore) ListByTest(ctx context.Context, testID int) ([]model.Question, error) {
	args := m.Called(ctx, testID)
	q, _ := args.Get(0).([]model.Question)
	return q, args.Error(1)
}

type mockResultStore struct{ mock.Mock }

func (m *mockResultStore) Insert(ctx context.Context, studentID, testID int, rows []model.SubmissionRow) (int, error) {
	args := m.Called(ctx, studentID, testID, rows)
	return args.Int(0), args.Error(1)
}

func (m *mockResultStore) ListByStudent(ctx context.Context, studentID int) ([]model.ResultRow, error) {
	args := m.Called(ctx, studentID)
	r, _ := args.Get(0).([]model.ResultRow)
	return r, args.Error(1)
}

func (m *mockResultStore) ListByStudentAndTest(ctx context.Context, studentID, testID int) ([]model.ResultRow, error) {
	args := m.Called(ctx, studentID, testID)
	r, _ := args.Get(0).([]model.ResultRow)
	return r, args.Error(1)
}

func (m *mockResultStore) ExistsForTest(ctx context.Context, studentID, testID int) (bool, error) {
	args := m.Called(ctx, studentID, testID)
	return args.Bool(0), args.Error(1)
}

type mockAttemptLister struct{ mock.Mock }

func (m *mockAttemptLister) ListByStudent(ctx context.Context, studentID, limit int) ([]model.Attempt, error) {
	args := m.Called(ctx, studentID, limit)
	a, _ := args.Get(0).([]model.Attempt)
	return a, args.Error(1)
}

type mockStudentFinder struct{ mock.Mock }

func (m *mockStudentFinder) GetByStudentID(ctx context.Context, studentID int) (*model.Student, error) {
	args := m.Called(ctx, studentID)
	s, _ := args.Get(0).(*model.Student)
	return s, args.Error(1)
}

func (m *mockStudentFinder) GetByUsername(ctx context.Context, username string) (*model.Student, error) {
	args := m.Called(ctx, username)
	s, _ := args.Get(0).(*model.Student)
	return s, args.Error(1)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func minutes(m int) *int { return &m }

func pythonTest() *model.Test {
	return &model.Test{
		ID:        1,
		Title:     "Python Basics",
		CreatedAt: time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

func pythonQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Prompt: "What is the output of print(2 ** 3)?", Choices: [4]string{"6", "8", "9", "5"}, AnswerKey: 2},
		{ID: 2, Prompt: "Which keyword defines a function?", Choices: [4]string{"func", "define", "def", "function"}, AnswerKey: 3},
		{ID: 3, Prompt: "Which type is immutable?", Choices: [4]string{"list", "dict", "tuple", "set"}, AnswerKey: 3},
	}
}
