package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-quiz/internal/history"
	"github.com/stemsi/exstem-quiz/internal/model"
)

var ErrNoResults = errors.New("no results for this test")

// ResultStore is the per-question result persistence.
type ResultStore interface {
	Insert(ctx context.Context, studentID, testID int, rows []model.SubmissionRow) (int, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.ResultRow, error)
	ListByStudentAndTest(ctx context.Context, studentID, testID int) ([]model.ResultRow, error)
	ExistsForTest(ctx context.Context, studentID, testID int) (bool, error)
}

// AttemptLister reads the completed-attempt log.
type AttemptLister interface {
	ListByStudent(ctx context.Context, studentID, limit int) ([]model.Attempt, error)
}

// HistoryService rebuilds result summaries on every read.
type HistoryService struct {
	results  ResultStore
	attempts AttemptLister
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(results ResultStore, attempts AttemptLister) *HistoryService {
	return &HistoryService{results: results, attempts: attempts}
}

// Summaries returns the student's per-test summaries, newest test id first,
// truncated to limit. The second value is the untruncated count.
func (s *HistoryService) Summaries(ctx context.Context, studentID, limit int) ([]model.TestSummary, int, error) {
	rows, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	all := history.Aggregate(rows)
	return history.Limit(all, limit), len(all), nil
}

// Completion returns the per-answer breakdown of one test.
func (s *HistoryService) Completion(ctx context.Context, studentID, testID int) (*model.TestSummary, error) {
	rows, err := s.results.ListByStudentAndTest(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	summary := history.Details(testID, rows)
	if summary == nil {
		return nil, ErrNoResults
	}
	return summary, nil
}

// HasTaken reports whether the student has stored results for the test.
func (s *HistoryService) HasTaken(ctx context.Context, studentID, testID int) (bool, error) {
	taken, err := s.results.ExistsForTest(ctx, studentID, testID)
	if err != nil {
		return false, fmt.Errorf("check results: %w", err)
	}
	return taken, nil
}

// Attempts returns the student's completed attempts, newest first.
func (s *HistoryService) Attempts(ctx context.Context, studentID, limit int) ([]model.Attempt, error) {
	attempts, err := s.attempts.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}
