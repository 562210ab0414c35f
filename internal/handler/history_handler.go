package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

const defaultHistoryLimit = 10

// HistoryHandler serves a student's past results.
type HistoryHandler struct {
	historyService *service.HistoryService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// ListResults godoc
// GET /api/v1/student/results?limit=10
// Returns per-test summaries rebuilt from stored answers, highest test id
// first.
func (h *HistoryHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, ok := bindLimit(c)
	if !ok {
		return
	}

	summaries, total, err := h.historyService.Summaries(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	results := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		results = append(results, gin.H{
			"test_id":         s.TestID,
			"title":           s.Title,
			"description":     s.Description,
			"total_questions": s.TotalQuestions,
			"correct_answers": s.CorrectAnswers,
			"score":           s.Score,
			"grade":           scoring.Grade(s.Score),
			"completed_at":    s.CompletedAt,
		})
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Limit:      limit,
		Returned:   len(results),
		TotalItems: total,
	})
}

// GetCompletion godoc
// GET /api/v1/student/tests/:test_id/completion
// Returns the answer-by-answer review of a taken test.
func (h *HistoryHandler) GetCompletion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	summary, err := h.historyService.Completion(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		if errors.Is(err, service.ErrNoResults) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"completion": summary,
		"grade":      scoring.Grade(summary.Score),
		"feedback":   scoring.Feedback(summary.Score),
	})
}

// ListAttempts godoc
// GET /api/v1/student/attempts?limit=10
// Returns the completed-attempt log, newest first.
func (h *HistoryHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, ok := bindLimit(c)
	if !ok {
		return
	}

	attempts, err := h.historyService.Attempts(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

func bindLimit(c *gin.Context) (int, bool) {
	var q model.ListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return 0, false
	}
	if q.Limit == 0 {
		q.Limit = defaultHistoryLimit
	}
	return q.Limit, true
}
