package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// TestHandler serves the test catalogue.
type TestHandler struct {
	testService    *service.TestService
	historyService *service.HistoryService
	defaultSeconds int
}

// NewTestHandler creates a new TestHandler. defaultSeconds is the budget of
// tests without a time limit.
func NewTestHandler(testService *service.TestService, historyService *service.HistoryService, defaultSeconds int) *TestHandler {
	return &TestHandler{
		testService:    testService,
		historyService: historyService,
		defaultSeconds: defaultSeconds,
	}
}

// ListTests godoc
// GET /api/v1/student/tests
// Lists every test with its question count, difficulty and whether the
// student has taken it.
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tests, err := h.testService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// GetTest godoc
// GET /api/v1/student/tests/:test_id
func (h *TestHandler) GetTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	test, err := h.testService.Get(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	taken, err := h.historyService.HasTaken(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"test":          test,
		"taken":         taken,
		"total_seconds": test.TotalSeconds(h.defaultSeconds),
		"difficulty":    scoring.Difficulty(test.TimeLimitMinutes),
	})
}

// parseTestID reads :test_id and writes the error response itself.
func parseTestID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("test_id"))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
