package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/scoring"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/session"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// SessionHandler drives a student's test session over HTTP.
type SessionHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// BeginSession godoc
// POST /api/v1/student/tests/:test_id/session
// Selects a test and starts its countdown once the questions are loaded.
// Calling it again for the running test returns the current state.
func (h *SessionHandler) BeginSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.Begin(c.Request.Context(), claims.UserID, testID)
	h.respond(c, snap, err)
}

// GetSession godoc
// GET /api/v1/student/session
// Returns the current session, or the last saved snapshot after a restart.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Current(c.Request.Context(), claims.UserID)
	h.respond(c, snap, err)
}

// SelectChoice godoc
// POST /api/v1/student/session/select
// Marks a choice on the current question without recording it.
func (h *SessionHandler) SelectChoice(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SelectChoiceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessionService.Select(claims.UserID, *req.Choice)
	h.respond(c, snap, err)
}

// Advance godoc
// POST /api/v1/student/session/advance
// Records the selection and moves to the next question. On the last
// question the answers are submitted and the outcome returned.
func (h *SessionHandler) Advance(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Advance(c.Request.Context(), claims.UserID)
	h.respond(c, snap, err)
}

// Retreat godoc
// POST /api/v1/student/session/retreat
func (h *SessionHandler) Retreat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Retreat(claims.UserID)
	h.respond(c, snap, err)
}

// Reload godoc
// POST /api/v1/student/session/reload
// Retries loading the questions after a failure.
func (h *SessionHandler) Reload(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Reload(c.Request.Context(), claims.UserID)
	h.respond(c, snap, err)
}

// Submit godoc
// POST /api/v1/student/session/submit
// Retries saving the answers after a failed submission.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Submit(c.Request.Context(), claims.UserID)
	h.respond(c, snap, err)
}

// Leave godoc
// POST /api/v1/student/session/leave
// Requests to leave. A running test needs confirmation and keeps counting
// down meanwhile.
func (h *SessionHandler) Leave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, needsConfirm, err := h.sessionService.Leave(claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":               snap,
		"requires_confirmation": needsConfirm,
	})
}

// ConfirmLeave godoc
// POST /api/v1/student/session/leave/confirm
// Abandons the running test. Nothing is submitted.
func (h *SessionHandler) ConfirmLeave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.ConfirmLeave(claims.UserID)
	h.respond(c, snap, err)
}

// CancelLeave godoc
// POST /api/v1/student/session/leave/cancel
func (h *SessionHandler) CancelLeave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.CancelLeave(claims.UserID)
	h.respond(c, snap, err)
}

func (h *SessionHandler) respond(c *gin.Context, snap session.Snapshot, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := sessionErrorCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("code", string(code)).Msg("Session request failed")
	}
	response.Fail(c, status, code)
}

// sessionErrorCode maps session and service errors to API codes. Errors
// wrapping a more specific cause are matched on the cause first.
func sessionErrorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrNoSession):
		return http.StatusNotFound, response.ErrNoSession
	case errors.Is(err, service.ErrSessionInProgress):
		return http.StatusConflict, response.ErrSessionInProgress
	case errors.Is(err, service.ErrTestNotFound):
		return http.StatusNotFound, response.ErrTestNotFound
	case errors.Is(err, session.ErrLoad):
		return http.StatusBadGateway, response.ErrLoadFailed
	case errors.Is(err, scoring.ErrInvalidAnswerValue):
		return http.StatusUnprocessableEntity, response.ErrInvalidAnswerValue
	case errors.Is(err, session.ErrSubmission):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	case errors.Is(err, session.ErrNoSelection):
		return http.StatusBadRequest, response.ErrNoSelection
	case errors.Is(err, session.ErrInvalidChoice):
		return http.StatusBadRequest, response.ErrInvalidChoice
	case errors.Is(err, session.ErrAtFirstQuestion):
		return http.StatusBadRequest, response.ErrAtFirstQuestion
	case errors.Is(err, session.ErrNotSubmitting):
		return http.StatusConflict, response.ErrNothingToSubmit
	case errors.Is(err, session.ErrSubmitInProgress):
		return http.StatusConflict, response.ErrSubmissionInProgress
	case errors.Is(err, session.ErrLeaveNotRequested):
		return http.StatusConflict, response.ErrLeaveNotRequested
	case errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrOwnershipConflict),
		errors.Is(err, session.ErrNotLoading),
		errors.Is(err, session.ErrLoadInProgress):
		return http.StatusConflict, response.ErrSessionNotActive
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
