package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrTestNotFound ErrCode = "TEST_NOT_FOUND"

	// ─── Session ───────────────────────────────────────────────────────
	ErrNoSession            ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionInProgress    ErrCode = "SESSION_IN_PROGRESS"
	ErrSessionNotActive     ErrCode = "SESSION_NOT_ACTIVE"
	ErrNoSelection          ErrCode = "NO_SELECTION"
	ErrInvalidChoice        ErrCode = "INVALID_CHOICE"
	ErrAtFirstQuestion      ErrCode = "AT_FIRST_QUESTION"
	ErrLeaveNotRequested    ErrCode = "LEAVE_NOT_REQUESTED"
	ErrNothingToSubmit      ErrCode = "NOTHING_TO_SUBMIT"
	ErrSubmissionInProgress ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrLoadFailed           ErrCode = "LOAD_FAILED"
	ErrSubmissionFailed     ErrCode = "SUBMISSION_FAILED"
	ErrInvalidAnswerValue   ErrCode = "INVALID_ANSWER_VALUE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Student ID, username or password is incorrect."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrTestNotFound:
		return "This test does not exist."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrNoSession:
		return "You have no test in progress."
	case ErrSessionInProgress:
		return "Another test is already in progress. Finish or leave it first."
	case ErrSessionNotActive:
		return "This test is not running."
	case ErrNoSelection:
		return "Please select an answer before continuing."
	case ErrInvalidChoice:
		return "That choice is not available for this question."
	case ErrAtFirstQuestion:
		return "You are already on the first question."
	case ErrLeaveNotRequested:
		return "There is no pending request to leave this test."
	case ErrNothingToSubmit:
		return "There is no submission waiting to be retried."
	case ErrSubmissionInProgress:
		return "Your answers are being submitted."
	case ErrLoadFailed:
		return "Unable to load test questions. Please try again."
	case ErrSubmissionFailed:
		return "Your results could not be saved. Please try again."
	case ErrInvalidAnswerValue:
		return "An answer value is outside the allowed range."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
