package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam sessions ─────────────────────────────────────────────────
	ErrAlreadyAttempted   ErrCode = "ALREADY_ATTEMPTED"
	ErrExamNotOpen        ErrCode = "EXAM_NOT_OPEN"
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrInvalidState       ErrCode = "INVALID_STATE"
	ErrInvalidScore       ErrCode = "INVALID_SCORE"
	ErrPaperNotFound      ErrCode = "PAPER_NOT_FOUND"
	ErrCatalogUnavailable ErrCode = "CATALOG_UNAVAILABLE"
	ErrUserNotFound       ErrCode = "USER_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
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

	// ─── Exam sessions ─────────────────────────────────────────────────
	case ErrAlreadyAttempted:
		return "You have already attempted this exam."
	case ErrExamNotOpen:
		return "This exam is not currently open."
	case ErrSessionNotFound:
		return "Exam session not found."
	case ErrInvalidState:
		return "This exam session does not allow that operation anymore."
	case ErrInvalidScore:
		return "The score is outside the paper's allowed range."
	case ErrPaperNotFound:
		return "Exam paper not found."
	case ErrCatalogUnavailable:
		return "The paper catalog is temporarily unavailable. Please try again."
	case ErrUserNotFound:
		return "User not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
