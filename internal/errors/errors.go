// Package errors provides custom error types for the settleup API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// copies made by Wrap and WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Settlement errors.
var (
	ErrSettlementNotFound = &AppError{Code: "SETTLEMENT_NOT_FOUND", Message: "Settlement not found", StatusCode: http.StatusNotFound}
	ErrSettlementArchived = &AppError{Code: "SETTLEMENT_ARCHIVED", Message: "Settlement is archived; only payment status can change", StatusCode: http.StatusConflict}
	ErrSettlementActive   = &AppError{Code: "SETTLEMENT_ACTIVE", Message: "Settlement is already active", StatusCode: http.StatusConflict}
	ErrVersionConflict    = &AppError{Code: "VERSION_CONFLICT", Message: "Settlement was modified by another writer", StatusCode: http.StatusConflict}
)

// Sheet edit errors. These are refusals: the sheet is left unchanged.
var (
	ErrLastParticipant     = &AppError{Code: "LAST_PARTICIPANT", Message: "At least one participant is required", StatusCode: http.StatusUnprocessableEntity}
	ErrLastExpense         = &AppError{Code: "LAST_EXPENSE", Message: "At least one expense item is required", StatusCode: http.StatusUnprocessableEntity}
	ErrParticipantNotFound = &AppError{Code: "PARTICIPANT_NOT_FOUND", Message: "Participant not found", StatusCode: http.StatusNotFound}
	ErrExpenseNotFound     = &AppError{Code: "EXPENSE_NOT_FOUND", Message: "Expense not found", StatusCode: http.StatusNotFound}
	ErrUnknownEdit         = &AppError{Code: "UNKNOWN_EDIT", Message: "Unsupported sheet edit", StatusCode: http.StatusBadRequest}
)

// Comment errors.
var (
	ErrCommentNotFound       = &AppError{Code: "COMMENT_NOT_FOUND", Message: "Comment not found", StatusCode: http.StatusNotFound}
	ErrEmptyComment          = &AppError{Code: "EMPTY_COMMENT", Message: "A comment needs text or at least one image", StatusCode: http.StatusBadRequest}
	ErrTooManyImages         = &AppError{Code: "TOO_MANY_IMAGES", Message: "A comment can carry at most 10 images", StatusCode: http.StatusBadRequest}
	ErrInvalidGuestPassword  = &AppError{Code: "INVALID_GUEST_PASSWORD", Message: "Password does not match", StatusCode: http.StatusForbidden}
	ErrNotGuestComment       = &AppError{Code: "NOT_GUEST_COMMENT", Message: "Comment was not posted by a guest", StatusCode: http.StatusBadRequest}
	ErrInvalidParentComment  = &AppError{Code: "INVALID_PARENT_COMMENT", Message: "Parent comment does not belong to this settlement", StatusCode: http.StatusBadRequest}
	ErrCommentAlreadyDeleted = &AppError{Code: "COMMENT_DELETED", Message: "Comment has been deleted", StatusCode: http.StatusGone}
)
