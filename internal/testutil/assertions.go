package testutil

import (
	"errors"
	"testing"

	apperrors "settleup/internal/errors"
)

// AssertAppError fails the test unless err is an *AppError carrying
// expectedCode. The matched error is returned for further checks.
func AssertAppError(t *testing.T, err error, expectedCode string) *apperrors.AppError {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected %s, got nil", expectedCode)
	case !errors.As(err, &appErr):
		t.Fatalf("expected %s, got %T: %v", expectedCode, err, err)
	case appErr.Code != expectedCode:
		t.Errorf("expected %s, got %s (%s)", expectedCode, appErr.Code, appErr.Message)
	}
	return appErr
}

// AssertAppErrorStatus is AssertAppError plus a check of the HTTP status the
// error maps to.
func AssertAppErrorStatus(t *testing.T, err error, expectedCode string, status int) {
	t.Helper()

	if appErr := AssertAppError(t, err, expectedCode); appErr.StatusCode != status {
		t.Errorf("expected %s to map to %d, got %d", expectedCode, status, appErr.StatusCode)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
