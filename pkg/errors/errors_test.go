package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "intent not found"},
			expected: "NOT_FOUND: intent not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodePersistence,
				Message: "failed to persist intents",
				Err:     errors.New("disk full"),
			},
			expected: "PERSISTENCE_ERROR: failed to persist intents (caused by: disk full)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNetwork(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Network("commit booking", cause)

	if err.Code != CodeNetwork {
		t.Errorf("expected code %s, got %s", CodeNetwork, err.Code)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected network error to wrap its cause")
	}
	if err.Details["operation"] != "commit booking" {
		t.Errorf("expected operation detail, got %v", err.Details["operation"])
	}
}

func TestServerRejection(t *testing.T) {
	err := ServerRejection("commit booking", http.StatusUnprocessableEntity, "capacity exceeded")

	if err.Code != CodeServerRejection {
		t.Errorf("expected code %s, got %s", CodeServerRejection, err.Code)
	}
	if err.Details["remote_status"] != http.StatusUnprocessableEntity {
		t.Errorf("expected remote_status 422, got %v", err.Details["remote_status"])
	}
	if !strings.Contains(err.Message, "capacity exceeded") {
		t.Errorf("expected reason in message, got %q", err.Message)
	}
}

func TestPredicates_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("sync attempt: %w", ConflictUnresolvable("date_overlap", "no alternative dates"))

	if !IsConflictUnresolvable(wrapped) {
		t.Errorf("IsConflictUnresolvable should see through fmt wrapping")
	}
	if IsNetwork(wrapped) {
		t.Errorf("IsNetwork should be false for unresolvable conflicts")
	}
	if !IsPersistence(fmt.Errorf("enqueue: %w", Persistence("write failed", nil))) {
		t.Errorf("IsPersistence should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", Network("check conflicts", errors.New("timeout")), true},
		{"server rejection", ServerRejection("commit booking", 500, "boom"), true},
		{"unresolvable conflict", ConflictUnresolvable("capacity_exceeded", "no resources"), false},
		{"validation", Validation("bad", nil), false},
		{"plain error", errors.New("unexpected EOF"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFoundWithID("Intent", "abc")
	regularErr := errors.New("regular error")

	if AsAppError(fmt.Errorf("wrapped: %w", appErr)) != appErr {
		t.Errorf("AsAppError() should unwrap to the same AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	jsonStr := string(NotFoundWithID("Intent", "12345").ToJSON())

	if !strings.Contains(jsonStr, "NOT_FOUND") {
		t.Errorf("ToJSON() should contain error code, got %s", jsonStr)
	}
	if !strings.Contains(jsonStr, "12345") {
		t.Errorf("ToJSON() should contain details, got %s", jsonStr)
	}
}
