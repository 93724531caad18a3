package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"task not found", ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND"},
		{"wrapped user not found", fmt.Errorf("load assignee: %w", ErrUserNotFound), http.StatusNotFound, "USER_NOT_FOUND"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"validation", NewValidationError("assignedTo", "must not be empty"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("create: %w", NewValidationError("title", "required")), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", ErrConflict, http.StatusConflict, "CONFLICT"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestMapErrorToHTTP_HidesInternalDetail(t *testing.T) {
	got := MapErrorToHTTP(errors.New("dial tcp 10.0.0.3:3306: refused"))
	assert.Equal(t, "internal server error", got.ToErrorResponse().Error)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("status", "must be one of Pending, In Progress, Completed")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "status: must be one of Pending, In Progress, Completed", err.Error())
	assert.Equal(t, "bare", NewValidationError("", "bare").Error())
}
