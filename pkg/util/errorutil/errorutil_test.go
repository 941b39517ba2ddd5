package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{name: "domain error passes through", err: NewForbidden("nope"), code: "FORBIDDEN", status: http.StatusForbidden},
		{name: "wrapped domain error", err: fmt.Errorf("ctx: %w", NewConflict("busy", nil)), code: "CONFLICT", status: http.StatusConflict},
		{name: "fiber error keeps status", err: fiber.NewError(http.StatusBadRequest, "invalid payload"), code: "VALIDATION_FAILED", status: http.StatusBadRequest},
		{name: "no rows is not found", err: pgx.ErrNoRows, code: "NOT_FOUND", status: http.StatusNotFound},
		{name: "anything else is internal", err: errors.New("boom"), code: "INTERNAL_ERROR", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
		})
	}

	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("classify: %w", NewNotOwner(nil))
	assert.True(t, HasCode(err, "NOT_OWNER"))
	assert.False(t, HasCode(err, "FORBIDDEN"))
	assert.False(t, HasCode(errors.New("plain"), "NOT_OWNER"))
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "db down")
}
