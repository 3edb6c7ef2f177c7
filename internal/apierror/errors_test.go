package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := New(http.StatusForbidden, "WRONG_SIGN", "signature is wrong")
	assert.Equal(t, "WRONG_SIGN: signature is wrong", err.Error())

	withCause := err.WithCause(errors.New("boom"))
	assert.Equal(t, "WRONG_SIGN: signature is wrong: boom", withCause.Error())
}

func TestError_Is(t *testing.T) {
	base := Unauthorized("SESSION_NOT_FOUND", "session not found")

	// Same code matches regardless of details or cause.
	assert.ErrorIs(t, base.WithDetails("extra"), base)
	assert.ErrorIs(t, base.WithCause(errors.New("boom")), base)

	// Different code does not match.
	other := Unauthorized("NO_CREDENTIALS", "credentials required")
	assert.NotErrorIs(t, base, other)

	// Wrapped errors still match via errors.Is.
	wrapped := fmt.Errorf("during auth: %w", base)
	assert.ErrorIs(t, wrapped, base)
}

func TestError_WithDetailsDoesNotMutate(t *testing.T) {
	base := BadRequest("VALIDATION_FAILED", "validation failed")
	withDetails := base.WithDetails(map[string]string{"amount": "required"})

	assert.Nil(t, base.Details)
	assert.NotNil(t, withDetails.Details)
}

func TestFromError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FromError(nil))
	})

	t.Run("structured error passes through", func(t *testing.T) {
		apiErr := Forbidden("NOT_COUNTERPARTY", "not a counterparty")
		got := FromError(fmt.Errorf("wrapped: %w", apiErr))
		assert.Equal(t, apiErr, got)
	})

	t.Run("unknown error becomes opaque 500", func(t *testing.T) {
		cause := errors.New("pq: connection refused")
		got := FromError(cause)

		require.NotNil(t, got)
		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.Equal(t, "INTERNAL", got.Code)
		assert.NotContains(t, got.Message, "pq:")
		assert.ErrorIs(t, got, cause)
	})
}

func TestEnvelope_Serialization(t *testing.T) {
	env := NewEnvelope(
		TooManyRequests("TOO_MANY_SIMILAR_REQUESTS", "similar request in progress").
			WithCause(errors.New("internal detail")),
	)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	// Status and cause never reach the client.
	assert.JSONEq(t, `{"error":{"code":"TOO_MANY_SIMILAR_REQUESTS","message":"similar request in progress"}}`, string(data))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		status int
	}{
		{"unauthorized", Unauthorized("C", "m"), http.StatusUnauthorized},
		{"forbidden", Forbidden("C", "m"), http.StatusForbidden},
		{"bad request", BadRequest("C", "m"), http.StatusBadRequest},
		{"not found", NotFound("C", "m"), http.StatusNotFound},
		{"too many requests", TooManyRequests("C", "m"), http.StatusTooManyRequests},
		{"internal", Internal("m"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}
