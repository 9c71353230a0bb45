package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := ErrConfiguration.WithMessage("rule r1: empty id")

	assert.True(t, stderrors.Is(err, ErrConfiguration))
	assert.False(t, stderrors.Is(err, ErrRouting))
	assert.True(t, IsConfiguration(err))
	assert.Equal(t, "CONFIGURATION_ERROR: rule r1: empty id", err.Error())
}

func TestError_WithDetailDoesNotShareMaps(t *testing.T) {
	a := ErrDelivery.WithDetail("service", "billing")
	b := a.WithDetail("event", "e1")

	assert.Len(t, a.Details, 1)
	assert.Len(t, b.Details, 2)
	assert.Empty(t, ErrDelivery.Details)
}

func TestError_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"delivery", ErrDelivery, true},
		{"configuration", ErrConfiguration, false},
		{"session state", ErrSessionState, false},
		{"forced fatal", ErrDelivery.AsFatal(), false},
		{"forced retryable", ErrValidation.AsRetryable(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	err := ErrSessionState.WithMessage("cannot pause a paused session").WithDetail("session_id", "s1")

	resp := ToErrorResponse(err)
	assert.Equal(t, "SESSION_STATE_ERROR", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"session_id": "s1"}, resp["details"])
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(err))

	delivery := ErrDelivery.WithMessage("dispatching event e1").WithCause(stderrors.New("dlq unavailable"))
	assert.True(t, IsDelivery(fmt.Errorf("wrapped: %w", delivery)))
	assert.False(t, IsDelivery(err))
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(delivery))

	plain := ToErrorResponse(stderrors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", plain["error_code"])
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(stderrors.New("boom")))
}

func TestRecoverPanicAs(t *testing.T) {
	assert.Nil(t, RecoverPanicAs(nil, ErrRouting))

	err := RecoverPanicAs("index out of range", ErrRouting)
	require.Error(t, err)
	assert.True(t, IsRouting(err))

	var appErr *Error
	require.True(t, stderrors.As(err, &appErr))
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
}
