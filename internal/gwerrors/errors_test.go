package gwerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayErrorUnwrap(t *testing.T) {
	base := errors.New("pipe closed")
	ge := New(TransportFailure, "rpcclient", base)

	assert.Equal(t, base, errors.Unwrap(ge))
	assert.ErrorIs(t, ge, base)
	assert.Contains(t, ge.Error(), "rpcclient")
	assert.Contains(t, ge.Error(), "transport_failure")
}

func TestGatewayErrorNilErr(t *testing.T) {
	ge := New(ToolWorkflowTimeout, "toolworkflow", nil)
	assert.Equal(t, "toolworkflow: tool_workflow_timeout", ge.Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(Transient, "stt", nil)))
	assert.True(t, Retryable(New(TransportFailure, "rpcclient", nil)))
	assert.False(t, Retryable(New(ClientGone, "gateway", nil)))
	assert.False(t, Retryable(errors.New("plain error")))
}

func TestNotConnectedAndDecodeErrorAreNotRetryableHere(t *testing.T) {
	// C1 never retries itself (spec: "No retry inside C1; retries live in
	// C6"), so neither of its own-layer kinds should look retryable to a
	// generic caller dispatching on Retryable.
	assert.False(t, Retryable(New(NotConnected, "rpcclient", nil)))
	assert.False(t, Retryable(New(DecodeError, "rpcclient", nil)))
}
