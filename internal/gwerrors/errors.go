// Package gwerrors defines the gateway's typed error taxonomy. Components
// wrap underlying failures in a GatewayError so callers can dispatch on
// Kind (retry, surface to the client, tear the session down) instead of
// string-matching error messages.
package gwerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a GatewayError for policy dispatch.
type Kind string

const (
	// TransportFailure is a C1 child-process/pipe failure: EOF mid-read or
	// a malformed Content-Length header. The connection is not usable
	// again without a reset.
	TransportFailure Kind = "transport_failure"
	// NotConnected is a C1 call attempted before Connect succeeded (or
	// after the connection was reset), distinct from TransportFailure so
	// callers can tell "never connected" from "connection broke mid-call".
	NotConnected Kind = "not_connected"
	// DecodeError is a C1 response body that was fully framed and read but
	// was not valid JSON. The transport itself is still fine, so this must
	// never trigger a connection reset.
	DecodeError Kind = "decode_error"
	// ProtocolError is malformed inbound JSON from a client.
	ProtocolError Kind = "protocol_error"
	// ExternalServiceFailure is an STT/TTS/LLM call failure.
	ExternalServiceFailure Kind = "external_service_failure"
	// ToolWorkflowTimeout is C6 exceeding its wall-clock ceiling.
	ToolWorkflowTimeout Kind = "tool_workflow_timeout"
	// ToolQualityBelowThreshold is C6 producing a result below the quality gate.
	ToolQualityBelowThreshold Kind = "tool_quality_below_threshold"
	// Transient is a retryable per-stage failure (e.g. 503).
	Transient Kind = "transient"
	// ClientGone is a send failure or disconnect.
	ClientGone Kind = "client_gone"
)

// GatewayError attaches a Kind and a component tag to an underlying error.
type GatewayError struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// New wraps err with a Kind and the name of the component that observed it.
// err may be nil, in which case the Kind alone describes the failure.
func New(kind Kind, component string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Component: component, Err: err}
}

// Retryable reports whether policy allows the stage owner to retry the
// call that produced err without surfacing it to the client.
func Retryable(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.Kind {
	case Transient, TransportFailure:
		return true
	default:
		return false
	}
}
