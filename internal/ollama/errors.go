// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes transport failures for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeStatus
	ErrTypeInvalidResponse
	ErrTypeRead
	ErrTypeServer
	ErrTypeCanceled
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotRunning:
		return "not_running"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeStatus:
		return "status"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeRead:
		return "read"
	case ErrTypeServer:
		return "server"
	case ErrTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TransportError is the single terminal failure of a request: it could not be
// completed, the server answered with a failure status, or the stream broke.
// Nothing in this package retries.
type TransportError struct {
	Type       ErrorType
	Message    string
	StatusCode int // HTTP status, when the server answered
	Cause      error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg += " (HTTP " + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is matches any TransportError sentinel of the same Type, so
// errors.Is(err, ErrNotRunning) works regardless of message or cause.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &TransportError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &TransportError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &TransportError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrCanceled      = &TransportError{Type: ErrTypeCanceled, Message: "request canceled"}
)

// Precondition failures for ChatStream. These are caller bugs, so they are
// plain errors rather than TransportErrors.
var (
	ErrEmptyModel    = errors.New("ollama: model must not be empty")
	ErrEmptyHistory  = errors.New("ollama: history must not be empty")
	ErrMissingSystem = errors.New("ollama: history must start with a system message")
)

// IsNotRunning checks if an error indicates Ollama is not reachable.
func IsNotRunning(err error) bool {
	return errors.Is(err, ErrNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}

// IsCanceled checks if a request was abandoned by its caller.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// classifyDoError maps an http.Client.Do failure onto a TransportError.
func classifyDoError(ctx context.Context, err error) *TransportError {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &TransportError{Type: ErrTypeCanceled, Message: "request canceled", Cause: context.Canceled}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &TransportError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
}
