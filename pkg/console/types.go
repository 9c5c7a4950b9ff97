// Package console implements the operator side of a call-center agent
// station. It registers the agent with the call-center backend, fetches the
// next waiting call on demand, obtains a LiveKit session token, and joins
// the call's room as an audio-only participant.
//
// The package deliberately keeps the backend and the media transport as
// external collaborators: the backend is a plain HTTP service, and the live
// session is owned entirely by the LiveKit SDK once a token is handed over.
package console

import (
	"go.uber.org/zap"
)

// SessionState describes where the controller is in the call-acquisition
// sequence. States only ever advance; there is no path back except process
// exit.
type SessionState int

const (
	// StateUnregistered is the initial state, before the backend has
	// acknowledged the agent.
	StateUnregistered SessionState = iota

	// StateRegistered means the backend issued an agent ID and the agent
	// can poll for waiting calls.
	StateRegistered

	// StateCallAssigned means a call room has been fetched and the agent
	// can request a session token to answer it.
	StateCallAssigned

	// StateSessionActive means the live media session has been handed to
	// the LiveKit SDK. Terminal for the controller.
	StateSessionActive
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateCallAssigned:
		return "call_assigned"
	case StateSessionActive:
		return "session_active"
	default:
		return "unknown"
	}
}

// Logger interface for pluggable logging.
// Implement this interface to integrate with your application's logging
// system. The fields parameter accepts key-value pairs for structured
// logging.
type Logger interface {
	// Debug logs a debug-level message with optional fields.
	Debug(msg string, fields ...interface{})

	// Info logs an info-level message with optional fields.
	Info(msg string, fields ...interface{})

	// Warn logs a warning-level message with optional fields.
	Warn(msg string, fields ...interface{})

	// Error logs an error-level message with optional fields.
	Error(msg string, fields ...interface{})
}

// zapLogger adapts a zap sugared logger to the Logger interface.
type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger in the package Logger interface.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l: l.Sugar()}
}

// NewDefaultLogger returns a production zap logger wrapped in the Logger
// interface. Falls back to a no-op logger if construction fails.
func NewDefaultLogger() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l.Sugar()}
}

func (z *zapLogger) Debug(msg string, fields ...interface{}) {
	z.l.Debugw(msg, fields...)
}

func (z *zapLogger) Info(msg string, fields ...interface{}) {
	z.l.Infow(msg, fields...)
}

func (z *zapLogger) Warn(msg string, fields ...interface{}) {
	z.l.Warnw(msg, fields...)
}

func (z *zapLogger) Error(msg string, fields ...interface{}) {
	z.l.Errorw(msg, fields...)
}

// Error represents a typed error with a code and message.
// Error codes are stable and can be used for programmatic error handling.
type Error struct {
	// Code is a stable identifier for the error type.
	Code string

	// Message provides human-readable error details.
	Message string
}

// Error implements the error interface.
// Returns a string in the format "CODE: message".
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Common errors returned by the console package.
// Use errors.Is() to check for specific error types.
var (
	// ErrInvalidState indicates an operation was attempted in a state that
	// does not permit it.
	ErrInvalidState = &Error{Code: "INVALID_STATE", Message: "operation not valid in current session state"}

	// ErrNotRegistered indicates the agent has no identity yet.
	ErrNotRegistered = &Error{Code: "NOT_REGISTERED", Message: "agent is not registered with the backend"}

	// ErrNoCallAssigned indicates no call room has been fetched.
	ErrNoCallAssigned = &Error{Code: "NO_CALL_ASSIGNED", Message: "no call room has been assigned"}

	// ErrBackendStatus indicates the backend answered with a non-success
	// HTTP status.
	ErrBackendStatus = &Error{Code: "BACKEND_STATUS", Message: "backend returned non-success status"}

	// ErrSessionActive indicates the live session is already running or
	// being established. Returned to the loser of an answer race.
	ErrSessionActive = &Error{Code: "SESSION_ACTIVE", Message: "live session is already active or being established"}
)
