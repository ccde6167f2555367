package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types for the gateway core. Each lifecycle or protocol failure has
// its own type so callers can branch on the failure class with errors.As,
// and so the HTTP boundary can map each class to a status code.
type (
	// ConfigError represents invalid or conflicting configuration. It is
	// fatal at load time, never produced at runtime.
	ConfigError struct {
		Message string
	}

	// NotFoundError indicates an unknown endpoint name or routing path.
	NotFoundError struct {
		Name string
	}

	// AlreadyExistsError indicates a duplicate endpoint name or path
	// registration.
	AlreadyExistsError struct {
		Name string
	}

	// NotRunningError indicates an operation that requires a running
	// endpoint was issued against a stopped one.
	NotRunningError struct {
		Name string
	}

	// AlreadyRunningError indicates a start was issued against an endpoint
	// that is already running.
	AlreadyRunningError struct {
		Name string
	}

	// StartFailedError indicates the transport bootstrap failed, e.g. the
	// subprocess could not be spawned. Retryable via an explicit start.
	StartFailedError struct {
		Name string
		Err  error
	}

	// ProtocolError indicates a handshake or backend RPC failure. Timeout
	// distinguishes an expired deadline from a malformed exchange.
	ProtocolError struct {
		Op      string
		Name    string
		Err     error
		Timeout bool
	}

	// RuntimeFailedError indicates the session worker failed. It is sticky:
	// every subsequent operation returns it until an explicit restart.
	RuntimeFailedError struct {
		Name   string
		Reason string
	}

	// ToolNotAllowedError indicates the tool filter rejected an invocation.
	// Deliberately carries no hint whether the tool exists upstream.
	ToolNotAllowedError struct {
		Tool string
	}

	// InvalidRequestError indicates malformed caller input.
	InvalidRequestError struct {
		Message string
	}
)

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("endpoint not found: %s", e.Name)
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("endpoint already exists: %s", e.Name)
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("endpoint is not running: %s", e.Name)
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("endpoint is already running: %s", e.Name)
}

func (e *StartFailedError) Error() string {
	return fmt.Sprintf("failed to start endpoint %s: %v", e.Name, e.Err)
}

func (e *StartFailedError) Unwrap() error { return e.Err }

func (e *ProtocolError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("mcp %s timed out for %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("mcp %s failed for %s: %v", e.Op, e.Name, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *RuntimeFailedError) Error() string {
	return fmt.Sprintf("endpoint runtime failed: %s: %s", e.Name, e.Reason)
}

func (e *ToolNotAllowedError) Error() string {
	return fmt.Sprintf("tool not allowed: %s", e.Tool)
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Message)
}

func Config(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

func NotFound(name string) error { return &NotFoundError{Name: name} }

func AlreadyExists(name string) error { return &AlreadyExistsError{Name: name} }

func NotRunning(name string) error { return &NotRunningError{Name: name} }

func AlreadyRunning(name string) error { return &AlreadyRunningError{Name: name} }

func StartFailed(name string, err error) error {
	return &StartFailedError{Name: name, Err: err}
}

func Protocol(op, name string, err error) error {
	return &ProtocolError{Op: op, Name: name, Err: err}
}

// HandshakeTimeout builds the timeout-typed handshake error, kept distinct
// from protocol-format failures so callers can tell "never answered" from
// "answered garbage".
func HandshakeTimeout(name string, timeout time.Duration) error {
	return &ProtocolError{
		Op:      "handshake",
		Name:    name,
		Err:     fmt.Errorf("deadline of %s exceeded", timeout),
		Timeout: true,
	}
}

func RuntimeFailed(name, reason string) error {
	return &RuntimeFailedError{Name: name, Reason: reason}
}

func ToolNotAllowed(tool string) error { return &ToolNotAllowedError{Tool: tool} }

func InvalidRequest(format string, args ...any) error {
	return &InvalidRequestError{Message: fmt.Sprintf(format, args...)}
}

// IsTimeout reports whether err is a timeout-typed protocol error.
func IsTimeout(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Timeout
}

// StatusCode maps a gateway error to the HTTP status the boundary should
// answer with. Unknown errors map to 500.
func StatusCode(err error) int {
	var (
		config         *ConfigError
		notFound       *NotFoundError
		alreadyExists  *AlreadyExistsError
		notRunning     *NotRunningError
		alreadyRunning *AlreadyRunningError
		startFailed    *StartFailedError
		protocol       *ProtocolError
		runtimeFailed  *RuntimeFailedError
		toolNotAllowed *ToolNotAllowedError
		invalidRequest *InvalidRequestError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &alreadyExists), errors.As(err, &alreadyRunning):
		return http.StatusConflict
	case errors.As(err, &notRunning), errors.As(err, &runtimeFailed):
		return http.StatusServiceUnavailable
	case errors.As(err, &protocol):
		return http.StatusBadGateway
	case errors.As(err, &toolNotAllowed):
		return http.StatusForbidden
	case errors.As(err, &invalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &config), errors.As(err, &startFailed):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
