package doro

import (
	"errors"
	"fmt"
)

// Exported errors. Errors returned from this package can be tested
// against these with errors.Is. The concrete values carry more detail:
// server rejections are *ServerError (status code plus the server's
// message), local pre-flight failures are *UsageError.
var (
	ErrConnection       = errors.New("cannot reach repository")
	ErrAuth             = errors.New("authentication failed")
	ErrPermission       = errors.New("permission denied")
	ErrNotFound         = errors.New("object not found")
	ErrConflict         = errors.New("object already exists")
	ErrValidation       = errors.New("schema validation failed")
	ErrUsage            = errors.New("invalid usage")
	ErrUnknownPrincipal = errors.New("unknown principal")
)

// A ServerError is any error response from the repository. The message
// is whatever the server supplied, verbatim; for validation failures
// that includes the server's description of the missing or invalid
// fields.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("repository returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("repository returned status %d: %s", e.StatusCode, e.Message)
}

// Is maps the status code onto the exported sentinel errors.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.StatusCode == 401
	case ErrPermission:
		return e.StatusCode == 403
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrConflict:
		return e.StatusCode == 409
	case ErrValidation:
		return e.StatusCode == 400
	}
	return false
}

// A UsageError reports a precondition violated locally. No request was
// sent to the server.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string        { return "usage: " + e.Reason }
func (e *UsageError) Is(target error) bool { return target == ErrUsage }

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// An UnknownPrincipalError reports a reader or writer name that matched
// no user or group on the server. The whole create or update is
// refused rather than silently narrowing the ACL.
type UnknownPrincipalError struct {
	Name string
}

func (e *UnknownPrincipalError) Error() string {
	return fmt.Sprintf("no user or group named %q", e.Name)
}

func (e *UnknownPrincipalError) Is(target error) bool { return target == ErrUnknownPrincipal }

// a connectionError wraps a transport failure (DNS, refused connection,
// TLS) that kept the request from reaching the server at all.
type connectionError struct {
	err error
}

func (e *connectionError) Error() string        { return "cannot reach repository: " + e.err.Error() }
func (e *connectionError) Unwrap() error        { return e.err }
func (e *connectionError) Is(target error) bool { return target == ErrConnection }
