package datasource

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-pool/pkg/apperrors"
)

// ConnectError reports a failed physical connect. Sessions absorb it and
// reflect it through their health flag.
type ConnectError struct {
	Pool string
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s:%d (pool %s): %v", e.Host, e.Port, e.Pool, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// QueryError reports a failed query. The session that ran it is unhealthy afterwards.
type QueryError struct {
	Pool      string
	SessionID uuid.UUID
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query on session %s (pool %s): %v", e.SessionID, e.Pool, e.Err)
}

// Unwrap exposes both apperrors.ErrQueryFailed and the driver error to errors.Is.
func (e *QueryError) Unwrap() []error { return []error{apperrors.ErrQueryFailed, e.Err} }

// BatchExecutionError reports a failed ExecuteMany. Index is the statement that
// failed, or -1 when the batch never started. Statements before Index stay applied.
type BatchExecutionError struct {
	Pool      string
	SessionID uuid.UUID
	Index     int
	Err       error
}

func (e *BatchExecutionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("batch not started on session %s (pool %s): %v", e.SessionID, e.Pool, e.Err)
	}
	return fmt.Sprintf("batch statement %d on session %s (pool %s): %v", e.Index, e.SessionID, e.Pool, e.Err)
}

func (e *BatchExecutionError) Unwrap() error { return e.Err }

// NoHealthySessionError is returned by the router when no session in the pool
// produced a result.
type NoHealthySessionError struct {
	Pool     string
	Sessions int
	Skipped  int
}

func (e *NoHealthySessionError) Error() string {
	return fmt.Sprintf("%v: pool %q (%d sessions, %d skipped)", apperrors.ErrNoHealthySession, e.Pool, e.Sessions, e.Skipped)
}

func (e *NoHealthySessionError) Unwrap() error { return apperrors.ErrNoHealthySession }

// RouterError wraps an unexpected failure (a recovered driver panic) while routing.
type RouterError struct {
	Pool  string
	Cause error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("%v in pool %q: %v", apperrors.ErrRouterFailure, e.Pool, e.Cause)
}

func (e *RouterError) Unwrap() []error { return []error{apperrors.ErrRouterFailure, e.Cause} }
