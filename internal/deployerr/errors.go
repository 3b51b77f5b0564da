// Package deployerr defines the failure kinds a publish run can end with.
//
// Every kind is a concrete type so callers can inspect it with errors.As, and
// each one also matches a containerd errdefs class with errors.Is so generic
// tooling can classify it without knowing this package.
package deployerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// maxBodySnippet bounds how much of a failed response body is kept in an error.
const maxBodySnippet = 4 * 1024

// ValidationError reports an invalid combination of inputs detected before
// any deployment traffic is sent. It is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == errdefs.ErrInvalidArgument }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientNetworkError is a failed remote call that may succeed on retry:
// a non-success HTTP status or a connection failure.
type TransientNetworkError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientNetworkError) Error() string {
	var b strings.Builder
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "error %s (%d %s)", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	} else {
		fmt.Fprintf(&b, "error %s", e.Op)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, "\nServer response: %s", e.Body)
	}
	return b.String()
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

func (e *TransientNetworkError) Is(target error) bool { return target == errdefs.ErrUnavailable }

// Network wraps a transport-level failure for op.
func Network(op string, err error) error {
	return &TransientNetworkError{Op: op, Err: err}
}

// FromResponse converts a non-success response into a TransientNetworkError.
// It returns nil for 2xx responses. The body is drained and closed either way
// by the caller; FromResponse only reads a bounded prefix of it.
func FromResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
	return &TransientNetworkError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// IntegrityError means the bytes stored remotely differ from the bytes sent.
// Corruption is not assumed to be transient, so it is never retried.
type IntegrityError struct {
	Local  string
	Remote string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("upload failed: integrity error: MD5 hash mismatch between the local copy (%s) and the uploaded copy (%s)", e.Local, e.Remote)
}

func (e *IntegrityError) Is(target error) bool { return target == errdefs.ErrDataLoss }

// PropagationTimeoutError means pushed configuration was not observed on the
// control plane within the polling bound.
type PropagationTimeoutError struct {
	Keys    []string
	Timeout time.Duration
}

func (e *PropagationTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for the control plane to apply settings %s",
		e.Timeout, strings.Join(e.Keys, ", "))
}

func (e *PropagationTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// BuildFailureError carries the terminal state of a server-side build that
// did not succeed.
type BuildFailureError struct {
	Status string
	Reason string
}

func (e *BuildFailureError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("remote build ended in state %s: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("remote build ended in state %s", e.Status)
}

func (e *BuildFailureError) Is(target error) bool { return target == errdefs.ErrFailedPrecondition }

// Retryable reports whether err is worth another attempt. Only transient
// network failures qualify; validation and integrity failures are terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var integrity *IntegrityError
	var validation *ValidationError
	if errors.As(err, &integrity) || errors.As(err, &validation) {
		return false
	}
	var transient *TransientNetworkError
	return errors.As(err, &transient)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var transient *TransientNetworkError
	if errors.As(err, &transient) {
		return transient.StatusCode
	}
	return 0
}
