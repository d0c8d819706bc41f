/******************************************************************************
 *
 *  Description :
 *
 *    Error kinds surfaced either via a request-failed wire frame or via a
 *    Request completion for server-initiated joins. See spec.md §7.
 *
 *****************************************************************************/

package proxy

import (
	"errors"
	"fmt"
)

// ErrorDomain is the wire-level error domain token carried in a
// request-failed frame.
type ErrorDomain string

const (
	DomainNoSuchAttribute  ErrorDomain = "NO_SUCH_ATTRIBUTE"
	DomainInvalidAttribute ErrorDomain = "INVALID_ATTRIBUTE"
	DomainNameInUse        ErrorDomain = "NAME_IN_USE"
	DomainNotAuthorized    ErrorDomain = "NOT_AUTHORIZED"
	DomainSessionRejected  ErrorDomain = "SESSION_REJECTED"
	DomainMalformedFrame   ErrorDomain = "MALFORMED_FRAME"
)

// JoinError is a recoverable, per-request error from the join pipeline.
// It is never fatal to the proxy; it is reported to the originator
// (wire request-failed) or to the Request completion (local join_user).
type JoinError struct {
	Domain  ErrorDomain
	Code    int
	Message string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("%s: %s", e.Domain, e.Message)
}

func newJoinError(domain ErrorDomain, code int, format string, args ...any) *JoinError {
	return &JoinError{Domain: domain, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Standard per-request error codes. Values are local to this module; they
// are carried on the wire as opaque numbers alongside the domain token.
const (
	codeNoSuchAttribute  = 400
	codeInvalidAttribute = 401
	codeNameInUse        = 409
	codeNotAuthorized    = 403
	codeMalformedFrame   = 420
)

// ErrMalformedFrame wraps a parse failure (e.g. a non-numeric seq
// attribute) as a JoinError of domain MALFORMED_FRAME.
func ErrMalformedFrame(cause error) *JoinError {
	return newJoinError(DomainMalformedFrame, codeMalformedFrame, "malformed frame: %v", cause)
}

// wrapSessionError lifts an arbitrary error from the session's
// ValidateUserProps/NewUser into a JoinError, propagating its message
// verbatim per spec.md §7 ("session validation errors... propagated
// verbatim").
func wrapSessionError(err error) *JoinError {
	if err == nil {
		return nil
	}
	var je *JoinError
	if errors.As(err, &je) {
		return je
	}
	return newJoinError(DomainSessionRejected, 0, "%s", err.Error())
}

// API-boundary precondition errors; these are programmer/caller errors,
// not per-request wire errors, and are returned directly from the public
// API methods.
var (
	ErrAlreadySubscribed = errors.New("sessionproxy: connection already subscribed")
	ErrNotSubscribed     = errors.New("sessionproxy: connection not subscribed")
	ErrSessionNotRunning = errors.New("sessionproxy: session is not running")
	ErrAlreadyDisposed   = errors.New("sessionproxy: proxy already disposed")

	// ErrProtocolViolation is the sentinel a Session.NewUser
	// implementation should wrap when it closes the session itself
	// because an available user was added during synchronization
	// bring-up that did not belong to the already-subscribed
	// synchronizing connection (spec.md §4.2). The user-table add-user
	// observer that enforces this belongs to the session engine, which
	// is out of scope here (spec.md §1); this proxy only propagates the
	// resulting error verbatim via wrapSessionError.
	ErrProtocolViolation = errors.New("sessionproxy: protocol violation during synchronization bring-up")
)
