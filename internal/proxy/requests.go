/******************************************************************************
 *
 *  Description :
 *
 *    join_user's Request handle (spec.md §4.7). The proxy itself never
 *    suspends, so a Request is always complete by the time JoinUser
 *    returns; the handle exists so callers can use the same completion-
 *    style API a remote join would use.
 *
 *****************************************************************************/

package proxy

import "github.com/collabhub/sessionproxy/internal/session"

// Request is a single outstanding server-initiated request. Today the
// only request type is "user-join".
type Request struct {
	Type string
	User *session.User
	Err  error
}

// Done reports whether the request has completed. Always true once
// returned from JoinUser, kept for API symmetry with a hypothetically
// asynchronous implementation.
func (r *Request) Done() bool { return true }
