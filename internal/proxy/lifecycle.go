/******************************************************************************
 *
 *  Description :
 *
 *    Lifecycle & teardown (spec.md §4.5): member-removed, session close,
 *    synchronization begin/complete/fail, and dispose.
 *
 *****************************************************************************/

package proxy

import (
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// OnMemberRemoved handles the transport signaling that conn left the
// group. It broadcasts a synthetic user-status-change to UNAVAILABLE for
// every user conn carried, to the (now-excluding-conn) remaining
// subscribers, then removes the subscription record itself.
func (p *SessionProxy) OnMemberRemoved(conn session.Connection) {
	sub := p.find(conn)
	if sub == nil {
		// Already torn down, e.g. during session close; no-op.
		return
	}

	// Copy-then-iterate: SetStatus below reenters via the status
	// observer and mutates sub.Users under us.
	users := append([]*session.User(nil), sub.Users...)
	for _, u := range users {
		p.broadcastStatusChange(u, session.StatusUnavailable)
		u.SetStatus(session.StatusUnavailable)
	}

	p.removeSubscription(conn)
	p.recomputeIdle()
	p.onRemoveSubscription.Emit(conn)
}

func (p *SessionProxy) broadcastStatusChange(u *session.User, status session.UserStatus) {
	body, err := wire.MarshalElement(wire.ElemUserStatusChange, wire.PropBag{
		{Name: "id", Value: u.ID},
		{Name: "status", Value: status.String()},
	})
	if err != nil {
		p.logWarnf("sessionproxy: failed to marshal user-status-change: %v", err)
		return
	}
	if err := p.group.SendToSubscriptions(body); err != nil {
		p.logWarnf("sessionproxy: user-status-change broadcast failed: %v", err)
	}
}

// OnSessionClose runs the ordered close sequence of spec.md §4.5: drop
// every remaining subscription, setting its users UNAVAILABLE without
// re-emitting user-status frames (the departing peers will never receive
// them), then set every local user UNAVAILABLE, then release the
// subscription group.
func (p *SessionProxy) OnSessionClose() {
	// Drain-loop: removeSubscription mutates p.subscriptions.
	for len(p.subscriptions) > 0 {
		sub := p.subscriptions[0]
		// Copy-then-iterate: the status observer removes each user from
		// sub.Users as it goes.
		users := append([]*session.User(nil), sub.Users...)
		for _, u := range users {
			u.SetStatus(session.StatusUnavailable)
		}
		_ = p.group.RemoveMember(sub.Connection)
		p.removeSubscription(sub.Connection)
		p.onRemoveSubscription.Emit(sub.Connection)
	}

	for len(p.localUsers) > 0 {
		u := p.localUsers[0]
		u.SetStatus(session.StatusUnavailable)
	}

	p.recomputeIdle()
	p.group = nil
}

// OnSynchronizationBegin clears idle: a synchronization is now in
// flight.
func (p *SessionProxy) OnSynchronizationBegin(conn session.Connection) {
	p.recomputeIdle()
}

// OnSynchronizationComplete and OnSynchronizationFailedPost both set idle
// iff no subscriptions, no local users, and no further syncs remain.
func (p *SessionProxy) OnSynchronizationComplete(conn session.Connection) {
	p.recomputeIdle()
}

func (p *SessionProxy) OnSynchronizationFailedPost(conn session.Connection) {
	p.recomputeIdle()
}

// OnSynchronizationFailedPre handles a failure observed before the
// session has transitioned the sync out of progress: if the session is
// still RUNNING and the failing connection is subscribed, remove it from
// the transport group, which drives the normal OnMemberRemoved teardown.
func (p *SessionProxy) OnSynchronizationFailedPre(conn session.Connection) {
	if p.session.Status() == session.SessionRunning && p.IsSubscribed(conn) {
		if err := p.group.RemoveMember(conn); err != nil {
			p.logWarnf("sessionproxy: failed to remove %s after sync failure: %v", conn.ID(), err)
		}
	}
}

// Dispose tears the proxy down. If the session is not already closed, it
// is closed first (running OnSessionClose). Observers are detached, then
// references are released in order: users list, session, ancillary I/O
// handle, transport/subscription group.
func (p *SessionProxy) Dispose() error {
	if p.disposed {
		return ErrAlreadyDisposed
	}
	if p.session.Status() != session.SessionClosed {
		p.OnSessionClose()
	}

	p.onIdleChange.DetachAll()
	p.onAddSubscription.DetachAll()
	p.onRemoveSubscription.DetachAll()
	p.onRejectJoin.DetachAll()
	for _, detach := range p.statusDetach {
		detach()
	}
	p.statusDetach = nil

	p.localUsers = nil
	p.session = nil
	if p.io != nil {
		err := p.io.Close()
		p.io = nil
		if err != nil {
			p.disposed = true
			return err
		}
	}
	p.group = nil

	p.disposed = true
	return nil
}
