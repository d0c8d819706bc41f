/******************************************************************************
 *
 *  Description :
 *
 *    Public API surface (spec.md §4.7): subscribe_to, unsubscribe,
 *    join_user, and the pure queries already exposed from proxy.go.
 *
 *****************************************************************************/

package proxy

import (
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// SubscribeTo adds conn to the session's transport group and records a
// subscription for it. If synchronize is true, it also initiates a
// push-synchronization of session state into the subscription group
// targeting conn; this requires the session to be RUNNING.
func (p *SessionProxy) SubscribeTo(conn session.Connection, seqID uint64, synchronize bool) error {
	if p.disposed {
		return ErrAlreadyDisposed
	}
	if p.find(conn) != nil {
		return ErrAlreadySubscribed
	}
	switch p.session.Status() {
	case session.SessionClosed:
		return ErrSessionNotRunning
	case session.SessionPending:
		if synchronize {
			return ErrSessionNotRunning
		}
	}

	if err := p.group.AddMember(conn); err != nil {
		return err
	}
	sub := p.addSubscription(conn, seqID)
	p.recomputeIdle()
	p.onAddSubscription.Emit(AddSubscriptionArgs{Connection: conn, SeqID: seqID})

	if synchronize {
		if err := p.session.SynchronizeTo(p.group, conn); err != nil {
			return err
		}
	}
	_ = sub
	return nil
}

// Unsubscribe removes conn's subscription. The session must be RUNNING
// (spec.md §9, Open Question (b): unsubscribe while synchronizing is
// unsupported and rejected here rather than left undefined).
func (p *SessionProxy) Unsubscribe(conn session.Connection) error {
	if p.disposed {
		return ErrAlreadyDisposed
	}
	if p.session.Status() != session.SessionRunning {
		return ErrSessionNotRunning
	}
	sub := p.find(conn)
	if sub == nil {
		return ErrNotSubscribed
	}

	if p.session.GetSyncStatus(conn) == session.SyncInProgress {
		if err := p.session.CancelSynchronization(conn); err != nil {
			return err
		}
	} else {
		body, err := wire.MarshalElement(wire.ElemSessionClose, nil)
		if err != nil {
			return err
		}
		if err := conn.Send(body); err != nil {
			p.logWarnf("sessionproxy: session-close delivery to %s failed: %v", conn.ID(), err)
		}
	}

	return p.group.RemoveMember(conn)
}

// JoinUser runs the join protocol with no originating connection
// (flags.LOCAL, no seq). completion, if non-nil, is invoked with the
// result before JoinUser returns; the returned Request is always
// already-done, per the synchronous concurrency model of spec.md §5.
func (p *SessionProxy) JoinUser(props wire.PropBag, completion func(*session.User, error)) *Request {
	req := &Request{Type: "user-join"}
	if p.disposed {
		req.Err = ErrAlreadyDisposed
	} else {
		u, jerr := p.applyJoin(nil, nil, props.Clone(), false, 0)
		if jerr != nil {
			req.Err = jerr
		} else {
			req.User = u
		}
	}
	if completion != nil {
		completion(req.User, req.Err)
	}
	return req
}
