/******************************************************************************
 *
 *  Description :
 *
 *    The Protocol Dispatcher (spec.md §4.4): classifies inbound frames on
 *    a subscribed connection as proxy-owned or session-forwarded.
 *
 *****************************************************************************/

package proxy

import (
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// Dispatch processes one inbound frame from conn. body is the raw XML
// message. The returned DeliveryScope reflects how the frame (or its
// reply) was ultimately delivered.
func (p *SessionProxy) Dispatch(conn session.Connection, body []byte) (session.DeliveryScope, error) {
	sub := p.find(conn)
	if sub == nil {
		return session.ScopeNone, ErrNotSubscribed
	}

	frame, err := wire.ParseFrame(body)
	if err != nil {
		return session.ScopeNone, err
	}

	if p.session.GetSyncStatus(conn) != session.SyncNone {
		return p.session.Forward(frame, conn)
	}

	switch frame.Name {
	case wire.ElemUserJoin:
		return p.dispatchUserJoin(sub, frame)
	case wire.ElemSessionUnsubscribe:
		return session.ScopeNone, p.group.RemoveMember(conn)
	default:
		return p.session.Forward(frame, conn)
	}
}

func (p *SessionProxy) dispatchUserJoin(sub *Subscription, frame *wire.RawFrame) (session.DeliveryScope, error) {
	seq, hasSeq, seqErr := frame.Seq()

	props, err := p.session.GetXMLUserProps(frame)
	if err != nil {
		p.sendRequestFailed(sub, ErrMalformedFrame(err), "")
		return session.ScopePointToPoint, nil
	}
	if seqErr != nil {
		p.sendRequestFailed(sub, ErrMalformedFrame(seqErr), "")
		return session.ScopePointToPoint, nil
	}

	_, jerr := p.applyJoin(sub.Connection, sub, props, hasSeq, seq)
	if jerr != nil {
		seqToken := ""
		if hasSeq {
			seqToken = wire.SeqToken(sub.SeqID, seq)
		}
		p.sendRequestFailed(sub, jerr, seqToken)
		return session.ScopePointToPoint, nil
	}
	// Success was already broadcast by applyJoin; locally-handled
	// messages are never additionally forwarded.
	return session.ScopeBroadcast, nil
}

// sendRequestFailed emits a point-to-point request-failed reply to the
// originating connection only.
func (p *SessionProxy) sendRequestFailed(sub *Subscription, jerr *JoinError, seqToken string) {
	body, err := wire.MarshalRequestFailed(wire.ErrorPayload{
		Domain:  string(jerr.Domain),
		Code:    jerr.Code,
		Message: jerr.Message,
		Seq:     seqToken,
	})
	if err != nil {
		p.logWarnf("sessionproxy: failed to marshal request-failed reply: %v", err)
		return
	}
	if err := sub.Connection.Send(body); err != nil {
		p.logWarnf("sessionproxy: request-failed delivery to %s failed: %v", sub.Connection.ID(), err)
	}
}
