/******************************************************************************
 *
 *  Description :
 *
 *    The User Coordinator (spec.md §4.2): the join/rejoin protocol, the
 *    per-user status observer, and seq token construction.
 *
 *****************************************************************************/

package proxy

import (
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// applyJoin runs the ten-step join protocol of spec.md §4.2 against
// props. conn is nil for a local (server-initiated) join. sub is the
// originating subscription, or nil for a local join; when non-nil it
// supplies seq_id for reply correlation. hasSeq/seq carry the inbound
// message's optional seq attribute.
func (p *SessionProxy) applyJoin(conn session.Connection, sub *Subscription, props wire.PropBag, hasSeq bool, seq uint64) (*session.User, *JoinError) {
	// 1. Name presence.
	name, ok := props.GetString("name")
	if !ok || name == "" {
		return nil, newJoinError(DomainNoSuchAttribute, codeNoSuchAttribute, "missing required attribute \"name\"")
	}

	// 2. Existing-name lookup: the rejoin candidate.
	var rejoinCandidate *session.User
	if u0, found := p.session.FindUserByName(name); found {
		if u0.Status != session.StatusUnavailable {
			return nil, newJoinError(DomainNameInUse, codeNameInUse, "name %q is in use", name)
		}
		rejoinCandidate = u0
	}

	// 3. id forbidden in input; server fills it.
	if props.Has("id") {
		return nil, newJoinError(DomainInvalidAttribute, codeInvalidAttribute, "\"id\" is server-assigned")
	}
	var id uint64
	if rejoinCandidate != nil {
		id = rejoinCandidate.ID
	} else {
		id = p.userIDCounter
	}
	props.Set("id", id)

	// 4. Status normalization.
	if statusStr, has := props.GetString("status"); has {
		st, valid := session.ParseUserStatus(statusStr)
		if !valid || st == session.StatusUnavailable {
			return nil, newJoinError(DomainInvalidAttribute, codeInvalidAttribute, "invalid \"status\" value %q", statusStr)
		}
	} else {
		props.Set("status", session.StatusActive.String())
	}

	// 5. Flags: client must not supply them; the coordinator sets LOCAL
	// iff there is no originating connection.
	if props.Has("flags") {
		return nil, newJoinError(DomainInvalidAttribute, codeInvalidAttribute, "\"flags\" is server-assigned")
	}
	var flags session.UserFlags
	if conn == nil {
		flags = session.FlagLocal
	}
	props.Set("flags", flags)

	// 6. Connection field: client must not supply it.
	if props.Has("connection") {
		return nil, newJoinError(DomainInvalidAttribute, codeInvalidAttribute, "\"connection\" is server-assigned")
	}
	props.Set("connection", conn)

	// 7. Session-level validation, excluding the rejoin candidate.
	if err := p.session.ValidateUserProps(props, rejoinCandidate); err != nil {
		return nil, wrapSessionError(err)
	}

	// 8. Authorization hook.
	if p.onRejectJoin.Accumulate(RejectJoinArgs{
		Connection:     conn,
		Properties:     props,
		RejoinOfUserID: id,
		IsRejoin:       rejoinCandidate != nil,
	}) {
		return nil, newJoinError(DomainNotAuthorized, codeNotAuthorized, "join rejected by authorization hook")
	}

	// 9. Apply and broadcast.
	var (
		u       *session.User
		elem    string
		newUser bool
	)
	if rejoinCandidate == nil {
		nu, err := p.session.NewUser(props)
		if err != nil {
			return nil, wrapSessionError(err)
		}
		u = nu
		elem = wire.ElemUserJoin
		newUser = true
	} else {
		u = rejoinCandidate
		applyPropsExceptNameAndID(u, props)
		elem = wire.ElemUserRejoin
	}

	seqToken := ""
	if sub != nil && hasSeq {
		seqToken = wire.SeqToken(sub.SeqID, seq)
	}
	if err := p.broadcastUserFrame(elem, u, seqToken); err != nil {
		p.logWarnf("sessionproxy: broadcast of %s for user %q failed: %v", elem, u.Name, err)
	}

	// The user-table add-user observer's job (counter bump) is performed
	// here directly: the session's user table is out of scope, but the
	// invariant it is responsible for (user_id_counter > max id) belongs
	// to this proxy's data model.
	if newUser && u.ID >= p.userIDCounter {
		p.userIDCounter = u.ID + 1
	}

	// 10. Register.
	p.attachStatusObserver(u)
	if conn != nil {
		sub.addUser(u)
	} else {
		p.localUsers = append(p.localUsers, u)
		p.recomputeIdle()
	}

	return u, nil
}

// applyPropsExceptNameAndID sets every property in props onto u except
// name and id, which are construct-only / unchanged on rejoin.
func applyPropsExceptNameAndID(u *session.User, props wire.PropBag) {
	for _, p := range props {
		switch p.Name {
		case "name", "id":
			continue
		case "status":
			if s, ok := p.Value.(string); ok {
				if st, valid := session.ParseUserStatus(s); valid {
					u.Status = st
				}
			}
		case "flags":
			if f, ok := p.Value.(session.UserFlags); ok {
				u.Flags = f
			}
		case "connection":
			if c, ok := p.Value.(session.Connection); ok {
				u.Connection = c
			} else if p.Value == nil {
				u.Connection = nil
			}
		}
	}
}

// broadcastUserFrame renders and broadcasts the full user-join/rejoin
// frame: the session's serialization of u, plus id/name/status and, if
// provided, seq.
func (p *SessionProxy) broadcastUserFrame(elem string, u *session.User, seqToken string) error {
	attrs := p.session.SerializeUser(u)
	attrs.Set("id", u.ID)
	attrs.Set("name", u.Name)
	attrs.Set("status", u.Status.String())
	if seqToken != "" {
		attrs.Set("seq", seqToken)
	}
	body, err := wire.MarshalElement(elem, attrs)
	if err != nil {
		return err
	}
	return p.group.SendToSubscriptions(body)
}

// attachStatusObserver registers the one-shot status observer of
// spec.md §4.2: when u becomes UNAVAILABLE, detach it from whichever
// collection currently holds it and clear its connection field, then
// detach the observer itself.
func (p *SessionProxy) attachStatusObserver(u *session.User) {
	var detach func()
	detach = u.OnStatusChange(func(u *session.User, old, new session.UserStatus) {
		if new != session.StatusUnavailable {
			return
		}
		if u.Connection != nil {
			if sub := p.find(u.Connection); sub != nil {
				sub.removeUser(u)
			}
			u.Connection = nil
		} else {
			p.removeLocalUser(u)
			p.recomputeIdle()
		}
		delete(p.statusDetach, u)
		detach()
	})
	p.statusDetach[u] = detach
}

func (p *SessionProxy) removeLocalUser(u *session.User) {
	for i, existing := range p.localUsers {
		if existing == u {
			p.localUsers = append(p.localUsers[:i:i], p.localUsers[i+1:]...)
			return
		}
	}
}
