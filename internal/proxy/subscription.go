/******************************************************************************
 *
 *  Description :
 *
 *    The Subscription Registry (spec.md §4.1): tracks subscribed peer
 *    connections and the users each one carries. Linear search is
 *    acceptable; cardinality is bounded by peer count.
 *
 *****************************************************************************/

package proxy

import "github.com/collabhub/sessionproxy/internal/session"

// Subscription records one subscribed peer connection and the users
// joined through it. Users is a weak reference list: the user objects
// are owned by the session's user table.
type Subscription struct {
	Connection session.Connection
	SeqID      uint64
	Users      []*session.User
}

func (s *Subscription) addUser(u *session.User) {
	s.Users = append(s.Users, u)
}

func (s *Subscription) removeUser(u *session.User) {
	for i, existing := range s.Users {
		if existing == u {
			s.Users = append(s.Users[:i:i], s.Users[i+1:]...)
			return
		}
	}
}

// find returns the subscription for conn, or nil.
func (p *SessionProxy) find(conn session.Connection) *Subscription {
	for _, s := range p.subscriptions {
		if s.Connection == conn {
			return s
		}
	}
	return nil
}

// addSubscription records a new subscription. Precondition: no existing
// entry for conn (checked by the caller, which needs the distinct
// ErrAlreadySubscribed on violation).
func (p *SessionProxy) addSubscription(conn session.Connection, seqID uint64) *Subscription {
	sub := &Subscription{Connection: conn, SeqID: seqID}
	p.subscriptions = append(p.subscriptions, sub)
	return sub
}

// removeSubscription deletes the entry for conn. Precondition: entry
// exists (checked by the caller).
func (p *SessionProxy) removeSubscription(conn session.Connection) {
	for i, s := range p.subscriptions {
		if s.Connection == conn {
			p.subscriptions = append(p.subscriptions[:i:i], p.subscriptions[i+1:]...)
			return
		}
	}
}
