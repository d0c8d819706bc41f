/******************************************************************************
 *
 *  Description :
 *
 *    A minimal in-memory session.Session, enough to run cmd/sessionproxyd
 *    end to end. The real document model, operational transform, and sync
 *    protocol are out of scope (spec.md §1); this stands in for them the
 *    way internal/directory stands in for the real Directory.
 *
 *****************************************************************************/

package demo

import (
	"fmt"
	"sync"

	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// Session is a reference session.Session: it has no document model of its
// own, just a user table keyed by name and an always-RUNNING lifecycle.
// It never synchronizes, since it has no backing content to push.
type Session struct {
	mu    sync.Mutex
	users map[string]*session.User
	group session.Group
}

// NewSession constructs an empty reference session, already RUNNING.
func NewSession(name string) (session.Session, error) {
	return &Session{users: make(map[string]*session.User)}, nil
}

func (s *Session) Status() session.SessionState { return session.SessionRunning }

func (s *Session) HasSync() bool { return false }

func (s *Session) GetSyncStatus(session.Connection) session.SyncStatus { return session.SyncNone }

func (s *Session) CancelSynchronization(session.Connection) error {
	return fmt.Errorf("demo: no synchronization is ever in progress")
}

func (s *Session) SynchronizeTo(session.Group, session.Connection) error {
	return fmt.Errorf("demo: synchronization is not supported")
}

func (s *Session) ValidateUserProps(props wire.PropBag, excluding *session.User) error {
	return nil
}

func (s *Session) NewUser(props wire.PropBag) (*session.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _, _ := props.GetUint64("id")
	name, _ := props.GetString("name")
	statusStr, _ := props.GetString("status")
	status, _ := session.ParseUserStatus(statusStr)
	var flags session.UserFlags
	if f, ok := props.Get("flags"); ok {
		flags, _ = f.(session.UserFlags)
	}
	var conn session.Connection
	if c, ok := props.Get("connection"); ok {
		conn, _ = c.(session.Connection)
	}

	u := &session.User{ID: id, Name: name, Status: status, Flags: flags, Connection: conn}
	s.users[name] = u
	return u, nil
}

func (s *Session) SerializeUser(u *session.User) wire.PropBag {
	return wire.PropBag{}
}

func (s *Session) GetXMLUserProps(f *wire.RawFrame) (wire.PropBag, error) {
	return f.Attrs.Clone(), nil
}

func (s *Session) FindUserByName(name string) (*session.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	return u, ok
}

// Forward delivers any frame this session does not otherwise own by
// broadcasting it verbatim to every subscriber.
func (s *Session) Forward(f *wire.RawFrame, c session.Connection) (session.DeliveryScope, error) {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return session.ScopeNone, nil
	}
	if err := group.SendToSubscriptions(f.Body); err != nil {
		return session.ScopeNone, err
	}
	return session.ScopeBroadcast, nil
}

func (s *Session) SetSubscriptionGroup(g session.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = g
}
