package proxy

import (
	"fmt"
	"sync"

	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// fakeConn is a test double for session.Connection.
type fakeConn struct {
	id       string
	mu       sync.Mutex
	received [][]byte
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, frame)
	return nil
}

func (c *fakeConn) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.received) == 0 {
		return ""
	}
	return string(c.received[len(c.received)-1])
}

// fakeGroup is a test double for session.Group: membership is tracked,
// and a broadcast is delivered to every current member's inbox, the way
// a real transport group would.
type fakeGroup struct {
	mu        sync.Mutex
	members   []session.Connection
	broadcast [][]byte
}

func newFakeGroup() *fakeGroup { return &fakeGroup{} }

func (g *fakeGroup) AddMember(c session.Connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, c)
	return nil
}

func (g *fakeGroup) RemoveMember(c session.Connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m == c {
			g.members = append(g.members[:i:i], g.members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (g *fakeGroup) SendToSubscriptions(frame []byte) error {
	g.mu.Lock()
	members := append([]session.Connection(nil), g.members...)
	g.broadcast = append(g.broadcast, frame)
	g.mu.Unlock()
	for _, m := range members {
		_ = m.Send(frame)
	}
	return nil
}

func (g *fakeGroup) lastBroadcast() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.broadcast) == 0 {
		return ""
	}
	return string(g.broadcast[len(g.broadcast)-1])
}

// fakeSession is a test double for session.Session.
type fakeSession struct {
	status     session.SessionState
	syncStatus map[session.Connection]session.SyncStatus
	users      map[string]*session.User
	group      session.Group

	rejectValidation func(props wire.PropBag) error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		status:     session.SessionRunning,
		syncStatus: make(map[session.Connection]session.SyncStatus),
		users:      make(map[string]*session.User),
	}
}

func (s *fakeSession) Status() session.SessionState { return s.status }

func (s *fakeSession) HasSync() bool {
	for _, st := range s.syncStatus {
		if st != session.SyncNone {
			return true
		}
	}
	return false
}

func (s *fakeSession) GetSyncStatus(c session.Connection) session.SyncStatus {
	return s.syncStatus[c]
}

func (s *fakeSession) CancelSynchronization(c session.Connection) error {
	delete(s.syncStatus, c)
	return nil
}

func (s *fakeSession) SynchronizeTo(group session.Group, c session.Connection) error {
	s.syncStatus[c] = session.SyncInProgress
	return nil
}

func (s *fakeSession) ValidateUserProps(props wire.PropBag, excluding *session.User) error {
	if s.rejectValidation != nil {
		return s.rejectValidation(props)
	}
	return nil
}

func (s *fakeSession) NewUser(props wire.PropBag) (*session.User, error) {
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

func (s *fakeSession) SerializeUser(u *session.User) wire.PropBag {
	return wire.PropBag{}
}

func (s *fakeSession) GetXMLUserProps(f *wire.RawFrame) (wire.PropBag, error) {
	return f.Attrs.Clone(), nil
}

func (s *fakeSession) FindUserByName(name string) (*session.User, bool) {
	u, ok := s.users[name]
	return u, ok
}

func (s *fakeSession) Forward(f *wire.RawFrame, c session.Connection) (session.DeliveryScope, error) {
	return session.ScopeBroadcast, nil
}

func (s *fakeSession) SetSubscriptionGroup(g session.Group) { s.group = g }

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

func testProps(name string) wire.PropBag {
	return wire.PropBag{{Name: "name", Value: name}}
}

func joinFrame(name string, seq string) []byte {
	if seq == "" {
		return []byte(fmt.Sprintf(`<user-join name="%s"/>`, name))
	}
	return []byte(fmt.Sprintf(`<user-join name="%s" seq="%s"/>`, name, seq))
}
