package ws

import (
	"fmt"
	"sync"

	"github.com/collabhub/sessionproxy/internal/session"
)

// Group is the websocket-backed session.Group: frame delivery to every
// member currently subscribed to one logical session.
type Group struct {
	mu      sync.RWMutex
	members map[string]*Conn
}

// NewGroup constructs an empty Group.
func NewGroup() *Group {
	return &Group{members: make(map[string]*Conn)}
}

func (g *Group) AddMember(c session.Connection) error {
	conn, ok := c.(*Conn)
	if !ok {
		return fmt.Errorf("ws: %T is not a websocket connection", c)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[conn.id] = conn
	return nil
}

func (g *Group) RemoveMember(c session.Connection) error {
	conn, ok := c.(*Conn)
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, conn.id)
	return nil
}

func (g *Group) SendToSubscriptions(frame []byte) error {
	g.mu.RLock()
	members := make([]*Conn, 0, len(g.members))
	for _, m := range g.members {
		members = append(members, m)
	}
	g.mu.RUnlock()

	var firstErr error
	for _, m := range members {
		if err := m.Send(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
