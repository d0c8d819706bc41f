/******************************************************************************
 *
 *  Description :
 *
 *    End-to-end scenarios S1-S6 of spec.md §8.
 *
 *****************************************************************************/

package proxy

import (
	"testing"

	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProxy() (*SessionProxy, *fakeSession, *fakeGroup) {
	sess := newFakeSession()
	group := newFakeGroup()
	p := New(&nopCloser{}, sess, group)
	return p, sess, group
}

// S1. Fresh join broadcast.
func TestScenario_FreshJoinBroadcast(t *testing.T) {
	p, _, group := newTestProxy()
	c := newFakeConn("C")
	require.NoError(t, p.SubscribeTo(c, 7, false))

	scope, err := p.Dispatch(c, joinFrame("alice", "3"))
	require.NoError(t, err)
	assert.Equal(t, session.ScopeBroadcast, scope)

	last := group.lastBroadcast()
	assert.Contains(t, last, `id="1"`)
	assert.Contains(t, last, `name="alice"`)
	assert.Contains(t, last, `status="active"`)
	assert.Contains(t, last, `seq="7/3"`)

	assert.True(t, p.IsSubscribed(c))
	assert.False(t, p.IsIdle())
	assert.Equal(t, uint64(2), p.userIDCounter)
}

// S2. Name collision.
func TestScenario_NameCollision(t *testing.T) {
	p, _, group := newTestProxy()
	c := newFakeConn("C")
	d := newFakeConn("D")
	require.NoError(t, p.SubscribeTo(c, 7, false))
	require.NoError(t, p.SubscribeTo(d, 11, false))

	_, err := p.Dispatch(c, joinFrame("alice", "3"))
	require.NoError(t, err)
	broadcastsBefore := len(group.broadcast)

	scope, err := p.Dispatch(d, joinFrame("alice", "4"))
	require.NoError(t, err)
	assert.Equal(t, session.ScopePointToPoint, scope)

	assert.Equal(t, broadcastsBefore, len(group.broadcast), "no broadcast on failure")
	reply := d.last()
	assert.Contains(t, reply, string(DomainNameInUse))
	assert.Contains(t, reply, `seq="11/4"`)
}

// S3. Rejoin preserves id.
func TestScenario_RejoinPreservesID(t *testing.T) {
	p, sess, _ := newTestProxy()
	c := newFakeConn("C")
	require.NoError(t, p.SubscribeTo(c, 7, false))
	_, err := p.Dispatch(c, joinFrame("alice", "3"))
	require.NoError(t, err)

	alice, ok := sess.FindUserByName("alice")
	require.True(t, ok)
	alice.SetStatus(session.StatusUnavailable)

	scope, err := p.Dispatch(c, joinFrame("alice", "9"))
	require.NoError(t, err)
	assert.Equal(t, session.ScopeBroadcast, scope)

	assert.Equal(t, uint64(1), alice.ID)
	assert.Equal(t, uint64(2), p.userIDCounter, "counter unchanged by rejoin")
	assert.Equal(t, session.StatusActive, alice.Status)
}

// S4. Connection drop cascades.
func TestScenario_ConnectionDropCascades(t *testing.T) {
	p, sess, group := newTestProxy()
	c := newFakeConn("C")
	d := newFakeConn("D")
	require.NoError(t, p.SubscribeTo(c, 7, false))
	require.NoError(t, p.SubscribeTo(d, 11, false))

	_, err := p.Dispatch(c, joinFrame("alice", ""))
	require.NoError(t, err)
	_, err = p.Dispatch(d, joinFrame("bob", ""))
	require.NoError(t, err)

	alice, _ := sess.FindUserByName("alice")
	bob, _ := sess.FindUserByName("bob")
	require.Equal(t, uint64(1), alice.ID)
	require.Equal(t, uint64(2), bob.ID)

	// Simulate the transport already having dropped C before notifying
	// the proxy, as spec.md §4.5 describes.
	require.NoError(t, group.RemoveMember(c))
	p.OnMemberRemoved(c)

	assert.False(t, p.IsSubscribed(c))
	assert.Equal(t, session.StatusUnavailable, alice.Status)
	assert.Equal(t, session.StatusActive, bob.Status)

	last := group.lastBroadcast()
	assert.Contains(t, last, `id="1"`)
	assert.Contains(t, last, `status="unavailable"`)
	// Only D should have received it (C was already removed from the
	// transport group before the broadcast).
	assert.Contains(t, d.last(), "user-status-change")
	assert.NotContains(t, c.last(), "user-status-change")
}

// S5. Local join clears idle.
func TestScenario_LocalJoinClearsIdle(t *testing.T) {
	p, _, _ := newTestProxy()
	require.True(t, p.IsIdle())

	var edges []bool
	p.OnIdleChange(func(idle bool) { edges = append(edges, idle) })

	req := p.JoinUser(testProps("root"), nil)
	require.NoError(t, req.Err)
	require.NotNil(t, req.User)

	assert.Equal(t, uint64(1), req.User.ID)
	assert.True(t, req.User.Flags.Has(session.FlagLocal))
	assert.False(t, p.IsIdle())
	assert.Equal(t, []bool{false}, edges, "exactly one notification")
}

// S6. Ordered close.
func TestScenario_OrderedClose(t *testing.T) {
	p, sess, _ := newTestProxy()
	c := newFakeConn("C")
	require.NoError(t, p.SubscribeTo(c, 7, false))
	_, err := p.Dispatch(c, joinFrame("alice", ""))
	require.NoError(t, err)

	var removed []session.Connection
	p.OnRemoveSubscription(func(conn session.Connection) { removed = append(removed, conn) })

	sess.status = session.SessionClosed
	p.OnSessionClose()

	assert.Equal(t, []session.Connection{c}, removed)
	assert.False(t, p.HasSubscriptions())

	alice, _ := sess.FindUserByName("alice")
	assert.Equal(t, session.StatusUnavailable, alice.Status)

	err = p.SubscribeTo(newFakeConn("E"), 1, false)
	assert.ErrorIs(t, err, ErrSessionNotRunning)
}
