package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/sessionproxy/internal/metrics"
	"github.com/collabhub/sessionproxy/internal/proxy"
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

type fakeGroup struct{ members []session.Connection }

func (g *fakeGroup) AddMember(c session.Connection) error {
	g.members = append(g.members, c)
	return nil
}
func (g *fakeGroup) RemoveMember(c session.Connection) error {
	for i, m := range g.members {
		if m == c {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return nil
		}
	}
	return nil
}
func (g *fakeGroup) SendToSubscriptions([]byte) error { return nil }

type fakeSession struct{}

func (fakeSession) Status() session.SessionState { return session.SessionRunning }
func (fakeSession) HasSync() bool                { return false }
func (fakeSession) GetSyncStatus(session.Connection) session.SyncStatus {
	return session.SyncNone
}
func (fakeSession) CancelSynchronization(session.Connection) error       { return nil }
func (fakeSession) SynchronizeTo(session.Group, session.Connection) error { return nil }
func (fakeSession) ValidateUserProps(wire.PropBag, *session.User) error  { return nil }
func (fakeSession) NewUser(props wire.PropBag) (*session.User, error) {
	return &session.User{Name: "x"}, nil
}
func (fakeSession) SerializeUser(*session.User) wire.PropBag { return wire.PropBag{} }
func (fakeSession) GetXMLUserProps(*wire.RawFrame) (wire.PropBag, error) {
	return wire.PropBag{}, nil
}
func (fakeSession) FindUserByName(string) (*session.User, bool) { return nil, false }
func (fakeSession) Forward(*wire.RawFrame, session.Connection) (session.DeliveryScope, error) {
	return session.ScopeBroadcast, nil
}
func (fakeSession) SetSubscriptionGroup(session.Group) {}

type fakeConn struct{ id string }

func (c fakeConn) ID() string        { return c.id }
func (c fakeConn) Send([]byte) error { return nil }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func TestCollector_TracksSubscriptionCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	p := proxy.New(nopCloser{}, fakeSession{}, &fakeGroup{})
	detach := c.Track("room-1", p)
	defer detach()

	require.NoError(t, p.SubscribeTo(fakeConn{id: "A"}, 1, false))

	expected := `
# HELP sessionproxy_subscriptions Number of connections currently subscribed to the session.
# TYPE sessionproxy_subscriptions gauge
sessionproxy_subscriptions{session="room-1"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sessionproxy_subscriptions"))
}

func TestCollector_DetachRemovesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	p := proxy.New(nopCloser{}, fakeSession{}, &fakeGroup{})
	detach := c.Track("room-2", p)
	detach()

	count, err := testutil.GatherAndCount(reg, "sessionproxy_subscriptions")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
