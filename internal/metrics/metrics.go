/******************************************************************************
 *
 *  Description :
 *
 *    Prometheus gauges for session proxy state, one vector per metric
 *    labeled by session name. Wired to the same Listeners hooks a
 *    directory already uses to unload idle proxies.
 *
 *****************************************************************************/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/collabhub/sessionproxy/internal/proxy"
	"github.com/collabhub/sessionproxy/internal/session"
)

// Collector holds every gauge this package exports.
type Collector struct {
	idle          *prometheus.GaugeVec
	subscriptions *prometheus.GaugeVec
	localUsers    *prometheus.GaugeVec
	usersTotal    *prometheus.GaugeVec
}

// New constructs a Collector and registers its metrics against reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		idle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sessionproxy",
			Name:      "idle",
			Help:      "1 if the session has no subscriptions, no local users, and no synchronization in flight.",
		}, []string{"session"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sessionproxy",
			Name:      "subscriptions",
			Help:      "Number of connections currently subscribed to the session.",
		}, []string{"session"}),
		localUsers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sessionproxy",
			Name:      "local_users",
			Help:      "Number of server-initiated (flags.LOCAL) users currently registered.",
		}, []string{"session"}),
		usersTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sessionproxy",
			Name:      "users_total",
			Help:      "Total number of users currently registered, local and remote.",
		}, []string{"session"}),
	}
	reg.MustRegister(c.idle, c.subscriptions, c.localUsers, c.usersTotal)
	return c
}

// Track wires p's state into this Collector's gauges under the given
// session name, seeding them from p's current state, and returns a
// function that detaches the wiring and deletes the labeled series. Track
// does not itself unregister the vectors, only the series for name.
func (c *Collector) Track(name string, p *proxy.SessionProxy) (detach func()) {
	refresh := func() {
		b := 0.0
		if p.IsIdle() {
			b = 1.0
		}
		c.idle.WithLabelValues(name).Set(b)
		c.subscriptions.WithLabelValues(name).Set(float64(p.SubscriptionCount()))
		c.localUsers.WithLabelValues(name).Set(float64(p.LocalUserCount()))
		c.usersTotal.WithLabelValues(name).Set(float64(p.UserCount()))
	}
	refresh()

	d1 := p.OnIdleChange(func(bool) { refresh() })
	d2 := p.OnAddSubscription(func(proxy.AddSubscriptionArgs) { refresh() })
	d3 := p.OnRemoveSubscription(func(session.Connection) { refresh() })

	return func() {
		d1()
		d2()
		d3()
		c.idle.DeleteLabelValues(name)
		c.subscriptions.DeleteLabelValues(name)
		c.localUsers.DeleteLabelValues(name)
		c.usersTotal.DeleteLabelValues(name)
	}
}
