/******************************************************************************
 *
 *  Description :
 *
 *    Directory: creates one SessionProxy per session name on first
 *    reference and unloads it after it has sat idle past a grace period.
 *    Modeled on server/hub.go's topics *sync.Map keyed by name, but the
 *    external-facing shape is closer to server/topic.go's runProxy: every
 *    call into a given name's SessionProxy is funneled through that
 *    session's own single-goroutine command loop, since SessionProxy
 *    itself (internal/proxy) is deliberately lock-free and requires
 *    external callers to marshal concurrent access on its behalf
 *    (spec.md §5). Two peers racing to subscribe, dispatch, or disconnect
 *    against the same session name must never touch the proxy from two
 *    goroutines at once; this is where that serialization happens.
 *
 *****************************************************************************/

package directory

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/collabhub/sessionproxy/internal/logs"
	"github.com/collabhub/sessionproxy/internal/metrics"
	"github.com/collabhub/sessionproxy/internal/proxy"
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// SessionFactory constructs the underlying Session engine for a freshly
// created session name. The returned io.Closer is the ancillary handle
// the SessionProxy will Close on Dispose.
type SessionFactory func(name string) (sess session.Session, ioHandle io.Closer, err error)

// GroupFactory constructs a fresh transport group for a new session.
type GroupFactory func() session.Group

// commandQueueSize bounds how many pending calls a single session's loop
// will buffer before a caller submitting one blocks.
const commandQueueSize = 64

// entry owns one SessionProxy plus the single goroutine that is the only
// thing ever allowed to call into it. mu guards only disposed and the
// decision to send on cmds versus refuse - it never guards the proxy
// itself, which stays reachable from exactly one goroutine (run).
type entry struct {
	proxy        *proxy.SessionProxy
	detachIdle   func()
	detachMetric func()

	cmds chan func()

	mu       sync.Mutex
	disposed bool
}

func (e *entry) run() {
	for fn := range e.cmds {
		fn()
	}
}

// submit enqueues fn for the entry's loop goroutine and reports whether
// it was accepted. It refuses once the entry has been disposed, instead
// of racing a send against the loop closing cmds out from under it.
func (e *entry) submit(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return false
	}
	e.cmds <- fn
	return true
}

// dispose marks the entry disposed and closes its command channel,
// atomically with respect to submit so a concurrent submit either lands
// before the close or is cleanly refused - never raced against it.
func (e *entry) dispose() {
	e.mu.Lock()
	e.disposed = true
	close(e.cmds)
	e.mu.Unlock()
}

// Directory owns the set of live SessionProxy instances, one per session
// name.
type Directory struct {
	mu      sync.Mutex
	entries map[string]*entry

	newSession SessionFactory
	newGroup   GroupFactory
	metrics    *metrics.Collector
	idleGrace  time.Duration
	seq        *IDGenerator
	onCreate   func(*proxy.SessionProxy)
}

// New constructs a Directory. metricsCollector may be nil to disable
// per-session metrics tracking. onCreate, if non-nil, runs once against
// every freshly created proxy before it is handed back to the caller -
// the hook point for wiring session-wide concerns like join
// authorization. It runs while entryFor still holds d.mu, before the
// entry's command loop starts, so it never competes with anything else.
func New(newSession SessionFactory, newGroup GroupFactory, metricsCollector *metrics.Collector, idleGrace time.Duration, seq *IDGenerator, onCreate func(*proxy.SessionProxy)) *Directory {
	return &Directory{
		entries:    make(map[string]*entry),
		newSession: newSession,
		newGroup:   newGroup,
		metrics:    metricsCollector,
		idleGrace:  idleGrace,
		seq:        seq,
		onCreate:   onCreate,
	}
}

// NextSeqID allocates a fresh seq_id for a new subscription.
func (d *Directory) NextSeqID() uint64 {
	return d.seq.Next()
}

// Ensure creates name's session (and its underlying Session and
// transport group) if it does not already exist. Callers that only need
// to fail fast before doing other setup (like upgrading a websocket) can
// call this instead of relying on their first routed call to create it.
func (d *Directory) Ensure(name string) error {
	_, err := d.entryFor(name)
	return err
}

// Dispatch routes an inbound frame for name's session through that
// session's command loop - the only goroutine ever allowed to call into
// its SessionProxy.
func (d *Directory) Dispatch(name string, conn session.Connection, body []byte) (session.DeliveryScope, error) {
	var scope session.DeliveryScope
	var callErr error
	if err := d.exec(name, func(p *proxy.SessionProxy) {
		scope, callErr = p.Dispatch(conn, body)
	}); err != nil {
		return session.ScopeNone, err
	}
	return scope, callErr
}

// SubscribeTo routes a subscribe request for name's session through that
// session's command loop.
func (d *Directory) SubscribeTo(name string, conn session.Connection, seqID uint64, synchronize bool) error {
	var callErr error
	if err := d.exec(name, func(p *proxy.SessionProxy) {
		callErr = p.SubscribeTo(conn, seqID, synchronize)
	}); err != nil {
		return err
	}
	return callErr
}

// Unsubscribe routes an unsubscribe request for name's session through
// that session's command loop.
func (d *Directory) Unsubscribe(name string, conn session.Connection) error {
	var callErr error
	if err := d.exec(name, func(p *proxy.SessionProxy) {
		callErr = p.Unsubscribe(conn)
	}); err != nil {
		return err
	}
	return callErr
}

// MemberRemoved routes a transport-level disconnect notification for
// name's session through that session's command loop.
func (d *Directory) MemberRemoved(name string, conn session.Connection) error {
	return d.exec(name, func(p *proxy.SessionProxy) {
		p.OnMemberRemoved(conn)
	})
}

// JoinUser routes a server-initiated (flags.LOCAL) join for name's
// session through that session's command loop. completion, if non-nil,
// runs on the session's own command-loop goroutine, exactly as it would
// had JoinUser been called on the proxy directly.
func (d *Directory) JoinUser(name string, props wire.PropBag, completion func(*session.User, error)) (*proxy.Request, error) {
	var req *proxy.Request
	if err := d.exec(name, func(p *proxy.SessionProxy) {
		req = p.JoinUser(props, completion)
	}); err != nil {
		return nil, err
	}
	return req, nil
}

// exec routes fn through name's session command loop and blocks until it
// has run. If a concurrent disposal wins the race between entryFor
// returning an entry and exec submitting to it, exec looks the name up
// again and retries - disposal only ever happens on an idle,
// unsubscribed session, so this loop is bounded and rare, not unbounded.
func (d *Directory) exec(name string, fn func(*proxy.SessionProxy)) error {
	for {
		e, err := d.entryFor(name)
		if err != nil {
			return err
		}
		done := make(chan struct{})
		if !e.submit(func() {
			fn(e.proxy)
			close(done)
		}) {
			continue
		}
		<-done
		return nil
	}
}

// entryFor returns name's entry, creating its SessionProxy, transport
// group, and command-loop goroutine on first reference. Held under d.mu
// for the whole of a creation so two callers racing on a brand new name
// can never construct two Sessions for it.
func (d *Directory) entryFor(name string) (*entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[name]; ok {
		return e, nil
	}

	sess, ioHandle, err := d.newSession(name)
	if err != nil {
		return nil, fmt.Errorf("directory: failed to create session %q: %w", name, err)
	}
	group := d.newGroup()
	p := proxy.New(ioHandle, sess, group)
	if d.onCreate != nil {
		d.onCreate(p)
	}

	e := &entry{proxy: p, cmds: make(chan func(), commandQueueSize)}
	e.detachIdle = p.OnIdleChange(func(idle bool) { d.onIdleChange(name, idle) })
	if d.metrics != nil {
		e.detachMetric = d.metrics.Track(name, p)
	}
	d.entries[name] = e
	go e.run()

	// A freshly created proxy starts idle (spec.md §4.3) without an edge
	// notification to say so; schedule its grace timer explicitly so an
	// unused session still unloads.
	if p.IsIdle() {
		d.onIdleChange(name, true)
	}

	logs.Info.Printf("directory: created session %q", name)
	return e, nil
}

// onIdleChange schedules this session's unload timer. The timer callback
// re-enters through unload, which submits its idle check and teardown as
// a single command on the session's own loop rather than touching the
// proxy from the timer goroutine directly.
func (d *Directory) onIdleChange(name string, idle bool) {
	if !idle {
		return
	}
	grace := d.idleGrace
	time.AfterFunc(grace, func() { d.unload(name) })
}

// unload submits a teardown command to name's session loop that disposes
// of the proxy iff it is still idle when the timer fires; a subscription
// that is still present at that moment cancels the unload, while one
// that came and went in between does not. A second, redundant
// timer firing after disposal is simply refused by submit, since the
// entry is already gone from d.entries by then.
func (d *Directory) unload(name string) {
	d.mu.Lock()
	e, ok := d.entries[name]
	d.mu.Unlock()
	if !ok {
		return
	}

	e.submit(func() {
		if !e.proxy.IsIdle() {
			return
		}

		d.mu.Lock()
		delete(d.entries, name)
		d.mu.Unlock()

		e.dispose()

		if err := e.proxy.Dispose(); err != nil {
			logs.Warn.Printf("directory: dispose of %q failed: %v", name, err)
		} else {
			logs.Info.Printf("directory: unloaded idle session %q", name)
		}
		e.detachIdle()
		if e.detachMetric != nil {
			e.detachMetric()
		}
	})
}

// Count returns the number of currently-loaded sessions, for diagnostics.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
