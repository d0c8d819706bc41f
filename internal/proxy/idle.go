/******************************************************************************
 *
 *  Description :
 *
 *    The Idle Aggregator (spec.md §4.3): a derived boolean over three
 *    independent sources. Notifications fire exactly on edges.
 *
 *****************************************************************************/

package proxy

// recomputeIdle recomputes idle from current state and notifies iff the
// value changed. Called at every point spec.md §4.3 names: subscription
// add/remove, local-user add/become-unavailable, and sync begin/complete/
// fail.
func (p *SessionProxy) recomputeIdle() {
	next := len(p.subscriptions) == 0 && len(p.localUsers) == 0 && !p.session.HasSync()
	if next == p.idle {
		return
	}
	p.idle = next
	p.onIdleChange.Emit(next)
}
