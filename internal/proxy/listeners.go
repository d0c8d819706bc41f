/******************************************************************************
 *
 *  Description :
 *
 *    Explicit signal/listener wiring in place of the source's named-signal
 *    framework: a small fan-out abstraction per event, plus a dedicated
 *    true-accumulator for reject-user-join. See spec.md §9.
 *
 *****************************************************************************/

package proxy

import (
	"github.com/collabhub/sessionproxy/internal/session"
	"github.com/collabhub/sessionproxy/internal/wire"
)

// Listeners is a minimal multi-subscriber event: every attached function
// is invoked, in attachment order, against a snapshot of the list so a
// listener detaching itself (or another listener) mid-fan-out is safe.
type Listeners[T any] struct {
	next int
	fns  []listenerSlot[T]
}

type listenerSlot[T any] struct {
	id int
	fn func(T)
}

// Add attaches fn and returns a function that detaches it.
func (l *Listeners[T]) Add(fn func(T)) (detach func()) {
	id := l.next
	l.next++
	l.fns = append(l.fns, listenerSlot[T]{id: id, fn: fn})
	return func() {
		for i, s := range l.fns {
			if s.id == id {
				l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
				return
			}
		}
	}
}

// Emit fans arg out to every currently-attached listener.
func (l *Listeners[T]) Emit(arg T) {
	snapshot := append([]listenerSlot[T](nil), l.fns...)
	for _, s := range snapshot {
		s.fn(arg)
	}
}

// DetachAll removes every listener, for use at dispose time.
func (l *Listeners[T]) DetachAll() {
	l.fns = nil
}

// RejectJoinListener votes on whether a join should be rejected. true
// means "reject". Listeners must not mutate props.
type RejectJoinListener func(args RejectJoinArgs) bool

// RejectJoinArgs is the fixed argument tuple passed to every
// reject-user-join listener.
type RejectJoinArgs struct {
	Connection     session.Connection
	Properties     wire.PropBag // read-only
	RejoinOfUserID uint64
	IsRejoin       bool
}

// RejectJoinListeners is the true-accumulator of §4.6: the join is
// rejected iff any attached listener returns true. The default listener
// (accept everything) is simply the empty-list case: Accumulate returns
// false when nothing is attached.
type RejectJoinListeners struct {
	next int
	fns  []rejectSlot
}

type rejectSlot struct {
	id int
	fn RejectJoinListener
}

func (l *RejectJoinListeners) Add(fn RejectJoinListener) (detach func()) {
	id := l.next
	l.next++
	l.fns = append(l.fns, rejectSlot{id: id, fn: fn})
	return func() {
		for i, s := range l.fns {
			if s.id == id {
				l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
				return
			}
		}
	}
}

// Accumulate returns true iff any attached listener votes to reject.
func (l *RejectJoinListeners) Accumulate(args RejectJoinArgs) bool {
	snapshot := append([]rejectSlot(nil), l.fns...)
	for _, s := range snapshot {
		if s.fn(args) {
			return true
		}
	}
	return false
}

func (l *RejectJoinListeners) DetachAll() {
	l.fns = nil
}
