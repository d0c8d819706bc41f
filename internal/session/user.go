/******************************************************************************
 *
 *  Description :
 *
 *    The User type as it is owned by the underlying session's user table
 *    and referenced from the proxy. The proxy never allocates or frees a
 *    User directly past construction (see session.Session.NewUser); it
 *    only observes status transitions and mutates the handful of fields
 *    the join protocol is allowed to touch.
 *
 *****************************************************************************/

package session

// UserStatus is one of the three states a tracked user can be in.
type UserStatus uint8

const (
	StatusActive UserStatus = iota
	StatusInactive
	StatusUnavailable
)

func (s UserStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ParseUserStatus parses the wire string form of a status, as submitted in
// a user-join property bag.
func ParseUserStatus(s string) (UserStatus, bool) {
	switch s {
	case "active":
		return StatusActive, true
	case "inactive":
		return StatusInactive, true
	case "unavailable":
		return StatusUnavailable, true
	default:
		return 0, false
	}
}

// UserFlags is a bitset of user properties. Only LOCAL is defined today;
// it is a bitset (rather than a bool) because the session-specific user
// table may OR in flags of its own.
type UserFlags uint32

const (
	FlagLocal UserFlags = 1 << iota
)

func (f UserFlags) Has(flag UserFlags) bool { return f&flag != 0 }

// StatusObserver is invoked on every status transition of the user it is
// attached to.
type StatusObserver func(u *User, old, new UserStatus)

type observerSlot struct {
	id int
	fn StatusObserver
}

// User is owned by the session's user table; the proxy holds a reference
// to it for the lifetime of a subscription or local join; it is never
// proxy's to free.
type User struct {
	ID         uint64
	Name       string
	Status     UserStatus
	Flags      UserFlags
	Connection Connection

	observers  []observerSlot
	nextObsID  int
}

// SetStatus transitions the user to a new status and fires every attached
// observer, in attachment order, against a snapshot of the observer list
// so an observer detaching itself mid-fan-out does not corrupt iteration.
func (u *User) SetStatus(new UserStatus) {
	if u.Status == new {
		return
	}
	old := u.Status
	u.Status = new
	slots := append([]observerSlot(nil), u.observers...)
	for _, s := range slots {
		s.fn(u, old, new)
	}
}

// OnStatusChange attaches an observer and returns a function that detaches
// it. Detaching from inside the observer itself is safe, and detaching
// twice is a no-op.
func (u *User) OnStatusChange(ob StatusObserver) (detach func()) {
	id := u.nextObsID
	u.nextObsID++
	u.observers = append(u.observers, observerSlot{id: id, fn: ob})
	return func() {
		for i, s := range u.observers {
			if s.id == id {
				u.observers = append(u.observers[:i:i], u.observers[i+1:]...)
				return
			}
		}
	}
}
