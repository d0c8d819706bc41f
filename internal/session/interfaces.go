/******************************************************************************
 *
 *  Description :
 *
 *    Capability interfaces for the proxy's external collaborators: the
 *    underlying Session engine, the transport-level subscription Group,
 *    and a peer Connection. None of these are implemented in this
 *    package; the document model, operational transform, and transport
 *    plumbing they represent are out of scope (see spec.md §1). Treated
 *    as tagged capability interfaces per the design notes, not concrete
 *    types, so the proxy package can be tested against fakes.
 *
 *****************************************************************************/

package session

import "github.com/collabhub/sessionproxy/internal/wire"

// SessionState mirrors the lifecycle of the underlying document session.
type SessionState uint8

const (
	// SessionPending is the state before a session's document model has
	// finished bringing up; only a non-synchronizing subscription is
	// permitted against it (spec.md §4.7), for the synchronizing peer's
	// own initial subscription during bring-up.
	SessionPending SessionState = iota
	SessionRunning
	SessionClosed
)

// SyncStatus describes whether, and how far along, a synchronization to a
// given connection has progressed.
type SyncStatus uint8

const (
	SyncNone SyncStatus = iota
	SyncInProgress
	SyncAwaitingAck
)

// DeliveryScope is the informational return value of a forwarded frame,
// letting a caller (e.g. a Directory) observe whether the session
// broadcast the frame or replied point-to-point.
type DeliveryScope int

const (
	ScopeNone DeliveryScope = iota
	ScopePointToPoint
	ScopeBroadcast
)

// Connection is an opaque peer connection handle. The proxy holds a
// strong reference to it for the lifetime of a Subscription.
type Connection interface {
	// ID returns a value unique among currently-live connections, used
	// only for diagnostics; the proxy itself keys subscriptions by the
	// Connection value's identity, not by this ID.
	ID() string
	// Send delivers a single frame to this connection only.
	Send(frame []byte) error
}

// Group is the transport-level multicast group that owns frame delivery
// to every subscribed peer of one session.
type Group interface {
	AddMember(c Connection) error
	RemoveMember(c Connection) error
	SendToSubscriptions(frame []byte) error
}

// Session is the underlying collaborative-editing engine: document model,
// operational transform, and sync protocol mechanics, none of which this
// package specifies beyond the calls the proxy makes against it.
type Session interface {
	Status() SessionState
	// HasSync reports whether any synchronization, to any connection, is
	// currently in flight. Feeds the idle aggregator directly.
	HasSync() bool
	GetSyncStatus(c Connection) SyncStatus
	CancelSynchronization(c Connection) error
	SynchronizeTo(group Group, c Connection) error

	// ValidateUserProps runs session-specific validation over a proposed
	// join. excluding, when non-nil, is the rejoin candidate: the
	// validator must not treat its own id/name as a collision.
	ValidateUserProps(props wire.PropBag, excluding *User) error
	// NewUser constructs and registers a fresh user from a fully-resolved
	// property bag (id, status, flags, and connection already set).
	NewUser(props wire.PropBag) (*User, error)
	// SerializeUser returns the full session-defined serialization of a
	// user's state, to be embedded in a user-join/user-rejoin frame.
	SerializeUser(u *User) wire.PropBag
	// GetXMLUserProps extracts a property bag from an inbound user-join
	// frame's session-specific children/attributes.
	GetXMLUserProps(f *wire.RawFrame) (wire.PropBag, error)
	// FindUserByName looks up a user by name regardless of status; the
	// coordinator is responsible for checking status itself.
	FindUserByName(name string) (*User, bool)

	// Forward delivers a frame the proxy does not own directly to the
	// session, returning whatever delivery scope the session used.
	Forward(f *wire.RawFrame, c Connection) (DeliveryScope, error)

	// SetSubscriptionGroup tells the session which group to address when
	// it needs to push frames on its own initiative (e.g. mid-sync).
	SetSubscriptionGroup(g Group)
}
