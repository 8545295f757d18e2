package client

import "github.com/evently/authsession/session"

// Event identifies a session transition delivered to OnChange listeners.
type Event string

const (
	// EventInitialResolved fires exactly once per hydration cycle, after the
	// persisted record (if any) has been adopted or discarded. Listeners that
	// subscribe after resolution receive it as a replay.
	EventInitialResolved Event = "initial_resolved"
	// EventSignedIn fires when a session is installed by a credential
	// exchange or external reconciliation.
	EventSignedIn Event = "signed_in"
	// EventTokenRefreshed fires when a refresh replaces the token pair.
	EventTokenRefreshed Event = "token_refreshed"
	// EventSignedOut fires when the session is cleared.
	EventSignedOut Event = "signed_out"
)

// Change carries an event and the session state after the transition.
// Session is nil for signed-out states.
type Change struct {
	Event   Event
	Session *session.Session
}
