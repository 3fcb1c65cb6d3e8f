package reconcile

import "time"

// DefaultRefreshLookahead is how close to expiry a session is considered
// refresh-due rather than invalid.
const DefaultRefreshLookahead = 5 * time.Minute

type Session struct {
	Identity     string
	Email        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RefreshToken string
}

func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// RefreshDue reports whether the session is still valid but inside the
// lookahead window of its expiry.
func (s Session) RefreshDue(now time.Time, lookahead time.Duration) bool {
	if lookahead <= 0 {
		lookahead = DefaultRefreshLookahead
	}
	return s.Valid(now) && !now.Add(lookahead).Before(s.ExpiresAt)
}

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventInitialSession EventType = "INITIAL_SESSION"
)

// Event is one identity-change notification from the provider. Session is
// nil when the provider could not attach one; only SIGNED_OUT is allowed to
// clear state on a nil session.
type Event struct {
	Type    EventType
	Session *Session
}
