// Package events carries identity-change notifications from the auth
// service to subscribers such as kiosk clients.
package events

import (
	"context"
	"time"
)

const (
	TypeSignedIn       = "SIGNED_IN"
	TypeSignedOut      = "SIGNED_OUT"
	TypeTokenRefreshed = "TOKEN_REFRESHED"
	TypeInitialSession = "INITIAL_SESSION"
)

type AuthEvent struct {
	Type      string    `json:"type"`
	Identity  string    `json:"identity"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event AuthEvent) error
}

type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan AuthEvent, func(), error)
}

// Bus is a publish/subscribe feed of auth events.
type Bus interface {
	Publisher
	Subscriber
}
