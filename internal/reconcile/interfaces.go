package reconcile

import (
	"context"
	"errors"
)

var (
	// ErrProfileNotFound marks an identity with no stored profile row. It is
	// an expected outcome for first-time users, not a failure.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrCacheMiss marks an absent cache key.
	ErrCacheMiss = errors.New("cache miss")
)

// Cache keys the reconciler owns.
const (
	CacheKeyIdentity = "identity"
	CacheKeyProfile  = "profile"
)

// Provider is the remote identity provider. CurrentSession returns nil with
// a nil error when nobody is signed in; an error means the provider was
// unreachable, which is always treated as transient.
type Provider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
	SignOut(ctx context.Context) error
}

// ProfileStore is the remote profile record store, point-queried by
// identity.
type ProfileStore interface {
	GetByID(ctx context.Context, identity string) (RawProfile, error)
}

// Cache is durable local key-value storage for the last resolved profile
// and last known identity. It is an optimization, never a source of truth;
// write failures are swallowed by callers.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Clear(ctx context.Context) error
}
