// Package reconcile merges the remote provider's current session, a
// durable local cache of the last resolved profile, and the provider's
// change-event feed into one consistent logged-in view. The view becomes ready within a bounded time
// even when the provider is unreachable; provider failures degrade to the
// cached profile or a logged-out view, never to an error surfaced upward.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultInitTimeout = 5 * time.Second

// View is the single exposed state. Ready transitions false to true exactly
// once and never reverts; LoggedIn implies a non-nil Profile.
type View struct {
	Ready    bool
	LoggedIn bool
	Profile  *Profile
}

type Config struct {
	InitTimeout time.Duration
}

type Reconciler struct {
	provider Provider
	profiles ProfileStore
	cache    Cache
	log      zerolog.Logger

	initTimeout time.Duration

	mu             sync.Mutex
	view           View
	watchers       []chan View
	cachedIdentity string
	closing        bool
	closed         bool
	started        bool

	stopEvents func()
	done       chan struct{}
	loopDone   chan struct{}
}

func New(provider Provider, profiles ProfileStore, cache Cache, cfg Config, log zerolog.Logger) *Reconciler {
	timeout := cfg.InitTimeout
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}
	return &Reconciler{
		provider:    provider,
		profiles:    profiles,
		cache:       cache,
		log:         log,
		initTimeout: timeout,
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// Start restores the cached profile optimistically, subscribes to provider
// events, kicks off the authoritative session query, and launches the
// single goroutine that owns all further state mutation.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("reconciler already started")
	}
	r.started = true
	r.mu.Unlock()

	r.restoreFromCache(ctx)

	events, stop, err := r.provider.Subscribe(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("auth event subscription failed, continuing without live updates")
		events = nil
		stop = func() {}
	}
	r.stopEvents = stop

	sessionCh := make(chan sessionResult, 1)
	go func() {
		session, err := r.provider.CurrentSession(ctx)
		sessionCh <- sessionResult{session: session, err: err}
	}()

	go r.run(ctx, sessionCh, events)
	return nil
}

type sessionResult struct {
	session *Session
	err     error
}

func (r *Reconciler) run(ctx context.Context, sessionCh chan sessionResult, events <-chan Event) {
	defer close(r.loopDone)

	timer := time.NewTimer(r.initTimeout)
	defer timer.Stop()

	var pending []Event
	initialized := false

	finishInit := func() {
		initialized = true
		timer.Stop()
		r.setView(func(v *View) { v.Ready = true })
		for _, ev := range pending {
			r.handleEvent(ctx, ev)
		}
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return

		case res := <-sessionCh:
			// Only one result ever arrives; a nil channel blocks forever.
			sessionCh = nil
			r.applySessionResult(ctx, res)
			if !initialized {
				finishInit()
			}

		case <-timer.C:
			if !initialized {
				r.log.Warn().
					Dur("timeout", r.initTimeout).
					Msg("session query did not finish in time, forcing ready")
				finishInit()
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !initialized {
				pending = append(pending, ev)
				continue
			}
			r.handleEvent(ctx, ev)
		}
	}
}

func (r *Reconciler) restoreFromCache(ctx context.Context) {
	identity, err := r.cache.Get(ctx, CacheKeyIdentity)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn().Err(err).Msg("cache read failed")
		}
		return
	}
	encoded, err := r.cache.Get(ctx, CacheKeyProfile)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn().Err(err).Msg("cache read failed")
		}
		return
	}
	profile, err := DecodeProfile(encoded)
	if err != nil {
		r.log.Warn().Err(err).Msg("cached profile corrupt, discarding cache")
		r.clearCache(ctx)
		return
	}

	r.mu.Lock()
	r.cachedIdentity = identity
	r.mu.Unlock()

	r.setView(func(v *View) {
		v.LoggedIn = true
		v.Profile = &profile
	})
}

func (r *Reconciler) applySessionResult(ctx context.Context, res sessionResult) {
	if res.err != nil {
		// Provider unreachable: keep the optimistic cached profile if one
		// was restored, otherwise fall back to logged out.
		r.log.Warn().Err(res.err).Msg("session query failed, keeping local state")
		if r.View().Profile == nil {
			r.setView(func(v *View) {
				v.LoggedIn = false
				v.Profile = nil
			})
		}
		return
	}

	if res.session == nil {
		r.clearCache(ctx)
		r.setView(func(v *View) {
			v.LoggedIn = false
			v.Profile = nil
		})
		return
	}

	session := *res.session

	r.mu.Lock()
	cached := r.cachedIdentity
	r.mu.Unlock()
	if cached != "" && cached != session.Identity {
		r.log.Info().
			Str("cached_identity", cached).
			Str("session_identity", session.Identity).
			Msg("cached identity differs from session, discarding cache")
		r.clearCache(ctx)
		r.setView(func(v *View) { v.Profile = nil })
	}

	profile := r.resolve(ctx, session)
	r.setView(func(v *View) {
		v.LoggedIn = true
		v.Profile = &profile
	})
	r.persist(ctx, session.Identity, profile)
}

func (r *Reconciler) handleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventSignedOut:
		r.clearCache(ctx)
		r.setView(func(v *View) {
			v.LoggedIn = false
			v.Profile = nil
		})

	case EventSignedIn:
		if ev.Session == nil {
			return
		}
		session := *ev.Session
		// A fresh sign-in always re-resolves, ignoring any held profile.
		profile := r.resolve(ctx, session)
		r.setView(func(v *View) {
			v.LoggedIn = true
			v.Profile = &profile
		})
		r.persist(ctx, session.Identity, profile)

	case EventTokenRefreshed, EventInitialSession:
		if ev.Session == nil {
			// Providers emit ambiguous refresh-failure events that are not
			// true logouts; never clear state on them.
			return
		}
		session := *ev.Session

		r.mu.Lock()
		cached := r.cachedIdentity
		current := r.view.Profile
		needResolve := current == nil || current.ID != session.Identity
		r.mu.Unlock()

		if cached != "" && cached != session.Identity {
			r.clearCache(ctx)
		}

		if !needResolve {
			r.setView(func(v *View) { v.LoggedIn = true })
			return
		}

		profile := r.resolve(ctx, session)
		r.setView(func(v *View) {
			v.LoggedIn = true
			v.Profile = &profile
		})
		r.persist(ctx, session.Identity, profile)

	default:
		// Unknown provider events carry no actionable state.
	}
}

// resolve looks up the profile for a session's identity. A missing row
// yields a minimal placeholder (new user); any other store failure is
// logged and also degrades to the placeholder, so resolution never blocks
// a login.
func (r *Reconciler) resolve(ctx context.Context, session Session) Profile {
	raw, err := r.profiles.GetByID(ctx, session.Identity)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			r.log.Warn().
				Err(err).
				Str("identity", session.Identity).
				Msg("profile lookup failed, using placeholder")
		}
		return MinimalProfile(session.Identity, session.Email)
	}
	return Normalize(raw, session.Email)
}

// persist writes the identity and resolved profile through to the cache.
// Cache writes happen only after a successful resolve, and their failures
// are logged and swallowed.
func (r *Reconciler) persist(ctx context.Context, identity string, profile Profile) {
	encoded, err := EncodeProfile(profile)
	if err != nil {
		r.log.Warn().Err(err).Msg("profile encode failed")
		return
	}
	if err := r.cache.Set(ctx, CacheKeyIdentity, identity); err != nil {
		r.log.Warn().Err(err).Msg("cache write failed")
	}
	if err := r.cache.Set(ctx, CacheKeyProfile, encoded); err != nil {
		r.log.Warn().Err(err).Msg("cache write failed")
	}

	r.mu.Lock()
	r.cachedIdentity = identity
	r.mu.Unlock()
}

func (r *Reconciler) clearCache(ctx context.Context) {
	if err := r.cache.Clear(ctx); err != nil {
		r.log.Warn().Err(err).Msg("cache clear failed")
	}
	r.mu.Lock()
	r.cachedIdentity = ""
	r.mu.Unlock()
}

// Logout signs out at the provider best-effort and clears local state
// unconditionally, even when the provider call fails.
func (r *Reconciler) Logout(ctx context.Context) {
	if err := r.provider.SignOut(ctx); err != nil {
		r.log.Warn().Err(err).Msg("provider sign-out failed, clearing local state anyway")
	}
	r.clearCache(ctx)
	r.setView(func(v *View) {
		v.LoggedIn = false
		v.Profile = nil
	})
}

// View returns a snapshot of the current state. The profile is copied so
// observers can never mutate reconciler state.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Watch returns a channel that carries the current view immediately and
// every subsequent change. Slow receivers only ever observe the latest
// state; intermediate views may be dropped.
func (r *Reconciler) Watch() <-chan View {
	ch := make(chan View, 1)
	r.mu.Lock()
	r.watchers = append(r.watchers, ch)
	v := r.snapshotLocked()
	r.mu.Unlock()
	ch <- v
	return ch
}

// Close unsubscribes from provider events and stops the loop. No state
// mutation happens after Close returns.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return
	}
	r.closing = true
	started := r.started
	r.mu.Unlock()

	if r.stopEvents != nil {
		r.stopEvents()
	}
	close(r.done)
	if started {
		<-r.loopDone
	}

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Reconciler) setView(mutate func(*View)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	wasReady := r.view.Ready
	mutate(&r.view)
	if wasReady {
		// Readiness is monotonic.
		r.view.Ready = true
	}
	v := r.snapshotLocked()
	watchers := make([]chan View, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, ch := range watchers {
		pushLatest(ch, v)
	}
}

func (r *Reconciler) snapshotLocked() View {
	v := r.view
	if v.Profile != nil {
		p := *v.Profile
		v.Profile = &p
	}
	return v
}

func pushLatest(ch chan View, v View) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
