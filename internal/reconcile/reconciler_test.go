package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu           sync.Mutex
	session      *Session
	sessionErr   error
	block        chan struct{} // when set, CurrentSession waits for it
	events       chan Event
	signOutErr   error
	signOutCalls int
	unsubscribed bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan Event, 16)}
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	block := p.block
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.sessionErr
}

func (p *fakeProvider) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	return p.events, func() {
		p.mu.Lock()
		p.unsubscribed = true
		p.mu.Unlock()
	}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return p.signOutErr
}

type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]RawProfile
	err   error
	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]RawProfile{}, calls: map[string]int{}}
}

func (s *fakeStore) GetByID(ctx context.Context, identity string) (RawProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[identity]++
	if s.err != nil {
		return RawProfile{}, s.err
	}
	raw, ok := s.rows[identity]
	if !ok {
		return RawProfile{}, ErrProfileNotFound
	}
	return raw, nil
}

func (s *fakeStore) queries(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[identity]
}

type fakeCache struct {
	mu       sync.Mutex
	data     map[string]string
	setErr   error
	clearErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *fakeCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearErr != nil {
		return c.clearErr
	}
	c.data = map[string]string{}
	return nil
}

func (c *fakeCache) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data) == 0
}

func (c *fakeCache) seed(t *testing.T, identity string, profile Profile) {
	t.Helper()
	encoded, err := EncodeProfile(profile)
	require.NoError(t, err)
	c.mu.Lock()
	c.data[CacheKeyIdentity] = identity
	c.data[CacheKeyProfile] = encoded
	c.mu.Unlock()
}

func testSession(identity, email string) *Session {
	now := time.Now()
	return &Session{
		Identity:  identity,
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func waitFor(t *testing.T, r *Reconciler, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		v := r.View()
		if cond(v) {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached, last view: %+v", r.View())
	return View{}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestColdStartResolvesAndNormalizesProfile(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{
		ID:   "u1",
		Name: strPtr("Kim"),
		Role: strPtr("student"),
		// merit/demerit/infoComplete left null in storage
	}
	cache := newFakeCache()

	r := New(provider, store, cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	require.NotNil(t, v.Profile)
	assert.True(t, v.LoggedIn)
	assert.Equal(t, "u1", v.Profile.ID)
	assert.Equal(t, "Kim", v.Profile.Name)
	assert.Equal(t, "student", v.Profile.Role)
	assert.Equal(t, 0, v.Profile.MeritPoints)
	assert.Equal(t, 0, v.Profile.DemeritPoints)
	assert.False(t, v.Profile.InfoComplete)
	assert.Equal(t, "kim@dorm.local", v.Profile.Email)

	// Resolved profile is written through to the cache.
	identity, err := cache.Get(context.Background(), CacheKeyIdentity)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity)
}

func TestColdStartNoSessionClearsCache(t *testing.T) {
	provider := newFakeProvider()
	store := newFakeStore()
	cache := newFakeCache()
	cache.seed(t, "u1", MinimalProfile("u1", ""))

	r := New(provider, store, cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.False(t, v.LoggedIn)
	assert.Nil(t, v.Profile)
	assert.True(t, cache.empty())
}

func TestTimeoutKeepsCachedProfile(t *testing.T) {
	provider := newFakeProvider()
	provider.block = make(chan struct{}) // provider never answers

	store := newFakeStore()
	cache := newFakeCache()
	cached := Profile{ID: "u1", Name: "Kim", Role: "student", MeritPoints: 3}
	cache.seed(t, "u1", cached)

	start := time.Now()
	r := New(provider, store, cache, Config{InitTimeout: 150 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	// Optimistic restore paints immediately, before readiness.
	v := r.View()
	assert.False(t, v.Ready)
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.Equal(t, "Kim", v.Profile.Name)

	v = waitFor(t, r, func(v View) bool { return v.Ready })
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.Equal(t, 3, v.Profile.MeritPoints)
}

func TestTimeoutEmptyCacheMeansLoggedOut(t *testing.T) {
	provider := newFakeProvider()
	provider.block = make(chan struct{})

	r := New(provider, newFakeStore(), newFakeCache(), Config{InitTimeout: 100 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.False(t, v.LoggedIn)
	assert.Nil(t, v.Profile)
}

func TestLateSessionResultStillApplies(t *testing.T) {
	provider := newFakeProvider()
	provider.block = make(chan struct{})
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: 80 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.False(t, v.LoggedIn)

	// Provider answers after the deadline already forced readiness.
	close(provider.block)

	v = waitFor(t, r, func(v View) bool { return v.LoggedIn })
	assert.True(t, v.Ready)
	require.NotNil(t, v.Profile)
	assert.Equal(t, "Kim", v.Profile.Name)
}

func TestSessionQueryFailureKeepsOptimisticState(t *testing.T) {
	provider := newFakeProvider()
	provider.sessionErr = errors.New("network down")

	cache := newFakeCache()
	cache.seed(t, "u1", Profile{ID: "u1", Name: "Kim", Role: "student"})

	r := New(provider, newFakeStore(), cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.Equal(t, "u1", v.Profile.ID)
	assert.False(t, cache.empty())
}

func TestSessionQueryFailureEmptyCacheMeansLoggedOut(t *testing.T) {
	provider := newFakeProvider()
	provider.sessionErr = errors.New("network down")

	r := New(provider, newFakeStore(), newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.False(t, v.LoggedIn)
	assert.Nil(t, v.Profile)
}

func TestCachedIdentityMismatchDiscardsCache(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("userB", "b@dorm.local")

	store := newFakeStore()
	store.rows["userB"] = RawProfile{ID: "userB", Name: strPtr("Park")}

	cache := newFakeCache()
	cache.seed(t, "userA", Profile{ID: "userA", Name: "Kim", Role: "student"})

	r := New(provider, store, cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	require.NotNil(t, v.Profile)
	assert.Equal(t, "userB", v.Profile.ID)
	assert.Equal(t, "Park", v.Profile.Name)

	identity, err := cache.Get(context.Background(), CacheKeyIdentity)
	require.NoError(t, err)
	assert.Equal(t, "userB", identity)
}

func TestNewUserFallbackProfile(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("fresh", "new@dorm.local")

	r := New(provider, newFakeStore(), newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.Equal(t, "fresh", v.Profile.ID)
	assert.Equal(t, "new@dorm.local", v.Profile.Email)
	assert.False(t, v.Profile.InfoComplete)
}

func TestStoreErrorDegradesToPlaceholder(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.err = errors.New("query timeout")

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	v := waitFor(t, r, func(v View) bool { return v.Ready })
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.Equal(t, "u1", v.Profile.ID)
	assert.Equal(t, "kim@dorm.local", v.Profile.Email)
}

func TestSignedOutEventClearsEverything(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}
	cache := newFakeCache()

	r := New(provider, store, cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })

	provider.events <- Event{Type: EventSignedOut}

	v := waitFor(t, r, func(v View) bool { return !v.LoggedIn })
	assert.True(t, v.Ready)
	assert.Nil(t, v.Profile)
	assert.True(t, cache.empty())
}

func TestTokenRefreshCoalescesResolution(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim"), MeritPoints: intPtr(2)}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })
	initial := store.queries("u1")

	provider.events <- Event{Type: EventTokenRefreshed, Session: testSession("u1", "kim@dorm.local")}
	provider.events <- Event{Type: EventTokenRefreshed, Session: testSession("u1", "kim@dorm.local")}

	// Give the loop time to drain both events.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, initial, store.queries("u1"))

	v := r.View()
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.Equal(t, 2, v.Profile.MeritPoints)
}

func TestSignedInEventForcesResolution(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })
	before := store.queries("u1")

	provider.events <- Event{Type: EventSignedIn, Session: testSession("u1", "kim@dorm.local")}

	waitFor(t, r, func(v View) bool { return store.queries("u1") > before })
}

func TestRefreshEventSwitchesIdentity(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("userA", "a@dorm.local")

	store := newFakeStore()
	store.rows["userA"] = RawProfile{ID: "userA", Name: strPtr("Kim")}
	store.rows["userB"] = RawProfile{ID: "userB", Name: strPtr("Park")}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })

	provider.events <- Event{Type: EventTokenRefreshed, Session: testSession("userB", "b@dorm.local")}

	v := waitFor(t, r, func(v View) bool {
		return v.Profile != nil && v.Profile.ID == "userB"
	})
	assert.Equal(t, "Park", v.Profile.Name)
}

func TestAmbiguousEventWithoutSessionIsIgnored(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}
	cache := newFakeCache()

	r := New(provider, store, cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })

	provider.events <- Event{Type: EventTokenRefreshed, Session: nil}
	time.Sleep(50 * time.Millisecond)

	v := r.View()
	assert.True(t, v.LoggedIn)
	require.NotNil(t, v.Profile)
	assert.False(t, cache.empty())
}

func TestLogoutClearsStateEvenWhenSignOutFails(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")
	provider.signOutErr = errors.New("provider unreachable")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}
	cache := newFakeCache()

	r := New(provider, store, cache, Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })

	r.Logout(context.Background())

	v := r.View()
	assert.True(t, v.Ready)
	assert.False(t, v.LoggedIn)
	assert.Nil(t, v.Profile)
	assert.True(t, cache.empty())
	assert.Equal(t, 1, provider.signOutCalls)
}

func TestReadyIsMonotonic(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1"}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	waitFor(t, r, func(v View) bool { return v.Ready })

	provider.events <- Event{Type: EventSignedOut}
	provider.events <- Event{Type: EventSignedIn, Session: testSession("u1", "kim@dorm.local")}

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		assert.True(t, r.View().Ready)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventsBufferedUntilSessionResolves(t *testing.T) {
	provider := newFakeProvider()
	provider.block = make(chan struct{})
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}
	store.rows["u2"] = RawProfile{ID: "u2", Name: strPtr("Lee")}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	// Delivered before the initial query resolves; must not apply yet.
	provider.events <- Event{Type: EventSignedIn, Session: testSession("u2", "lee@dorm.local")}
	time.Sleep(50 * time.Millisecond)
	assert.False(t, r.View().Ready)
	assert.Equal(t, 0, store.queries("u2"))

	close(provider.block)

	// After init the buffered event replays in order, landing on u2.
	v := waitFor(t, r, func(v View) bool {
		return v.Ready && v.Profile != nil && v.Profile.ID == "u2"
	})
	assert.Equal(t, "Lee", v.Profile.Name)
}

func TestCloseUnsubscribesAndFreezesState(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, r.Start(context.Background()))

	waitFor(t, r, func(v View) bool { return v.Ready && v.LoggedIn })

	r.Close()

	provider.mu.Lock()
	assert.True(t, provider.unsubscribed)
	provider.mu.Unlock()

	before := r.View()
	provider.events <- Event{Type: EventSignedOut}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before.LoggedIn, r.View().LoggedIn)
}

func TestWatchDeliversTransitions(t *testing.T) {
	provider := newFakeProvider()
	provider.session = testSession("u1", "kim@dorm.local")

	store := newFakeStore()
	store.rows["u1"] = RawProfile{ID: "u1", Name: strPtr("Kim")}

	r := New(provider, store, newFakeCache(), Config{InitTimeout: time.Second}, zerolog.Nop())

	ch := r.Watch()
	first := <-ch
	assert.False(t, first.Ready)

	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if v.Ready && v.LoggedIn {
				require.NotNil(t, v.Profile)
				assert.Equal(t, "u1", v.Profile.ID)
				return
			}
		case <-deadline:
			t.Fatal("never observed a ready logged-in view")
		}
	}
}
