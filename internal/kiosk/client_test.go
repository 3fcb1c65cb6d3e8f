package kiosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormhub/api/internal/config"
	"dormhub/api/internal/events"
	"dormhub/api/internal/reconcile"
	"dormhub/api/internal/security"
)

const testSecret = "kiosk-test-secret"

type fakeAPI struct {
	t *testing.T

	refreshToken string
	accessTTL    time.Duration
	refreshCalls int
	logoutCalls  int
	rejectAuth   bool
	profile      map[string]any
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.writeGrant(w)
	})

	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls++
		if f.rejectAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(f.t, f.refreshToken, req["refreshToken"])

		f.refreshToken = "rotated-" + f.refreshToken
		f.writeGrant(w)
	})

	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls++
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/v1/profiles/", func(w http.ResponseWriter, r *http.Request) {
		if f.profile == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.profile)
	})

	return mux
}

func (f *fakeAPI) writeGrant(w http.ResponseWriter) {
	access, err := security.GenerateAccessToken(testSecret, "u1", "s1", "d1", "kim@dorm.local", "student", f.accessTTL)
	require.NoError(f.t, err)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accessToken":  access,
		"refreshToken": f.refreshToken,
		"deviceId":     "d1",
		"expiresAt":    time.Now().Add(f.accessTTL),
		"profile":      map[string]any{"id": "u1", "email": "kim@dorm.local"},
	})
}

func newTestClient(t *testing.T, api *fakeAPI, bus events.Subscriber) *Client {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	return NewClient(config.KioskConfig{
		APIBaseURL:     srv.URL,
		DeviceName:     "Test Kiosk",
		RequestTimeout: 5 * time.Second,
	}, config.ReconcilerConfig{
		RefreshLookahead: 5 * time.Minute,
	}, bus, zerolog.Nop())
}

func TestCurrentSessionWithoutGrant(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Hour}
	client := newTestClient(t, api, events.NewMemoryBus())

	session, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Zero(t, api.refreshCalls)
}

func TestLoginThenCurrentSessionUsesFreshToken(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Hour}
	client := newTestClient(t, api, events.NewMemoryBus())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))

	session, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "u1", session.Identity)
	assert.Equal(t, "kim@dorm.local", session.Email)
	assert.Equal(t, "r1", session.RefreshToken)

	// The hour-long token is nowhere near the refresh window.
	assert.Zero(t, api.refreshCalls)
}

func TestCurrentSessionRefreshesNearExpiry(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Minute}
	client := newTestClient(t, api, events.NewMemoryBus())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))

	session, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 1, api.refreshCalls)
	assert.Equal(t, "rotated-r1", session.RefreshToken)
	assert.Equal(t, "rotated-r1", client.Credentials().RefreshToken)
}

func TestRejectedRefreshMeansSignedOut(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Minute, rejectAuth: true}
	client := newTestClient(t, api, events.NewMemoryBus())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))

	session, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Empty(t, client.Credentials().RefreshToken)
}

func TestSignOutForgetsGrant(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Hour}
	client := newTestClient(t, api, events.NewMemoryBus())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))
	require.NoError(t, client.SignOut(ctx))

	assert.Equal(t, 1, api.logoutCalls)

	session, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestGetByIDReturnsRawProfile(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Hour, profile: map[string]any{
		"id":            "u1",
		"email":         "kim@dorm.local",
		"name":          nil,
		"meritPoints":   nil,
		"demeritPoints": 2,
	}}
	client := newTestClient(t, api, events.NewMemoryBus())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))

	raw, err := client.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", raw.ID)
	require.NotNil(t, raw.Email)
	assert.Equal(t, "kim@dorm.local", *raw.Email)
	assert.Nil(t, raw.Name)
	assert.Nil(t, raw.MeritPoints)
	require.NotNil(t, raw.DemeritPoints)
	assert.Equal(t, 2, *raw.DemeritPoints)
}

func TestGetByIDMissingRowIsNotFound(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Hour}
	client := newTestClient(t, api, events.NewMemoryBus())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))

	_, err := client.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, reconcile.ErrProfileNotFound)
}

func TestSubscribeMapsAndFiltersEvents(t *testing.T) {
	api := &fakeAPI{t: t, refreshToken: "r1", accessTTL: time.Hour}
	bus := events.NewMemoryBus()
	client := newTestClient(t, api, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Login(ctx, "kim@dorm.local", "secret123"))

	out, stop, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer stop()

	// Someone else's event never reaches the reconciler.
	require.NoError(t, bus.Publish(ctx, events.AuthEvent{Type: events.TypeSignedIn, Identity: "u2"}))
	require.NoError(t, bus.Publish(ctx, events.AuthEvent{
		Type:      events.TypeTokenRefreshed,
		Identity:  "u1",
		Email:     "kim@dorm.local",
		ExpiresAt: time.Now().Add(time.Hour),
		At:        time.Now(),
	}))

	select {
	case event := <-out:
		assert.Equal(t, reconcile.EventTokenRefreshed, event.Type)
		require.NotNil(t, event.Session)
		assert.Equal(t, "u1", event.Session.Identity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mapped event")
	}

	require.NoError(t, bus.Publish(ctx, events.AuthEvent{Type: events.TypeSignedOut, Identity: "u1"}))

	select {
	case event := <-out:
		assert.Equal(t, reconcile.EventSignedOut, event.Type)
		assert.Nil(t, event.Session)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sign-out event")
	}
}
