package kiosk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dormhub/api/internal/events"
	"dormhub/api/internal/reconcile"
)

// CurrentSession answers with the device's session, minting a fresh access
// token when the current one is expired or inside the refresh window. No
// stored grant means nobody is signed in. A rejected refresh also means
// signed out; only transport failures surface as errors.
func (c *Client) CurrentSession(ctx context.Context) (*reconcile.Session, error) {
	creds := c.Credentials()
	if creds.RefreshToken == "" {
		return nil, nil
	}

	if creds.AccessToken != "" {
		session, err := sessionFromToken(creds.AccessToken, creds.RefreshToken)
		if err == nil && session.Valid(time.Now()) && !session.RefreshDue(time.Now(), c.lookahead) {
			return session, nil
		}
	}

	return c.refresh(ctx, creds)
}

func (c *Client) refresh(ctx context.Context, creds Credentials) (*reconcile.Session, error) {
	body := map[string]string{
		"userId":       creds.UserID,
		"deviceId":     creds.DeviceID,
		"refreshToken": creds.RefreshToken,
	}

	var payload authPayload
	status, err := c.postJSON(ctx, "/api/v1/auth/refresh", "", body, &payload)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// The grant is dead. Treat it like a sign-out, not an outage.
		c.clearCredentials()
		return nil, nil
	default:
		return nil, fmt.Errorf("refresh failed: status %d", status)
	}

	c.SetCredentials(Credentials{
		UserID:       payload.Profile.ID,
		DeviceID:     payload.DeviceID,
		RefreshToken: payload.RefreshToken,
		AccessToken:  payload.AccessToken,
	})

	return sessionFromToken(payload.AccessToken, payload.RefreshToken)
}

// Subscribe adapts the auth event feed to the reconciler's shape, dropping
// events that belong to other identities.
func (c *Client) Subscribe(ctx context.Context) (<-chan reconcile.Event, func(), error) {
	in, stop, err := c.bus.Subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan reconcile.Event, 16)
	go func() {
		defer close(out)
		for raw := range in {
			event, ok := c.mapEvent(raw)
			if !ok {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, stop, nil
}

func (c *Client) mapEvent(raw events.AuthEvent) (reconcile.Event, bool) {
	userID := c.Credentials().UserID
	if userID == "" || raw.Identity != userID {
		return reconcile.Event{}, false
	}

	switch raw.Type {
	case events.TypeSignedOut:
		return reconcile.Event{Type: reconcile.EventSignedOut}, true
	case events.TypeSignedIn, events.TypeTokenRefreshed, events.TypeInitialSession:
		session := &reconcile.Session{
			Identity:     raw.Identity,
			Email:        raw.Email,
			IssuedAt:     raw.At,
			ExpiresAt:    raw.ExpiresAt,
			RefreshToken: c.Credentials().RefreshToken,
		}
		return reconcile.Event{Type: reconcile.EventType(raw.Type), Session: session}, true
	default:
		c.log.Debug().Str("type", raw.Type).Msg("unrecognized auth event dropped")
		return reconcile.Event{}, false
	}
}

// SignOut revokes the device's session server-side and forgets the grant
// either way.
func (c *Client) SignOut(ctx context.Context) error {
	creds := c.Credentials()
	c.clearCredentials()

	if creds.RefreshToken == "" {
		return nil
	}

	body := map[string]string{
		"userId":   creds.UserID,
		"deviceId": creds.DeviceID,
	}
	status, err := c.postJSON(ctx, "/api/v1/auth/logout", creds.AccessToken, body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return fmt.Errorf("logout failed: status %d", status)
	}
	return nil
}
