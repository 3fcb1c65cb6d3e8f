package kiosk

import (
	"context"
	"fmt"
	"net/http"

	"dormhub/api/internal/reconcile"
)

// GetByID fetches a profile row as stored, nullable fields intact. The
// reconciler normalizes; this client only transports.
func (c *Client) GetByID(ctx context.Context, identity string) (reconcile.RawProfile, error) {
	session, err := c.CurrentSession(ctx)
	if err != nil {
		return reconcile.RawProfile{}, err
	}
	if session == nil {
		return reconcile.RawProfile{}, fmt.Errorf("no active session")
	}

	var raw reconcile.RawProfile
	status, err := c.getJSON(ctx, "/api/v1/profiles/"+identity, c.Credentials().AccessToken, &raw)
	if err != nil {
		return reconcile.RawProfile{}, err
	}

	switch status {
	case http.StatusOK:
		return raw, nil
	case http.StatusNotFound:
		return reconcile.RawProfile{}, reconcile.ErrProfileNotFound
	default:
		return reconcile.RawProfile{}, fmt.Errorf("profile fetch failed: status %d", status)
	}
}
