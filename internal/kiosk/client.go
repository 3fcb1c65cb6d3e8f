// Package kiosk is the HTTP client side of the dormitory service: an
// identity provider and profile store backed by the API, plus a durable
// file cache, wired together by the session reconciler.
package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dormhub/api/internal/config"
	"dormhub/api/internal/events"
	"dormhub/api/internal/reconcile"
	"dormhub/api/internal/security"
)

// Credentials is the device's standing grant: a refresh token plus the
// last access token minted from it.
type Credentials struct {
	UserID       string `json:"userId"`
	DeviceID     string `json:"deviceId"`
	RefreshToken string `json:"refreshToken"`
	AccessToken  string `json:"accessToken"`
}

type Client struct {
	baseURL    string
	deviceName string
	lookahead  time.Duration
	http       *http.Client
	bus        events.Subscriber
	log        zerolog.Logger

	mu    sync.Mutex
	creds Credentials
}

func NewClient(cfg config.KioskConfig, rec config.ReconcilerConfig, bus events.Subscriber, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		deviceName: cfg.DeviceName,
		lookahead:  rec.RefreshLookahead,
		http:       &http.Client{Timeout: cfg.RequestTimeout},
		bus:        bus,
		log:        log,
	}
}

// SetCredentials seeds the client with a grant restored from disk.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *Client) Credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

func (c *Client) clearCredentials() {
	c.mu.Lock()
	c.creds = Credentials{}
	c.mu.Unlock()
}

type authPayload struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	DeviceID     string    `json:"deviceId"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Profile      struct {
		ID    string  `json:"id"`
		Email *string `json:"email"`
	} `json:"profile"`
}

// Login signs this device in and stores the resulting grant.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{
		"email":      email,
		"password":   password,
		"deviceName": c.deviceName,
	}
	if deviceID := c.Credentials().DeviceID; deviceID != "" {
		body["deviceId"] = deviceID
	}

	var payload authPayload
	status, err := c.postJSON(ctx, "/api/v1/auth/login", "", body, &payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login rejected: status %d", status)
	}

	c.SetCredentials(Credentials{
		UserID:       payload.Profile.ID,
		DeviceID:     payload.DeviceID,
		RefreshToken: payload.RefreshToken,
		AccessToken:  payload.AccessToken,
	})
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, bearer string, body any, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, path string, bearer string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func sessionFromToken(accessToken, refreshToken string) (*reconcile.Session, error) {
	claims, err := security.PeekAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	session := &reconcile.Session{
		Identity:     claims.UserID,
		Email:        claims.Email,
		RefreshToken: refreshToken,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
