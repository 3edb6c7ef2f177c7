package backend

import (
	"context"
	"net/http"
)

// IdentityClient implements Identity over the identity backend's HTTP API.
type IdentityClient struct {
	client *Client
}

// NewIdentityClient creates a new identity backend client.
func NewIdentityClient(cfg ClientConfig, opts ...ClientOption) *IdentityClient {
	if cfg.Name == "" {
		cfg.Name = "identity"
	}
	return &IdentityClient{client: NewClient(cfg, opts...)}
}

// sessionAuthRequest is the wire shape of a session authentication call.
type sessionAuthRequest struct {
	SessionID string `json:"sessionId"`
	Secret    string `json:"secret"`
}

// AuthenticateSession resolves a session by its identifier and secret.
func (c *IdentityClient) AuthenticateSession(ctx context.Context, sessionID, secret string) (*Session, error) {
	var session Session
	err := c.client.do(ctx, http.MethodPost, "/sessions/authenticate",
		&sessionAuthRequest{SessionID: sessionID, Secret: secret}, &session)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// LookupUser resolves the extended user record with settings.
func (c *IdentityClient) LookupUser(ctx context.Context, userID string) (*UserProfile, error) {
	var wire struct {
		CounterpartyID string `json:"counterpartyId"`
		Settings       struct {
			Locale string `json:"locale"`
		} `json:"settings"`
	}
	err := c.client.do(ctx, http.MethodGet, "/users/"+userID+"/settings", nil, &wire)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &UserProfile{
		CounterpartyID: wire.CounterpartyID,
		Locale:         wire.Settings.Locale,
	}, nil
}

// TouchSessionActivity updates the last-activity timestamp of a session.
func (c *IdentityClient) TouchSessionActivity(ctx context.Context, sessionID string) error {
	return c.client.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/activity", nil, nil)
}

// Ensure IdentityClient implements Identity.
var _ Identity = (*IdentityClient)(nil)
