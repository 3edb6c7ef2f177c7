// Package backend defines the collaborator interfaces consumed by the
// admission pipeline and their HTTP client implementations. The wire
// format of the backend RPC protocol is owned by the backends; this
// package only maps their responses onto the types the pipeline needs.
package backend

import (
	"context"
	"time"
)

// Session is the identity record resolved for a session credential.
type Session struct {
	SessionID      string `json:"sessionId"`
	Phone          string `json:"phone,omitempty"`
	UserID         string `json:"userId,omitempty"`
	InstallationID string `json:"installationId,omitempty"`
	CacheUpdatedAt int64  `json:"cacheUpdatedAt,omitempty"`
}

// UserProfile is the extended user record with settings.
type UserProfile struct {
	CounterpartyID string `json:"counterpartyId,omitempty"`
	Locale         string `json:"lg,omitempty"`
}

// CounterpartyStatus is the lifecycle status of a counterparty.
type CounterpartyStatus string

// Counterparty statuses relevant to request admission.
const (
	CounterpartyActive       CounterpartyStatus = "ACTIVE"
	CounterpartyDebitBlocked CounterpartyStatus = "DEBIT_BLOCKED"
	CounterpartyBlocked      CounterpartyStatus = "BLOCKED"
	CounterpartyClosed       CounterpartyStatus = "CLOSED"
)

// Counterparty is the financial-identity record linked to a user.
type Counterparty struct {
	CounterpartyID string             `json:"counterpartyId"`
	Status         CounterpartyStatus `json:"status"`
	ActivatedAt    time.Time          `json:"activatedAt,omitempty"`
	PublicKeyPEM   string             `json:"publicKey,omitempty"`
}

// Activated reports whether the counterparty has completed activation.
func (c *Counterparty) Activated() bool {
	return !c.ActivatedAt.IsZero()
}

// Eligible reports whether the counterparty may perform signed operations.
func (c *Counterparty) Eligible() bool {
	if !c.Activated() {
		return false
	}
	return c.Status == CounterpartyActive || c.Status == CounterpartyDebitBlocked
}

// Identity resolves sessions and users against the identity backend.
type Identity interface {
	// AuthenticateSession resolves a session by its identifier and secret.
	AuthenticateSession(ctx context.Context, sessionID, secret string) (*Session, error)

	// LookupUser resolves the extended user record with settings.
	LookupUser(ctx context.Context, userID string) (*UserProfile, error)

	// TouchSessionActivity updates the last-activity timestamp of a session.
	TouchSessionActivity(ctx context.Context, sessionID string) error
}

// Installations checks installation records against the installation backend.
type Installations interface {
	// CheckVersion verifies the installation's app version is supported.
	// Unsupported versions fail with *UnsupportedVersionError.
	CheckVersion(ctx context.Context, installationID string) error
}

// Counterparties resolves counterparty records.
type Counterparties interface {
	// Lookup resolves a counterparty by its identifier.
	Lookup(ctx context.Context, counterpartyID string) (*Counterparty, error)
}
