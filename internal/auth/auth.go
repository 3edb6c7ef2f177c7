// Package auth implements the layered authentication chain of the
// admission gateway. Four trust levels exist: Session, Phone, User and
// Signature. Phone and User wrap Session; Signature wraps User. A route
// declares the single level it requires; the escalation order is
// internal to each strategy.
package auth

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"
)

// Request headers consumed by the authentication chain.
const (
	// HeaderInstallationID carries the client installation identifier.
	HeaderInstallationID = "X-Installation-Id"

	// HeaderSignature carries the signed request token.
	HeaderSignature = "X-Signature"
)

// Level is the trust tier a route requires.
type Level string

// Trust levels, lowest to highest.
const (
	LevelSession   Level = "session"
	LevelPhone     Level = "phone"
	LevelUser      Level = "user"
	LevelSignature Level = "signature"
)

// Valid reports whether the level is one of the known tiers.
func (l Level) Valid() bool {
	switch l {
	case LevelSession, LevelPhone, LevelUser, LevelSignature:
		return true
	}
	return false
}

// Credentials is the (name, secret) pair extracted from the
// authorization header. Name doubles as the session identifier.
type Credentials struct {
	Name   string
	Secret string
}

// Request carries the request facts the chain needs. It is built once
// per request so strategies never touch the HTTP layer directly.
type Request struct {
	// Method is the HTTP method.
	Method string

	// RequestURI is the full original path including the query string.
	RequestURI string

	// InstallationID is the value of the X-Installation-Id header.
	InstallationID string

	// Signature is the value of the X-Signature header.
	Signature string

	// Body is the raw request body.
	Body []byte
}

// NewRequest builds a Request from an HTTP request and its raw body.
// The body must have been read beforehand so it stays available to
// both the signature verifier and the input validator.
func NewRequest(r *http.Request, body []byte) *Request {
	return &Request{
		Method:         r.Method,
		RequestURI:     r.URL.RequestURI(),
		InstallationID: strings.TrimSpace(r.Header.Get(HeaderInstallationID)),
		Signature:      strings.TrimSpace(r.Header.Get(HeaderSignature)),
		Body:           body,
	}
}

// Context is the accumulated trust record for one request. Fields grow
// monotonically as the request passes up the chain; the record is
// request-scoped and never persisted.
type Context struct {
	// Set by the Session level.
	SessionID      string
	Phone          string
	UserID         string
	InstallationID string
	CacheUpdatedAt int64

	// Set by the User level.
	CounterpartyID string
	Locale         string

	// Set by the Signature level.
	PublicKey    *rsa.PublicKey
	RequestToken string
}

// Strategy authenticates a request at one trust level.
type Strategy interface {
	// Level returns the trust level this strategy provides.
	Level() Level

	// Authenticate verifies the request and returns the accumulated
	// trust context, or fails without returning a context.
	Authenticate(ctx context.Context, req *Request, creds *Credentials) (*Context, error)
}

// ExtractCredentials pulls the (name, secret) pair out of the standard
// authorization header. Pure parsing, no side effects.
func ExtractCredentials(r *http.Request) (*Credentials, error) {
	name, secret, ok := r.BasicAuth()
	if !ok {
		return nil, ErrNoCredentials
	}
	return &Credentials{Name: name, Secret: secret}, nil
}
