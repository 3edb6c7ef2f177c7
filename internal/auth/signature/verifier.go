// Package signature verifies signed request tokens for the highest
// trust level of the authentication chain. A token is a JWS bound to
// the exact request: its payload names the HTTP method, the original
// URL, a hash of the raw body, and the issue time. Binding the token to
// all four prevents replaying a captured token against a different
// operation or with a tampered payload.
package signature

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// ReplayWindow is the maximum allowed distance between a token's issue
// time and the verification time, in either direction.
const ReplayWindow = 60 * time.Second

// Claim names carried in the signed token payload.
const (
	ClaimMethod   = "method"
	ClaimURL      = "url"
	ClaimBodyHash = "bodyHash"
)

// RequestAttributes are the request facts a token must be bound to.
type RequestAttributes struct {
	// Method is the HTTP method of the request.
	Method string

	// URL is the full original path including the query string.
	URL string

	// Body is the raw request body. Empty bodies hash the empty string.
	Body []byte
}

// Verifier verifies signed request tokens against a counterparty's
// public key.
type Verifier struct {
	clock  func() time.Time
	logger observability.Logger
}

// Option is a functional option for the verifier.
type Option func(*Verifier)

// WithClock sets the clock used for replay window evaluation.
func WithClock(clock func() time.Time) Option {
	return func(v *Verifier) {
		v.clock = clock
	}
}

// WithLogger sets the logger for the verifier.
func WithLogger(logger observability.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a new signature verifier.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		clock:  time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the token against the public key and the request
// attributes. All checks are mandatory and short-circuit on the first
// failure.
func (v *Verifier) Verify(ctx context.Context, attrs *RequestAttributes, token string, key *rsa.PublicKey) error {
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.RS256, key),
		jwt.WithValidate(false),
	)
	if err != nil {
		v.logger.WithContext(ctx).Warn("signature token rejected",
			observability.Error(err),
		)
		return ErrTokenInvalid
	}

	issuedAt, ok := parsed.Get(jwt.IssuedAtKey)
	if !ok {
		return ErrIssuedAtMissing
	}
	iat, ok := issuedAt.(time.Time)
	if !ok {
		return ErrIssuedAtMissing
	}

	skew := v.clock().Sub(iat)
	if skew < 0 {
		skew = -skew
	}
	if skew > ReplayWindow {
		return ErrOutsideReplayWindow
	}

	if !strings.EqualFold(stringClaim(parsed, ClaimMethod), attrs.Method) {
		return ErrMethodMismatch
	}

	if stringClaim(parsed, ClaimURL) != attrs.URL {
		return ErrURLMismatch
	}

	if stringClaim(parsed, ClaimBodyHash) != BodyHash(attrs.Body) {
		return ErrBodyHashMismatch
	}

	return nil
}

// BodyHash computes the canonical body hash: upper-case hex SHA-256 of
// the raw body bytes.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// stringClaim returns the named private claim as a string, or empty.
func stringClaim(token jwt.Token, name string) string {
	value, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// ParsePublicKey parses a PEM-encoded PKIX RSA public key.
func ParsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, ErrPublicKeyInvalid
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrPublicKeyInvalid
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrPublicKeyInvalid
	}
	return key, nil
}
