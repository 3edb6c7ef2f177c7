package auth

import (
	"context"

	"github.com/vitaliydpua/appgw/internal/auth/signature"
	"github.com/vitaliydpua/appgw/internal/backend"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// SignatureStrategy authenticates at the Signature level: it delegates
// to the User level, requires an eligible counterparty, and verifies
// the signed request token against the counterparty's public key.
type SignatureStrategy struct {
	user           *UserStrategy
	counterparties backend.Counterparties
	verifier       *signature.Verifier
	logger         observability.Logger
	metrics        *observability.Metrics
}

// SignatureStrategyOption is a functional option for the strategy.
type SignatureStrategyOption func(*SignatureStrategy)

// WithSignatureLogger sets the logger for the strategy.
func WithSignatureLogger(logger observability.Logger) SignatureStrategyOption {
	return func(s *SignatureStrategy) {
		s.logger = logger
	}
}

// WithSignatureMetrics sets the metrics sink for the strategy.
func WithSignatureMetrics(metrics *observability.Metrics) SignatureStrategyOption {
	return func(s *SignatureStrategy) {
		s.metrics = metrics
	}
}

// NewSignatureStrategy creates a Signature level strategy.
func NewSignatureStrategy(
	user *UserStrategy,
	counterparties backend.Counterparties,
	verifier *signature.Verifier,
	opts ...SignatureStrategyOption,
) *SignatureStrategy {
	s := &SignatureStrategy{
		user:           user,
		counterparties: counterparties,
		verifier:       verifier,
		logger:         observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Level implements Strategy.
func (s *SignatureStrategy) Level() Level {
	return LevelSignature
}

// Authenticate implements Strategy.
func (s *SignatureStrategy) Authenticate(ctx context.Context, req *Request, creds *Credentials) (*Context, error) {
	authCtx, err := s.user.Authenticate(ctx, req, creds)
	if err != nil {
		return nil, err
	}
	if authCtx.CounterpartyID == "" {
		return nil, ErrNotCounterparty
	}
	if req.Signature == "" {
		return nil, ErrSignatureMissing
	}

	counterparty, err := s.counterparties.Lookup(ctx, authCtx.CounterpartyID)
	if err != nil {
		return nil, err
	}
	if !counterparty.Eligible() {
		return nil, ErrCounterpartyNotActive
	}

	publicKey, err := signature.ParsePublicKey(counterparty.PublicKeyPEM)
	if err != nil {
		s.logger.WithContext(ctx).Error("counterparty public key unusable",
			observability.String("counterparty_id", authCtx.CounterpartyID),
			observability.Error(err),
		)
		return nil, ErrSignatureWrong
	}

	attrs := &signature.RequestAttributes{
		Method: req.Method,
		URL:    req.RequestURI,
		Body:   req.Body,
	}
	if err := s.verifier.Verify(ctx, attrs, req.Signature, publicKey); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveSignatureFailure(signature.Reason(err))
		}
		return nil, ErrSignatureWrong.WithCause(err)
	}

	authCtx.PublicKey = publicKey
	authCtx.RequestToken = req.Signature

	return authCtx, nil
}

// Ensure SignatureStrategy implements Strategy.
var _ Strategy = (*SignatureStrategy)(nil)
