package auth

import (
	"fmt"

	"github.com/vitaliydpua/appgw/internal/auth/signature"
	"github.com/vitaliydpua/appgw/internal/backend"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// Chain owns one strategy per trust level. Routes select a level; the
// chain resolves it to the strategy that implements the escalation.
type Chain struct {
	strategies map[Level]Strategy
}

// ChainConfig holds the collaborators the chain needs.
type ChainConfig struct {
	Identity       backend.Identity
	Installations  backend.Installations
	Counterparties backend.Counterparties
	Verifier       *signature.Verifier
	Logger         observability.Logger
	Metrics        *observability.Metrics
}

// NewChain wires the four strategies with their delegation order:
// Phone and User wrap Session, Signature wraps User.
func NewChain(cfg ChainConfig) *Chain {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.Verifier == nil {
		cfg.Verifier = signature.NewVerifier(signature.WithLogger(cfg.Logger))
	}

	session := NewSessionStrategy(cfg.Identity, cfg.Installations, cfg.Logger)
	user := NewUserStrategy(session, cfg.Identity)
	sig := NewSignatureStrategy(user, cfg.Counterparties, cfg.Verifier,
		WithSignatureLogger(cfg.Logger),
		WithSignatureMetrics(cfg.Metrics),
	)

	return &Chain{
		strategies: map[Level]Strategy{
			LevelSession:   session,
			LevelPhone:     NewPhoneStrategy(session),
			LevelUser:      user,
			LevelSignature: sig,
		},
	}
}

// Strategy returns the strategy for the given level.
func (c *Chain) Strategy(level Level) (Strategy, error) {
	strategy, ok := c.strategies[level]
	if !ok {
		return nil, fmt.Errorf("unknown auth level %q", level)
	}
	return strategy, nil
}
