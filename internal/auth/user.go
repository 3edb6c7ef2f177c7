package auth

import (
	"context"

	"github.com/vitaliydpua/appgw/internal/backend"
)

// UserStrategy authenticates at the User level: it delegates to the
// Session level, requires a resolvable user, and enriches the context
// with the user's counterparty identifier and locale.
type UserStrategy struct {
	session  *SessionStrategy
	identity backend.Identity
}

// NewUserStrategy creates a User level strategy.
func NewUserStrategy(session *SessionStrategy, identity backend.Identity) *UserStrategy {
	return &UserStrategy{session: session, identity: identity}
}

// Level implements Strategy.
func (s *UserStrategy) Level() Level {
	return LevelUser
}

// Authenticate implements Strategy.
func (s *UserStrategy) Authenticate(ctx context.Context, req *Request, creds *Credentials) (*Context, error) {
	authCtx, err := s.session.Authenticate(ctx, req, creds)
	if err != nil {
		return nil, err
	}
	if authCtx.UserID == "" {
		return nil, ErrInsufficientScope
	}

	profile, err := s.identity.LookupUser(ctx, authCtx.UserID)
	if err != nil {
		return nil, err
	}
	authCtx.CounterpartyID = profile.CounterpartyID
	authCtx.Locale = profile.Locale

	return authCtx, nil
}

// Ensure UserStrategy implements Strategy.
var _ Strategy = (*UserStrategy)(nil)
