package auth

import "context"

// PhoneStrategy authenticates at the Phone level: it delegates to the
// Session level and additionally requires a phone number on the session.
type PhoneStrategy struct {
	session *SessionStrategy
}

// NewPhoneStrategy creates a Phone level strategy.
func NewPhoneStrategy(session *SessionStrategy) *PhoneStrategy {
	return &PhoneStrategy{session: session}
}

// Level implements Strategy.
func (s *PhoneStrategy) Level() Level {
	return LevelPhone
}

// Authenticate implements Strategy.
func (s *PhoneStrategy) Authenticate(ctx context.Context, req *Request, creds *Credentials) (*Context, error) {
	authCtx, err := s.session.Authenticate(ctx, req, creds)
	if err != nil {
		return nil, err
	}
	if authCtx.Phone == "" {
		return nil, ErrInsufficientScope
	}
	return authCtx, nil
}

// Ensure PhoneStrategy implements Strategy.
var _ Strategy = (*PhoneStrategy)(nil)
