package auth

import (
	"context"
	"errors"

	"github.com/vitaliydpua/appgw/internal/backend"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// SessionStrategy authenticates at the Session level: it resolves the
// session against the identity backend, enforces the minimum supported
// app version of the installation, and touches session activity.
type SessionStrategy struct {
	identity      backend.Identity
	installations backend.Installations
	logger        observability.Logger
}

// NewSessionStrategy creates a Session level strategy.
func NewSessionStrategy(
	identity backend.Identity,
	installations backend.Installations,
	logger observability.Logger,
) *SessionStrategy {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &SessionStrategy{
		identity:      identity,
		installations: installations,
		logger:        logger,
	}
}

// Level implements Strategy.
func (s *SessionStrategy) Level() Level {
	return LevelSession
}

// Authenticate implements Strategy. When the request declares an
// installation identifier the version check runs before the session
// lookup; otherwise it runs after, against the session's resolved
// installation.
func (s *SessionStrategy) Authenticate(ctx context.Context, req *Request, creds *Credentials) (*Context, error) {
	if creds == nil {
		return nil, ErrNoCredentials
	}

	if req.InstallationID != "" {
		if err := s.checkVersion(ctx, req.InstallationID); err != nil {
			return nil, err
		}
	}

	session, err := s.identity.AuthenticateSession(ctx, creds.Name, creds.Secret)
	if err != nil {
		if errors.Is(err, backend.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if req.InstallationID == "" && session.InstallationID != "" {
		if err := s.checkVersion(ctx, session.InstallationID); err != nil {
			return nil, err
		}
	}

	if err := s.identity.TouchSessionActivity(ctx, session.SessionID); err != nil {
		// Activity tracking is best effort; the session itself is valid.
		s.logger.WithContext(ctx).Warn("session activity touch failed",
			observability.String("session_id", session.SessionID),
			observability.Error(err),
		)
	}

	return &Context{
		SessionID:      session.SessionID,
		Phone:          session.Phone,
		UserID:         session.UserID,
		InstallationID: session.InstallationID,
		CacheUpdatedAt: session.CacheUpdatedAt,
	}, nil
}

// checkVersion maps an installation version failure onto the
// client-facing unsupported-version error with requirement details.
func (s *SessionStrategy) checkVersion(ctx context.Context, installationID string) error {
	err := s.installations.CheckVersion(ctx, installationID)
	if err == nil {
		return nil
	}
	var versionErr *backend.UnsupportedVersionError
	if errors.As(err, &versionErr) {
		return ErrUnsupportedVersion.WithDetails(versionErr.Requirement)
	}
	return err
}

// Ensure SessionStrategy implements Strategy.
var _ Strategy = (*SessionStrategy)(nil)
