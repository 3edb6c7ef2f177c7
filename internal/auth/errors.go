package auth

import "github.com/vitaliydpua/appgw/internal/apierror"

// Client-facing authentication and authorization errors. Each value is
// an *apierror.Error sentinel; matching works through errors.Is on the
// error code.
var (
	// ErrNoCredentials indicates the authorization header is absent or
	// malformed.
	ErrNoCredentials = apierror.Unauthorized("NO_CREDENTIALS", "no credentials provided")

	// ErrSessionNotFound indicates no session matches the credentials.
	ErrSessionNotFound = apierror.Unauthorized("SESSION_NOT_FOUND", "session not found")

	// ErrUnsupportedVersion indicates the installation's app version is
	// below the supported minimum. Version requirement details are
	// attached when known.
	ErrUnsupportedVersion = apierror.Unauthorized("UNSUPPORTED_VERSION", "app version is not supported")

	// ErrInsufficientScope indicates the session lacks an attribute the
	// requested trust level requires.
	ErrInsufficientScope = apierror.Forbidden("INSUFFICIENT_SCOPE", "insufficient scope for this operation")

	// ErrNotCounterparty indicates the user has no counterparty record.
	ErrNotCounterparty = apierror.Forbidden("NOT_COUNTERPARTY", "user is not a counterparty")

	// ErrCounterpartyNotActive indicates the counterparty's status does
	// not permit signed operations.
	ErrCounterpartyNotActive = apierror.Forbidden("COUNTERPARTY_NOT_ACTIVE", "counterparty is not active")

	// ErrSignatureMissing indicates the signature header is absent on a
	// route that requires it.
	ErrSignatureMissing = apierror.Forbidden("SIGNATURE_MISSING", "signature header is missing")

	// ErrSignatureWrong indicates the signed request token failed
	// verification.
	ErrSignatureWrong = apierror.Forbidden("SIGNATURE_WRONG", "request signature verification failed")
)
