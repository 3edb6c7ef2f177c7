package signature

import "errors"

// Sentinel errors for signature verification. Each names the first
// check that failed; callers translate any of them into an
// authorization failure.
var (
	// ErrTokenInvalid indicates the token is malformed or its
	// cryptographic signature does not verify against the key.
	ErrTokenInvalid = errors.New("signature token invalid")

	// ErrIssuedAtMissing indicates the token carries no issue time.
	ErrIssuedAtMissing = errors.New("signature token has no issue time")

	// ErrOutsideReplayWindow indicates the issue time is too far from
	// now, in either direction.
	ErrOutsideReplayWindow = errors.New("signature token outside replay window")

	// ErrMethodMismatch indicates the signed method does not match the
	// request method.
	ErrMethodMismatch = errors.New("signature method mismatch")

	// ErrURLMismatch indicates the signed URL does not match the
	// request URL.
	ErrURLMismatch = errors.New("signature url mismatch")

	// ErrBodyHashMismatch indicates the signed body hash does not match
	// the request body.
	ErrBodyHashMismatch = errors.New("signature body hash mismatch")

	// ErrPublicKeyInvalid indicates the counterparty public key could
	// not be parsed.
	ErrPublicKeyInvalid = errors.New("public key invalid")
)

// Reason returns a short stable label for a verification error,
// suitable for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrIssuedAtMissing):
		return "iat_missing"
	case errors.Is(err, ErrOutsideReplayWindow):
		return "replay_window"
	case errors.Is(err, ErrMethodMismatch):
		return "method_mismatch"
	case errors.Is(err, ErrURLMismatch):
		return "url_mismatch"
	case errors.Is(err, ErrBodyHashMismatch):
		return "body_hash_mismatch"
	case errors.Is(err, ErrPublicKeyInvalid):
		return "public_key_invalid"
	default:
		return "unknown"
	}
}
