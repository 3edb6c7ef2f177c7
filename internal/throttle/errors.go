package throttle

import "github.com/vitaliydpua/appgw/internal/apierror"

// Client-facing throttle errors.
var (
	// ErrRateLimitExceeded indicates the source address exceeded its
	// request rate.
	ErrRateLimitExceeded = apierror.TooManyRequests("TOO_MANY_REQUESTS", "rate limit exceeded")

	// ErrTooManySimilarRequests indicates an identical mutating request
	// from the same session is in flight or completed very recently.
	ErrTooManySimilarRequests = apierror.TooManyRequests("TOO_MANY_SIMILAR_REQUESTS", "similar request already in progress")
)
