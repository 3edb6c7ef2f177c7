package throttle

import (
	"strings"

	"github.com/google/uuid"
)

// wildcardSegment replaces identifier-shaped path segments so that
// requests addressing different entities of the same endpoint share one
// throttle key.
const wildcardSegment = "{id}"

// Key identifies one logical mutating request for similar-request
// suppression: same session, same method, same normalized path.
type Key struct {
	SessionID string
	Method    string
	Path      string
}

// NewKey builds a Key, normalizing the path.
func NewKey(sessionID, method, path string) Key {
	return Key{
		SessionID: sessionID,
		Method:    strings.ToUpper(method),
		Path:      NormalizePath(path),
	}
}

// String returns the store representation of the key.
func (k Key) String() string {
	return k.SessionID + ":" + k.Method + ":" + k.Path
}

// Endpoint returns the "{METHOD} {normalizedPath}" form used by the
// exclusion list.
func (k Key) Endpoint() string {
	return k.Method + " " + k.Path
}

// NormalizePath collapses UUID-shaped path segments to a wildcard token
// so /cards/<uuid-a> and /cards/<uuid-b> throttle as one endpoint. The
// query string, if present, is dropped.
func NormalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if _, err := uuid.Parse(segment); err == nil {
			segments[i] = wildcardSegment
		}
	}
	return strings.Join(segments, "/")
}
