// Package dispatch binds declared routes to the admission pipeline:
// credential extraction, throttling, the authentication chain, input
// validation, handler invocation, audit logging, and response shaping.
package dispatch

import (
	"context"
	"fmt"

	"github.com/vitaliydpua/appgw/internal/auth"
)

// ResponseMode selects how a handler result is written to the client.
type ResponseMode string

// Response modes.
const (
	// ResponseJSON wraps the result in a {"data": ...} envelope.
	ResponseJSON ResponseMode = "json"

	// ResponseRedirect issues a 302 to the result's redirect link.
	ResponseRedirect ResponseMode = "redirect"

	// ResponseFile streams a file from disk.
	ResponseFile ResponseMode = "file"

	// ResponseStream proxies an upstream resource to the client.
	ResponseStream ResponseMode = "stream"
)

// AuditSpec declares audit logging for a route.
type AuditSpec struct {
	// Category classifies the business domain of the route.
	Category string

	// Action names the operation.
	Action string
}

// InputSchema declares the validated input shapes of a route. Each
// factory returns a fresh struct whose binding tags drive validation;
// nil factories skip that location.
type InputSchema struct {
	Body    func() any
	Query   func() any
	Params  func() any
	Headers func() any
}

// Request is the validated request handed to a business handler.
type Request struct {
	// Auth is the trust context accumulated by the authentication chain.
	Auth *auth.Context

	// Bound inputs, present when the route declared a schema for the
	// location.
	Body    any
	Query   any
	Params  any
	Headers any

	// RawBody is the unparsed request body.
	RawBody []byte

	// ClientIP is the resolved client address.
	ClientIP string
}

// Handler is a business handler invoked after admission.
type Handler func(ctx context.Context, req *Request) (any, error)

// Route is the static descriptor registered once at startup.
type Route struct {
	// Method and Path bind the route; Path uses gin parameter syntax.
	Method string
	Path   string

	// AuthLevel is the single trust level this route requires.
	AuthLevel auth.Level

	// Input declares the validated input shapes, or nil.
	Input *InputSchema

	// ResponseMode selects response shaping; empty means ResponseJSON.
	ResponseMode ResponseMode

	// Audit declares audit logging, or nil.
	Audit *AuditSpec

	// CacheHashFields opts into the ETag header computed over these
	// top-level result fields.
	CacheHashFields []string

	// HistoryCursor opts into the X-History-Changes-Id header.
	HistoryCursor bool

	// Handler is the business handler.
	Handler Handler
}

// validate checks the descriptor is complete.
func (r *Route) validate() error {
	if r.Method == "" || r.Path == "" {
		return fmt.Errorf("route %s %s: method and path are required", r.Method, r.Path)
	}
	if !r.AuthLevel.Valid() {
		return fmt.Errorf("route %s %s: unknown auth level %q", r.Method, r.Path, r.AuthLevel)
	}
	if r.Handler == nil {
		return fmt.Errorf("route %s %s: handler is required", r.Method, r.Path)
	}
	return nil
}

// mode returns the effective response mode.
func (r *Route) mode() ResponseMode {
	if r.ResponseMode == "" {
		return ResponseJSON
	}
	return r.ResponseMode
}
