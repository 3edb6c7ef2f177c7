package dispatch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/vitaliydpua/appgw/internal/apierror"
	"github.com/vitaliydpua/appgw/internal/audit"
	"github.com/vitaliydpua/appgw/internal/auth"
	"github.com/vitaliydpua/appgw/internal/observability"
	"github.com/vitaliydpua/appgw/internal/throttle"
)

// DefaultMaxBodyBytes bounds how much request body is read.
const DefaultMaxBodyBytes int64 = 1 << 20

// Dispatcher runs every registered route through the admission
// pipeline: extract credentials, pre-throttle, authenticate, reserve
// the similar-request slot, validate input, invoke the handler, close
// the audit record, release the slot, and shape the response. Stages
// run strictly in that order.
type Dispatcher struct {
	chain        *auth.Chain
	throttle     *throttle.Service
	audit        audit.Logger
	validator    *validator.Validate
	logger       observability.Logger
	metrics      *observability.Metrics
	streamClient *http.Client
	maxBodyBytes int64
}

// Config holds the dispatcher's collaborators.
type Config struct {
	Chain    *auth.Chain
	Throttle *throttle.Service
	Audit    audit.Logger
	Logger   observability.Logger
	Metrics  *observability.Metrics

	// MaxBodyBytes bounds request body size. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Dispatcher{
		chain:        cfg.Chain,
		throttle:     cfg.Throttle,
		audit:        cfg.Audit,
		validator:    newValidator(),
		logger:       logger,
		metrics:      cfg.Metrics,
		streamClient: &http.Client{},
		maxBodyBytes: maxBody,
	}
}

// Register binds the route descriptors onto the router. Each route is
// registered exactly once; an invalid descriptor fails registration.
func (d *Dispatcher) Register(router gin.IRouter, routes ...Route) error {
	for i := range routes {
		route := routes[i]
		if err := route.validate(); err != nil {
			return err
		}
		strategy, err := d.chain.Strategy(route.AuthLevel)
		if err != nil {
			return fmt.Errorf("route %s %s: %w", route.Method, route.Path, err)
		}
		router.Handle(route.Method, route.Path, d.handle(&route, strategy))
	}
	return nil
}

// handle builds the pipeline handler for one route.
func (d *Dispatcher) handle(route *Route, strategy auth.Strategy) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()

		rawBody, err := d.readBody(c)
		if err != nil {
			d.writeError(c, apierror.FromError(err))
			return
		}

		creds, credsErr := auth.ExtractCredentials(c.Request)

		// Pre-throttle runs before authentication, on whatever identity
		// is available.
		if err := d.throttle.AdmitSource(ctx, clientIP, credsErr == nil); err != nil {
			d.writeError(c, apierror.FromError(err))
			return
		}
		if credsErr != nil {
			d.writeError(c, apierror.FromError(credsErr))
			return
		}

		authReq := auth.NewRequest(c.Request, rawBody)
		authCtx, err := strategy.Authenticate(ctx, authReq, creds)
		if d.metrics != nil {
			d.metrics.ObserveAuth(string(route.AuthLevel), err == nil)
		}
		if err != nil {
			d.writeError(c, apierror.FromError(err))
			return
		}

		// A throttle rejection here reserved nothing, so the error path
		// must not release.
		reserved, err := d.throttle.ReserveSlot(ctx, authCtx.SessionID, c.Request.Method, c.Request.URL.Path)
		if err != nil {
			d.writeError(c, apierror.FromError(err))
			return
		}

		logID := d.openAudit(c, route, authCtx, rawBody)

		req := &Request{
			Auth:     authCtx,
			RawBody:  rawBody,
			ClientIP: clientIP,
		}
		if err := d.bindInput(c, route.Input, rawBody, req); err != nil {
			d.finish(c, route, authCtx, logID, reserved, nil, err)
			return
		}

		result, err := route.Handler(ctx, req)
		d.finish(c, route, authCtx, logID, reserved, result, err)
	}
}

// finish closes the audit record, releases the throttle slot, and
// writes the response or the error envelope, in that order.
func (d *Dispatcher) finish(
	c *gin.Context,
	route *Route,
	authCtx *auth.Context,
	logID string,
	reserved bool,
	result any,
	err error,
) {
	ctx := c.Request.Context()

	if logID != "" {
		if err != nil {
			d.audit.Close(ctx, logID, audit.ResultError, nil, apierror.FromError(err).Code)
		} else {
			responseIDs := audit.CollectEntityIDs(topLevelValues(result))
			d.audit.Close(ctx, logID, audit.ResultSuccess, responseIDs, "")
		}
	}

	if reserved {
		d.throttle.ReleaseSlot(ctx, authCtx.SessionID, c.Request.Method, c.Request.URL.Path)
	}

	if err != nil {
		d.writeError(c, apierror.FromError(err))
		return
	}
	d.respond(c, route, authCtx, result)
}

// openAudit opens an audit record when the route declares auditing and
// the trust context carries an installation and session identity.
func (d *Dispatcher) openAudit(c *gin.Context, route *Route, authCtx *auth.Context, rawBody []byte) string {
	if d.audit == nil || route.Audit == nil {
		return ""
	}
	if authCtx.InstallationID == "" || authCtx.SessionID == "" {
		return ""
	}

	record := &audit.Record{
		IP:             c.ClientIP(),
		InstallationID: authCtx.InstallationID,
		SessionID:      authCtx.SessionID,
		Phone:          authCtx.Phone,
		UserID:         authCtx.UserID,
		CounterpartyID: authCtx.CounterpartyID,
		Category:       route.Audit.Category,
		Action:         route.Audit.Action,
		EntityIDs:      audit.CollectEntityIDs(d.requestIDSources(c, rawBody)...),
	}
	return d.audit.Open(c.Request.Context(), record)
}

// requestIDSources collects the request-side shapes scanned for
// correlation identifiers: body, query and path parameters.
func (d *Dispatcher) requestIDSources(c *gin.Context, rawBody []byte) []map[string]any {
	sources := make([]map[string]any, 0, 3)

	if len(rawBody) > 0 {
		var body map[string]any
		if err := json.Unmarshal(rawBody, &body); err == nil {
			sources = append(sources, body)
		}
	}

	query := make(map[string]any)
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}
	sources = append(sources, query)

	params := make(map[string]any, len(c.Params))
	for _, param := range c.Params {
		params[param.Key] = param.Value
	}
	sources = append(sources, params)

	return sources
}

// readBody reads the raw request body up to the configured bound. The
// bytes stay available to the signature verifier, the input validator
// and the audit correlator.
func (d *Dispatcher) readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, d.maxBodyBytes+1))
	if err != nil {
		return nil, apierror.BadRequest("BODY_UNREADABLE", "request body could not be read").WithCause(err)
	}
	if int64(len(body)) > d.maxBodyBytes {
		return nil, apierror.New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
	}
	return body, nil
}
