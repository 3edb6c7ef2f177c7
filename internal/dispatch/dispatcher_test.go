package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliydpua/appgw/internal/apierror"
	"github.com/vitaliydpua/appgw/internal/audit"
	"github.com/vitaliydpua/appgw/internal/auth"
	"github.com/vitaliydpua/appgw/internal/backend"
	"github.com/vitaliydpua/appgw/internal/throttle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fixture wires a dispatcher over fake backends with one provisioned
// session and user.
type fixture struct {
	dispatcher *Dispatcher
	engine     *gin.Engine
	identity   *backend.FakeIdentity
	throttle   *throttle.Service
	sink       *audit.MemorySink
}

func newFixture(t *testing.T, throttleCfg throttle.Config) *fixture {
	t.Helper()

	identity := backend.NewFakeIdentity()
	identity.AddSession("secret-1", &backend.Session{
		SessionID:      "sess-1",
		Phone:          "+380501112233",
		UserID:         "user-1",
		InstallationID: "inst-1",
		CacheUpdatedAt: 1700000000,
	})
	identity.AddUser("user-1", &backend.UserProfile{CounterpartyID: "cp-1", Locale: "uk"})

	chain := auth.NewChain(auth.ChainConfig{
		Identity:       identity,
		Installations:  backend.NewFakeInstallations(),
		Counterparties: backend.NewFakeCounterparties(),
	})

	throttleSvc := throttle.NewService(throttleCfg, nil)
	t.Cleanup(throttleSvc.Stop)

	sink := audit.NewMemorySink()

	f := &fixture{
		identity: identity,
		throttle: throttleSvc,
		sink:     sink,
	}
	f.dispatcher = New(Config{
		Chain:    chain,
		Throttle: throttleSvc,
		Audit:    audit.NewLogger(sink),
	})
	f.engine = gin.New()
	return f
}

func (f *fixture) register(t *testing.T, routes ...Route) {
	t.Helper()
	require.NoError(t, f.dispatcher.Register(f.engine, routes...))
}

// do performs a request with valid session credentials.
func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	r.SetBasicAuth("sess-1", "secret-1")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, r)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string          `json:"code"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func echoRoute(path string) Route {
	return Route{
		Method:    http.MethodGet,
		Path:      path,
		AuthLevel: auth.LevelSession,
		Handler: func(_ context.Context, req *Request) (any, error) {
			return map[string]any{"sessionId": req.Auth.SessionID}, nil
		},
	}
}

func TestDispatcher_Register(t *testing.T) {
	t.Run("valid route", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		assert.NoError(t, f.dispatcher.Register(f.engine, echoRoute("/v1/echo")))
	})

	t.Run("unknown auth level", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		route := echoRoute("/v1/echo")
		route.AuthLevel = auth.Level("root")
		assert.Error(t, f.dispatcher.Register(f.engine, route))
	})

	t.Run("missing handler", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		route := echoRoute("/v1/echo")
		route.Handler = nil
		assert.Error(t, f.dispatcher.Register(f.engine, route))
	})

	t.Run("missing method", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		route := echoRoute("/v1/echo")
		route.Method = ""
		assert.Error(t, f.dispatcher.Register(f.engine, route))
	})
}

func TestDispatcher_JSONResponse(t *testing.T) {
	f := newFixture(t, throttle.Config{})
	f.register(t, echoRoute("/v1/echo"))

	w := f.do(http.MethodGet, "/v1/echo", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"sessionId":"sess-1"}}`, w.Body.String())
}

func TestDispatcher_NoCredentials(t *testing.T) {
	f := newFixture(t, throttle.Config{})
	// A failing identity backend proves authentication is never reached.
	f.identity.Err = errors.New("identity down")
	f.register(t, echoRoute("/v1/echo"))

	r := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_CREDENTIALS", errorCode(t, w))
}

func TestDispatcher_AuthFailure(t *testing.T) {
	f := newFixture(t, throttle.Config{})
	f.register(t, echoRoute("/v1/echo"))

	r := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	r.SetBasicAuth("sess-1", "wrong")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))
}

func TestDispatcher_BackendFailureIsOpaque(t *testing.T) {
	f := newFixture(t, throttle.Config{})
	f.identity.Err = errors.New("pq: connection refused")
	f.register(t, echoRoute("/v1/echo"))

	w := f.do(http.MethodGet, "/v1/echo", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL", errorCode(t, w))
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestDispatcher_RateLimitBeforeAuth(t *testing.T) {
	f := newFixture(t, throttle.Config{
		Authenticated: throttle.SourceLimits{RPS: 1, Burst: 1},
	})
	f.register(t, echoRoute("/v1/echo"))

	w := f.do(http.MethodGet, "/v1/echo", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/v1/echo", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", errorCode(t, w))
}

func TestDispatcher_PayloadTooLarge(t *testing.T) {
	f := newFixture(t, throttle.Config{})
	f.dispatcher.maxBodyBytes = 16
	f.register(t, Route{
		Method:    http.MethodPost,
		Path:      "/v1/upload",
		AuthLevel: auth.LevelSession,
		Handler: func(context.Context, *Request) (any, error) {
			return nil, nil
		},
	})

	w := f.do(http.MethodPost, "/v1/upload", strings.Repeat("x", 64))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, w))
}

type paymentBody struct {
	Amount int    `json:"amount" binding:"required,gt=0"`
	CardID string `json:"cardId" binding:"required"`
}

func paymentRoute(handler Handler) Route {
	if handler == nil {
		handler = func(_ context.Context, req *Request) (any, error) {
			body := req.Body.(*paymentBody)
			return map[string]any{"paymentId": "pay-1", "cardId": body.CardID}, nil
		}
	}
	return Route{
		Method:    http.MethodPost,
		Path:      "/v1/payments",
		AuthLevel: auth.LevelSession,
		Input: &InputSchema{
			Body: func() any { return &paymentBody{} },
		},
		Audit:   &AuditSpec{Category: "PAYMENTS", Action: "CREATE"},
		Handler: handler,
	}
}

func TestDispatcher_BodyValidation(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(nil))

		w := f.do(http.MethodPost, "/v1/payments", `{"amount":100,"cardId":"card-7"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing required field", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(nil))

		w := f.do(http.MethodPost, "/v1/payments", `{"cardId":"card-7"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)

		var envelope struct {
			Error struct {
				Code    string            `json:"code"`
				Details ValidationDetails `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Equal(t, "VALIDATION_FAILED", envelope.Error.Code)
		assert.Equal(t, "body", envelope.Error.Details.In)
		assert.Contains(t, envelope.Error.Details.Fields, "amount")
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(nil))

		w := f.do(http.MethodPost, "/v1/payments", `{"amount":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))
	})

	t.Run("wrong field type names the field", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(nil))

		w := f.do(http.MethodPost, "/v1/payments", `{"amount":"ten","cardId":"card-7"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var envelope struct {
			Error struct {
				Details ValidationDetails `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Contains(t, envelope.Error.Details.Fields, "amount")
	})
}

func TestDispatcher_QueryValidation(t *testing.T) {
	type listQuery struct {
		Limit int `form:"limit" binding:"required,min=1,max=100"`
	}

	f := newFixture(t, throttle.Config{})
	f.register(t, Route{
		Method:    http.MethodGet,
		Path:      "/v1/history",
		AuthLevel: auth.LevelSession,
		Input: &InputSchema{
			Query: func() any { return &listQuery{} },
		},
		Handler: func(_ context.Context, req *Request) (any, error) {
			return map[string]any{"limit": req.Query.(*listQuery).Limit}, nil
		},
	})

	w := f.do(http.MethodGet, "/v1/history?limit=10", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/v1/history?limit=500", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))
}

func TestDispatcher_SimilarRequestSuppression(t *testing.T) {
	f := newFixture(t, throttle.Config{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once
	f.register(t, paymentRoute(func(context.Context, *Request) (any, error) {
		enteredOnce.Do(func() { close(entered) })
		<-release
		return map[string]any{"paymentId": "pay-1"}, nil
	}))

	body := `{"amount":100,"cardId":"card-7"}`

	var wg sync.WaitGroup
	wg.Add(1)
	var first *httptest.ResponseRecorder
	go func() {
		defer wg.Done()
		first = f.do(http.MethodPost, "/v1/payments", body)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first request never reached the handler")
	}

	// Duplicate while the first request is in flight.
	dup := f.do(http.MethodPost, "/v1/payments", body)
	assert.Equal(t, http.StatusTooManyRequests, dup.Code)
	assert.Equal(t, "TOO_MANY_SIMILAR_REQUESTS", errorCode(t, dup))

	// The rejection must not have released the winner's slot.
	dup = f.do(http.MethodPost, "/v1/payments", body)
	assert.Equal(t, http.StatusTooManyRequests, dup.Code)

	close(release)
	wg.Wait()
	require.Equal(t, http.StatusOK, first.Code)

	// Completion released the slot.
	again := f.do(http.MethodPost, "/v1/payments", body)
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestDispatcher_SlotReleasedOnHandlerError(t *testing.T) {
	f := newFixture(t, throttle.Config{})
	f.register(t, paymentRoute(func(context.Context, *Request) (any, error) {
		return nil, apierror.NotFound("CARD_NOT_FOUND", "card not found")
	}))

	body := `{"amount":100,"cardId":"card-7"}`

	w := f.do(http.MethodPost, "/v1/payments", body)
	require.Equal(t, http.StatusNotFound, w.Code)

	// The slot is free for the retry.
	w = f.do(http.MethodPost, "/v1/payments", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CARD_NOT_FOUND", errorCode(t, w))
}

func TestDispatcher_Audit(t *testing.T) {
	t.Run("success record with merged entity ids", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(nil))

		w := f.do(http.MethodPost, "/v1/payments", `{"amount":100,"cardId":"card-7"}`)
		require.Equal(t, http.StatusOK, w.Code)

		records := f.sink.Records()
		require.Len(t, records, 1)
		record := records[0]
		assert.Equal(t, "PAYMENTS", record.Category)
		assert.Equal(t, "CREATE", record.Action)
		assert.Equal(t, "sess-1", record.SessionID)
		assert.Equal(t, "inst-1", record.InstallationID)
		assert.Equal(t, "user-1", record.UserID)
		assert.Equal(t, audit.ResultSuccess, record.Result)

		// card-7 from the request, pay-1 from the response.
		assert.ElementsMatch(t, []string{"card-7", "pay-1"}, record.EntityIDs)
	})

	t.Run("error record carries the error code", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(func(context.Context, *Request) (any, error) {
			return nil, apierror.Forbidden("COUNTERPARTY_NOT_ACTIVE", "not active")
		}))

		w := f.do(http.MethodPost, "/v1/payments", `{"amount":100,"cardId":"card-7"}`)
		require.Equal(t, http.StatusForbidden, w.Code)

		records := f.sink.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultError, records[0].Result)
		assert.Equal(t, "COUNTERPARTY_NOT_ACTIVE", records[0].Error)
	})

	t.Run("validation failure closes the record", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, paymentRoute(nil))

		w := f.do(http.MethodPost, "/v1/payments", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		records := f.sink.Records()
		require.Len(t, records, 1)
		assert.Equal(t, audit.ResultError, records[0].Result)
		assert.Equal(t, "VALIDATION_FAILED", records[0].Error)
	})

	t.Run("route without audit spec writes nothing", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, echoRoute("/v1/echo"))

		w := f.do(http.MethodGet, "/v1/echo", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, f.sink.Records())
	})
}

func TestDispatcher_RedirectMode(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, Route{
			Method:       http.MethodGet,
			Path:         "/v1/statement",
			AuthLevel:    auth.LevelSession,
			ResponseMode: ResponseRedirect,
			Handler: func(context.Context, *Request) (any, error) {
				return map[string]any{"redirectLink": "https://cdn.example.com/doc.pdf"}, nil
			},
		})

		w := f.do(http.MethodGet, "/v1/statement", "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://cdn.example.com/doc.pdf", w.Header().Get("Location"))
	})

	t.Run("missing link", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, Route{
			Method:       http.MethodGet,
			Path:         "/v1/statement",
			AuthLevel:    auth.LevelSession,
			ResponseMode: ResponseRedirect,
			Handler: func(context.Context, *Request) (any, error) {
				return map[string]any{}, nil
			},
		})

		w := f.do(http.MethodGet, "/v1/statement", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "REDIRECT_TARGET_MISSING", errorCode(t, w))
	})
}

func TestDispatcher_FileMode(t *testing.T) {
	t.Run("sends and removes the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

		f := newFixture(t, throttle.Config{})
		f.register(t, Route{
			Method:       http.MethodGet,
			Path:         "/v1/report",
			AuthLevel:    auth.LevelSession,
			ResponseMode: ResponseFile,
			Handler: func(context.Context, *Request) (any, error) {
				return &FileResult{Path: path, Filename: "report.csv", DeleteAfterSend: true}, nil
			},
		})

		w := f.do(http.MethodGet, "/v1/report", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "a,b\n1,2\n", w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Disposition"), "report.csv")

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t, throttle.Config{})
		f.register(t, Route{
			Method:       http.MethodGet,
			Path:         "/v1/report",
			AuthLevel:    auth.LevelSession,
			ResponseMode: ResponseFile,
			Handler: func(context.Context, *Request) (any, error) {
				return &FileResult{Path: "/nonexistent/report.csv"}, nil
			},
		})

		w := f.do(http.MethodGet, "/v1/report", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "FILE_NOT_FOUND", errorCode(t, w))
	})
}

func TestDispatcher_StreamMode(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(upstream.Close)

	f := newFixture(t, throttle.Config{})
	f.register(t, Route{
		Method:       http.MethodGet,
		Path:         "/v1/avatar",
		AuthLevel:    auth.LevelSession,
		ResponseMode: ResponseStream,
		Handler: func(context.Context, *Request) (any, error) {
			return &StreamResult{URL: upstream.URL}, nil
		},
	})

	w := f.do(http.MethodGet, "/v1/avatar", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestDispatcher_ConditionalHeaders(t *testing.T) {
	result := map[string]any{
		"userId": "user-1",
		"phone":  "+380501112233",
	}

	f := newFixture(t, throttle.Config{})
	f.register(t, Route{
		Method:          http.MethodGet,
		Path:            "/v1/me",
		AuthLevel:       auth.LevelSession,
		CacheHashFields: []string{"userId", "phone"},
		HistoryCursor:   true,
		Handler: func(context.Context, *Request) (any, error) {
			return result, nil
		},
	})

	w := f.do(http.MethodGet, "/v1/me", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, CacheHash(result, []string{"userId", "phone"}), w.Header().Get("ETag"))
	assert.Equal(t, "user-1.1700000000", w.Header().Get(HeaderHistoryCursor))
}
