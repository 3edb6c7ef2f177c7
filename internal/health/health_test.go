package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func probeEngine(checker *Checker) *gin.Engine {
	engine := gin.New()
	engine.GET("/healthz", checker.HealthHandler())
	engine.GET("/readyz", checker.ReadinessHandler())
	return engine
}

func TestChecker_Health(t *testing.T) {
	checker := NewChecker("1.2.3")
	engine := probeEngine(checker)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.Contains(t, w.Body.String(), `"1.2.3"`)
}

func TestChecker_Readiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		checker := NewChecker("dev")
		checker.Register("ok", func(context.Context) error { return nil })
		engine := probeEngine(checker)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("failing check yields 503", func(t *testing.T) {
		checker := NewChecker("dev")
		checker.Register("ok", func(context.Context) error { return nil })
		checker.Register("down", func(context.Context) error { return errors.New("no route to host") })
		engine := probeEngine(checker)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "no route to host")
	})

	t.Run("draining yields 503 without probing", func(t *testing.T) {
		probed := false
		checker := NewChecker("dev")
		checker.Register("dep", func(context.Context) error {
			probed = true
			return nil
		})
		checker.SetDraining(true)
		engine := probeEngine(checker)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"draining"`)
		assert.False(t, probed)

		// Draining is reversible.
		checker.SetDraining(false)
		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := RedisCheck(client)
	assert.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}

func TestHTTPCheck(t *testing.T) {
	t.Run("2xx is healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		check := HTTPCheck(srv.Client(), srv.URL)
		assert.NoError(t, check(context.Background()))
	})

	t.Run("4xx is healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		check := HTTPCheck(srv.Client(), srv.URL)
		assert.NoError(t, check(context.Background()))
	})

	t.Run("5xx is unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		check := HTTPCheck(srv.Client(), srv.URL)
		err := check(context.Background())
		require.Error(t, err)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	})

	t.Run("unreachable is unhealthy", func(t *testing.T) {
		check := HTTPCheck(http.DefaultClient, "http://127.0.0.1:1")
		assert.Error(t, check(context.Background()))
	})
}
