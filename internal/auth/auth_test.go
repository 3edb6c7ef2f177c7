package auth

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_Valid(t *testing.T) {
	assert.True(t, LevelSession.Valid())
	assert.True(t, LevelPhone.Valid())
	assert.True(t, LevelUser.Valid())
	assert.True(t, LevelSignature.Valid())
	assert.False(t, Level("admin").Valid())
	assert.False(t, Level("").Valid())
}

func TestExtractCredentials(t *testing.T) {
	t.Run("basic auth", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/me", nil)
		r.SetBasicAuth("sess-1", "secret-1")

		creds, err := ExtractCredentials(r)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", creds.Name)
		assert.Equal(t, "secret-1", creds.Secret)
	})

	t.Run("no header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/me", nil)

		_, err := ExtractCredentials(r)
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/me", nil)
		r.Header.Set("Authorization", "Bearer whatever")

		_, err := ExtractCredentials(r)
		assert.ErrorIs(t, err, ErrNoCredentials)
	})
}

func TestNewRequest(t *testing.T) {
	body := []byte(`{"amount":1}`)
	r := httptest.NewRequest("POST", "/v1/payments?dry=false", strings.NewReader(string(body)))
	r.Header.Set(HeaderInstallationID, " inst-1 ")
	r.Header.Set(HeaderSignature, "token")

	req := NewRequest(r, body)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/v1/payments?dry=false", req.RequestURI)
	assert.Equal(t, "inst-1", req.InstallationID)
	assert.Equal(t, "token", req.Signature)
	assert.Equal(t, body, req.Body)
}
