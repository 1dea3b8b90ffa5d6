package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carpool-ride-reservation/internal/config"
)

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

// unreachableRedis returns a client whose every command fails fast,
// exercising the middleware's fail-open paths without a server.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func runCached(t *testing.T, mw echo.MiddlewareFunc, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/rides", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	require.NoError(t, h(c))
	return rec
}

func TestCacheBypassesAuthenticatedRequests(t *testing.T) {
	mw := NewRedisCache(testCacheConfig(), unreachableRedis())

	// Anonymous requests enter the cache path and are marked.
	rec := runCached(t, mw, "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// A bearer token means a per-user response; the cache layer must
	// step aside entirely.
	rec = runCached(t, mw, "Bearer some-token")
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCaptureWriterOverflowBlocksCaching(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 8}

	_, err := cw.Write(make([]byte, 6))
	require.NoError(t, err)
	assert.False(t, cw.overflowed())

	_, err = cw.Write(make([]byte, 6))
	require.NoError(t, err)
	assert.True(t, cw.overflowed())

	// The capture stops at the limit but the client still gets the
	// whole body.
	assert.Equal(t, 8, cw.buf.Len())
	assert.Equal(t, int64(12), cw.size)
	assert.Equal(t, 12, rec.Body.Len())
}
