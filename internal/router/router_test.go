package router

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carpool-ride-reservation/internal/handler"
	"github.com/iliyamo/carpool-ride-reservation/internal/repository"
	"github.com/iliyamo/carpool-ride-reservation/internal/reservation"
)

// The response cache keys carry no user component, so the middleware
// handed to RegisterPublic must wrap only the public browse routes.
// A request to an authenticated per-user route must never pass
// through it.
func TestCacheMiddlewareScopedToPublicRoutes(t *testing.T) {
	// A handle that dials nowhere: repository calls fail with a
	// connection error instead of panicking, which is enough to
	// observe which middleware ran.
	db, err := sql.Open("mysql", "nobody@tcp(127.0.0.1:1)/none?timeout=100ms")
	require.NoError(t, err)
	defer db.Close()

	marker := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Cache-Layer", "1")
			return next(c)
		}
	}

	e := echo.New()
	rideRepo := repository.NewRideRepo(db)
	engine := reservation.NewEngine(reservation.NewMemoryStore(time.Second))
	bookingHandler := handler.NewBookingHandler(engine, repository.NewBookingRepo(db), time.Second)

	RegisterPublic(e, handler.NewPublicHandler(rideRepo), marker)
	RegisterDriver(e, handler.NewRideHandler(rideRepo), "secret")
	RegisterRider(e, bookingHandler, "secret")

	// Public browse goes through the cache layer.
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rides", nil))
	assert.Equal(t, "1", rec.Header().Get("X-Cache-Layer"))

	// Per-user routes must not.
	for _, path := range []string{"/v1/my-bookings", "/v1/my-rides"} {
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Empty(t, rec.Header().Get("X-Cache-Layer"), "path %s", path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}
