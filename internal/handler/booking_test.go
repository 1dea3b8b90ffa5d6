package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
	"github.com/iliyamo/carpool-ride-reservation/internal/reservation"
)

func newBookContext(t *testing.T, rideID uint64, riderID uint64, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/rides/:id/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(rideID, 10))
	c.Set("user_id", riderID)
	c.Set("role", "RIDER")
	return c, rec
}

func newBookHandler(store *reservation.MemoryStore) *BookingHandler {
	return &BookingHandler{
		Engine:         reservation.NewEngine(store),
		ReserveTimeout: time.Second,
	}
}

func TestBookSucceeds(t *testing.T) {
	store := reservation.NewMemoryStore(50 * time.Millisecond)
	rideID := store.AddRide(model.Ride{
		DriverID:          1,
		Origin:            "Berlin",
		Destination:       "Hamburg",
		DepartsAt:         time.Now().Add(24 * time.Hour),
		SeatsTotal:        4,
		SeatsAvailable:    4,
		PricePerSeatCents: 1500,
	})
	h := newBookHandler(store)

	c, rec := newBookContext(t, rideID, 7, `{"seats":2}`)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"seats_booked":2`)
	assert.Contains(t, rec.Body.String(), `"seats_available":2`)
	assert.Contains(t, rec.Body.String(), `"total_price_cents":3000`)
}

func TestBookUnknownRideIs404(t *testing.T) {
	h := newBookHandler(reservation.NewMemoryStore(50 * time.Millisecond))

	c, rec := newBookContext(t, 999, 7, `{"seats":1}`)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookNonPositiveSeatsIs400(t *testing.T) {
	store := reservation.NewMemoryStore(50 * time.Millisecond)
	rideID := store.AddRide(model.Ride{SeatsTotal: 3, SeatsAvailable: 3})
	h := newBookHandler(store)

	for _, body := range []string{`{"seats":0}`, `{"seats":-2}`, `{}`} {
		c, rec := newBookContext(t, rideID, 7, body)
		require.NoError(t, h.Book(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestBookInsufficientSeatsIs409(t *testing.T) {
	store := reservation.NewMemoryStore(50 * time.Millisecond)
	rideID := store.AddRide(model.Ride{SeatsTotal: 2, SeatsAvailable: 2})
	h := newBookHandler(store)

	c, rec := newBookContext(t, rideID, 7, `{"seats":3}`)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not enough seats")
}

func TestBookCapacityExceededIs409(t *testing.T) {
	store := reservation.NewMemoryStore(50 * time.Millisecond)
	rideID := store.AddRide(model.Ride{SeatsTotal: 4, SeatsAvailable: 4})
	h := newBookHandler(store)

	c, _ := newBookContext(t, rideID, 7, `{"seats":3}`)
	require.NoError(t, h.Book(c))

	// The rider already holds 3 of 4 seats; 2 more can never fit.
	c, rec := newBookContext(t, rideID, 7, `{"seats":2}`)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "capacity")
}

func TestBookBusyIs503WithRetryAfter(t *testing.T) {
	store := reservation.NewMemoryStore(30 * time.Millisecond)
	rideID := store.AddRide(model.Ride{SeatsTotal: 4, SeatsAvailable: 4})
	h := newBookHandler(store)

	// Park a unit of work on the ride lock so the request times out.
	blocker, err := store.Begin(context.Background())
	require.NoError(t, err)
	_, err = blocker.RideForUpdate(context.Background(), rideID)
	require.NoError(t, err)
	defer func() { _ = blocker.Rollback() }()

	c, rec := newBookContext(t, rideID, 7, `{"seats":1}`)
	require.NoError(t, h.Book(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
