package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-ride-reservation/internal/queue"
	"github.com/iliyamo/carpool-ride-reservation/internal/repository"
	"github.com/iliyamo/carpool-ride-reservation/internal/reservation"
	queue_publisher "github.com/iliyamo/carpool-ride-reservation/internal/service"
)

// BookingHandler exposes the rider-facing reservation endpoints.
// The engine owns every seat-counter mutation; this layer only
// translates HTTP to engine calls and engine errors to status codes.
type BookingHandler struct {
	Engine   *reservation.Engine
	Bookings *repository.BookingRepo

	// ReserveTimeout bounds how long one reservation may wait on the
	// ride row lock before the request is answered with 503.
	ReserveTimeout time.Duration

	// PublishEvents disables the RabbitMQ publish in tests.
	PublishEvents bool
}

// NewBookingHandler constructs a BookingHandler.  Engine and Bookings
// must be non-nil.
func NewBookingHandler(engine *reservation.Engine, bookings *repository.BookingRepo, reserveTimeout time.Duration) *BookingHandler {
	if engine == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if reserveTimeout <= 0 {
		reserveTimeout = 10 * time.Second
	}
	return &BookingHandler{
		Engine:         engine,
		Bookings:       bookings,
		ReserveTimeout: reserveTimeout,
		PublishEvents:  true,
	}
}

type bookReq struct {
	Seats int `json:"seats"`
}

// Book handles POST /v1/rides/:id/book.  Repeated bookings by the
// same rider top up the existing row; the engine decides every
// outcome under the ride row lock, so this handler performs no
// availability pre-checks of its own.
func (h *BookingHandler) Book(c echo.Context) error {
	riderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rideID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || rideID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.ReserveTimeout)
	defer cancel()

	out, err := h.Engine.Reserve(ctx, rideID, riderID, req.Seats)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrRideNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ride not found"})
		case errors.Is(err, reservation.ErrInvalidRequest):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats must be a positive integer"})
		case errors.Is(err, reservation.ErrInsufficientSeats):
			return c.JSON(http.StatusConflict, echo.Map{"error": "not enough seats available"})
		case errors.Is(err, reservation.ErrCapacityExceeded):
			return c.JSON(http.StatusConflict, echo.Map{"error": "request exceeds the ride's total capacity for this rider"})
		case errors.Is(err, reservation.ErrBusy):
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "ride is busy, retry shortly"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation failed"})
	}

	if h.PublishEvents {
		ev := queue.BookingConfirmedEvent{
			EventID:            uuid.NewString(),
			BookingID:          out.BookingID,
			RideID:             out.Ride.ID,
			RiderID:            riderID,
			DriverID:           out.Ride.DriverID,
			Origin:             out.Ride.Origin,
			Destination:        out.Ride.Destination,
			DepartsAt:          out.Ride.DepartsAt.UTC().Format(time.RFC3339),
			SeatsRequested:     uint32(req.Seats),
			TotalSeatsForRider: out.TotalSeatsForRider,
			SeatsAvailable:     out.Ride.SeatsAvailable,
			TotalPriceCents:    uint64(out.TotalSeatsForRider) * uint64(out.Ride.PricePerSeatCents),
			ConfirmedAt:        time.Now().UTC().Format(time.RFC3339),
		}
		// Fire and forget: the reservation is already committed.
		go func() {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pubCancel()
			if err := queue_publisher.PublishBookingConfirmed(pubCtx, ev); err != nil {
				log.Printf("booking: publish event failed for booking %d: %v", ev.BookingID, err)
			}
		}()
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":           out.BookingID,
		"ride_id":              out.Ride.ID,
		"seats_booked":         out.TotalSeatsForRider,
		"seats_available":      out.Ride.SeatsAvailable,
		"price_per_seat_cents": out.Ride.PricePerSeatCents,
		"total_price_cents":    uint64(out.TotalSeatsForRider) * uint64(out.Ride.PricePerSeatCents),
	})
}

// MyBookings handles GET /v1/my-bookings: the rider's bookings with
// ride details.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	riderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rows, err := h.Bookings.ListByRider(c.Request().Context(), riderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": rows})
}
