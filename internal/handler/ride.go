package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
	"github.com/iliyamo/carpool-ride-reservation/internal/repository"
	"github.com/iliyamo/carpool-ride-reservation/internal/reservation"
)

// RideHandler groups the repositories needed for drivers to publish
// and manage their rides.  JWT authentication and the DRIVER role
// check are performed by middleware; handlers only extract the user
// ID from the context.
type RideHandler struct {
	Rides *repository.RideRepo
}

// NewRideHandler constructs a RideHandler.  Rides must be non-nil.
func NewRideHandler(rides *repository.RideRepo) *RideHandler {
	if rides == nil {
		panic("nil repository passed to NewRideHandler")
	}
	return &RideHandler{Rides: rides}
}

// rideResponse shapes a ride for the driver-facing responses, using
// the same snake_case fields as the rest of the API.
func rideResponse(r *model.Ride) echo.Map {
	return echo.Map{
		"id":                   r.ID,
		"driver_id":            r.DriverID,
		"title":                r.Title,
		"origin":               r.Origin,
		"destination":          r.Destination,
		"departs_at":           r.DepartsAt,
		"seats_total":          r.SeatsTotal,
		"seats_available":      r.SeatsAvailable,
		"price_per_seat_cents": r.PricePerSeatCents,
		"description":          r.Description,
		"created_at":           r.CreatedAt,
	}
}

type createRideReq struct {
	Title             string    `json:"title"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	DepartsAt         time.Time `json:"departs_at"`
	SeatsTotal        uint32    `json:"seats_total"`
	PricePerSeatCents uint32    `json:"price_per_seat_cents"`
	Description       string    `json:"description"`
}

// CreateRide handles POST /v1/rides.  The ride is published with
// seats_available equal to seats_total; nothing is booked yet so the
// insert needs no locking.
func (h *RideHandler) CreateRide(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createRideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	req.Title = strings.TrimSpace(req.Title)
	if req.Origin == "" || req.Destination == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin and destination are required"})
	}
	if req.SeatsTotal == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats_total must be positive"})
	}
	if req.DepartsAt.IsZero() || req.DepartsAt.Before(time.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "departs_at must be in the future"})
	}
	if req.Title == "" {
		req.Title = req.Origin + " → " + req.Destination
	}

	ride := &model.Ride{
		DriverID:          driverID,
		Title:             req.Title,
		Origin:            req.Origin,
		Destination:       req.Destination,
		DepartsAt:         req.DepartsAt,
		SeatsTotal:        req.SeatsTotal,
		SeatsAvailable:    req.SeatsTotal,
		PricePerSeatCents: req.PricePerSeatCents,
		Description:       req.Description,
	}
	if err := h.Rides.Create(c.Request().Context(), ride); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create ride failed"})
	}
	return c.JSON(http.StatusCreated, rideResponse(ride))
}

type updateRideReq struct {
	Title             *string    `json:"title"`
	Origin            *string    `json:"origin"`
	Destination       *string    `json:"destination"`
	DepartsAt         *time.Time `json:"departs_at"`
	SeatsTotal        *uint32    `json:"seats_total"`
	PricePerSeatCents *uint32    `json:"price_per_seat_cents"`
	Description       *string    `json:"description"`
}

// UpdateRide handles PATCH /v1/rides/:id.  The ride row is locked
// for the duration of the edit so a seats_total change and the
// matching seats_available adjustment land atomically, and so the
// booked count read for the shrink check cannot go stale.  Shrinking
// seats_total below the seats already booked is rejected with 409.
func (h *RideHandler) UpdateRide(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rideID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || rideID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	var req updateRideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	tx, err := h.Rides.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ride, err := h.Rides.GetForUpdateTx(ctx, tx, rideID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ride not found"})
		}
		if errors.Is(repository.MapTransient(err), reservation.ErrBusy) {
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "ride is busy, retry shortly"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if ride.DriverID != driverID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your ride"})
	}

	if req.Title != nil {
		ride.Title = strings.TrimSpace(*req.Title)
	}
	if req.Origin != nil {
		if strings.TrimSpace(*req.Origin) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin cannot be empty"})
		}
		ride.Origin = strings.TrimSpace(*req.Origin)
	}
	if req.Destination != nil {
		if strings.TrimSpace(*req.Destination) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "destination cannot be empty"})
		}
		ride.Destination = strings.TrimSpace(*req.Destination)
	}
	if req.DepartsAt != nil {
		if req.DepartsAt.Before(time.Now()) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "departs_at must be in the future"})
		}
		ride.DepartsAt = *req.DepartsAt
	}
	if req.PricePerSeatCents != nil {
		ride.PricePerSeatCents = *req.PricePerSeatCents
	}
	if req.Description != nil {
		ride.Description = *req.Description
	}
	if req.SeatsTotal != nil {
		newTotal := *req.SeatsTotal
		if newTotal == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats_total must be positive"})
		}
		booked := ride.SeatsBooked()
		if newTotal < booked {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":        "seats_total cannot go below seats already booked",
				"seats_booked": booked,
			})
		}
		ride.SeatsTotal = newTotal
		ride.SeatsAvailable = newTotal - booked
	}

	if err := h.Rides.UpdateMetaTx(ctx, tx, ride); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update ride failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.JSON(http.StatusOK, rideResponse(ride))
}

// MyRides handles GET /v1/my-rides: the driver's rides with booking
// aggregates.
func (h *RideHandler) MyRides(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rows, err := h.Rides.ListByDriver(c.Request().Context(), driverID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": rows})
}
