// Package handler exposes HTTP handlers for both authenticated and
// public endpoints.  This file covers unauthenticated ride browsing:
// listing, free-text search and single-ride detail.  Driver identity
// is hidden from public responses.
package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-ride-reservation/internal/repository"
)

// PublicHandler aggregates repositories for unauthenticated browsing.
type PublicHandler struct {
	Rides *repository.RideRepo
}

// NewPublicHandler constructs a PublicHandler.  Rides must be non-nil.
func NewPublicHandler(rides *repository.RideRepo) *PublicHandler {
	if rides == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Rides: rides}
}

func searchQueryFrom(c echo.Context) repository.RideSearchQuery {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return repository.RideSearchQuery{
		Query:      c.QueryParam("q"),
		TimeFilter: c.QueryParam("time"),
		Page:       page,
		PageSize:   size,
	}
}

// ListRides handles GET /v1/rides: upcoming rides, soonest first,
// paginated.
func (h *PublicHandler) ListRides(c echo.Context) error {
	q := searchQueryFrom(c)
	q.Query = "" // listing ignores free text; SearchRides handles it
	items, total, err := h.Rides.Search(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total})
}

// SearchRides handles GET /v1/rides/search?q=: free-text match on
// origin, destination and title.
func (h *PublicHandler) SearchRides(c echo.Context) error {
	q := searchQueryFrom(c)
	items, total, err := h.Rides.Search(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total})
}

// GetRide handles GET /v1/rides/:id.  The availability in the
// response is a snapshot; only a booking attempt decides whether
// seats can actually be taken.
func (h *PublicHandler) GetRide(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	ride, err := h.Rides.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ride not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                   ride.ID,
		"title":                ride.Title,
		"origin":               ride.Origin,
		"destination":          ride.Destination,
		"departs_at":           ride.DepartsAt,
		"seats_total":          ride.SeatsTotal,
		"seats_available":      ride.SeatsAvailable,
		"price_per_seat_cents": ride.PricePerSeatCents,
		"description":          ride.Description,
	})
}
