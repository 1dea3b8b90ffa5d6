package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
)

func TestRideResponseUsesSnakeCaseFields(t *testing.T) {
	ride := &model.Ride{
		ID:                3,
		DriverID:          1,
		Title:             "Morning commute",
		Origin:            "Haifa",
		Destination:       "Tel Aviv",
		DepartsAt:         time.Now().UTC().Add(24 * time.Hour),
		SeatsTotal:        4,
		SeatsAvailable:    4,
		PricePerSeatCents: 1500,
	}

	raw, err := json.Marshal(rideResponse(ride))
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, k := range []string{
		"id", "driver_id", "title", "origin", "destination", "departs_at",
		"seats_total", "seats_available", "price_per_seat_cents",
		"description", "created_at",
	} {
		assert.Contains(t, keys, k)
	}
	// No raw Go field names may leak into the wire shape.
	assert.NotContains(t, keys, "SeatsTotal")
	assert.NotContains(t, keys, "DriverID")
}
