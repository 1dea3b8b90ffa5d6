// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published after a seat reservation commits.
// It carries enough information for downstream consumers to log,
// notify, or feed analytics without querying the primary database.
// EventID lets consumers deduplicate redelivered messages.
type BookingConfirmedEvent struct {
	EventID            string `json:"event_id"`
	BookingID          uint64 `json:"booking_id"`
	RideID             uint64 `json:"ride_id"`
	RiderID            uint64 `json:"rider_id"`
	DriverID           uint64 `json:"driver_id"`
	Origin             string `json:"origin"`
	Destination        string `json:"destination"`
	DepartsAt          string `json:"departs_at"`
	SeatsRequested     uint32 `json:"seats_requested"`
	TotalSeatsForRider uint32 `json:"total_seats_for_rider"`
	SeatsAvailable     uint32 `json:"seats_available"`
	TotalPriceCents    uint64 `json:"total_price_cents"`
	ConfirmedAt        string `json:"confirmed_at"`
}
