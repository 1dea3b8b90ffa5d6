package model

import "time"

// Ride represents a published trip offer as stored in the `rides`
// table.  A ride is created by a driver with a fixed seat capacity
// and a price per seat.  SeatsAvailable is owned exclusively by the
// reservation engine once bookings start flowing; every other
// component reads it as a point-in-time snapshot.
//
// Fields:
//  ID                – primary key identifier.
//  DriverID          – user who published the ride.
//  Title             – short human readable title for the trip.
//  Origin            – free text departure location.
//  Destination       – free text arrival location.
//  DepartsAt         – scheduled departure date and time.
//  SeatsTotal        – fixed capacity, positive, set at creation.
//  SeatsAvailable    – remaining unreserved seats, 0..SeatsTotal.
//  PricePerSeatCents – price of a single seat in cents.
//  Description       – optional free text details.
//  CreatedAt         – creation timestamp.
type Ride struct {
	ID                uint64    // rides.id
	DriverID          uint64    // rides.driver_id
	Title             string    // rides.title
	Origin            string    // rides.origin
	Destination       string    // rides.destination
	DepartsAt         time.Time // rides.departs_at
	SeatsTotal        uint32    // rides.seats_total
	SeatsAvailable    uint32    // rides.seats_available
	PricePerSeatCents uint32    // rides.price_per_seat_cents
	Description       string    // rides.description
	CreatedAt         time.Time // rides.created_at
}

// SeatsBooked returns the aggregate number of seats already reserved
// on the ride, derived from the capacity counters.
func (r *Ride) SeatsBooked() uint32 {
	return r.SeatsTotal - r.SeatsAvailable
}
