package model

import "time"

// Booking represents a rider's reservation of seats on a ride, one
// row per (ride, rider) pair.  Repeated bookings by the same rider
// accumulate onto the existing row instead of creating duplicates;
// the pair carries a uniqueness constraint in the database.
//
// Fields:
//  ID          – primary key identifier.
//  RideID      – ride the seats belong to.
//  RiderID     – user holding the reservation.
//  SeatsBooked – cumulative seats held by this rider, positive.
//  CreatedAt   – timestamp of the rider's first booking on the ride.
//  UpdatedAt   – timestamp of the last accumulation.
type Booking struct {
	ID          uint64    // bookings.id
	RideID      uint64    // bookings.ride_id
	RiderID     uint64    // bookings.rider_id
	SeatsBooked uint32    // bookings.seats_booked
	CreatedAt   time.Time // bookings.created_at
	UpdatedAt   time.Time // bookings.updated_at
}
