// Package reservation implements the seat reservation engine.  The
// engine owns the invariant that the sum of booked seats on a ride
// never exceeds its total capacity and performs the atomic
// read-modify-write against a locked ride row.  This file defines
// the sentinel errors the engine surfaces; handlers translate them
// into distinguishable HTTP responses and must never collapse them
// into a catch-all.
package reservation

import "errors"

// ErrRideNotFound is returned when the requested ride does not
// exist.  It is deterministic and must not be retried.
var ErrRideNotFound = errors.New("ride not found")

// ErrInvalidRequest is returned when the requested seat count is
// zero or negative.  The store is never touched in this case.
var ErrInvalidRequest = errors.New("invalid seat request")

// ErrInsufficientSeats is returned when the request exceeds the
// ride's current availability.  This is a legitimate business
// outcome, not a transient failure; callers may prompt the rider to
// request fewer seats but retrying changes nothing.
var ErrInsufficientSeats = errors.New("not enough seats available")

// ErrCapacityExceeded is returned when the rider's cumulative
// booking after a top-up would exceed the ride's total seats.
var ErrCapacityExceeded = errors.New("cumulative seats exceed ride capacity")

// ErrBusy is returned for transient failures such as a lock wait
// timeout or a dropped store connection.  It is the only error in
// the taxonomy eligible for caller-side retry.
var ErrBusy = errors.New("ride is busy, try again")
