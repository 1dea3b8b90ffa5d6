package reservation

import (
	"context"
	"math"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
)

// Store opens transactional units of work against the backing
// storage.  Two implementations exist: SQLStore in the repository
// package, which maps the unit of work onto a MySQL transaction with
// a SELECT ... FOR UPDATE row lock, and MemoryStore in this package,
// which serializes on a per-ride lock and stages writes in memory.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is a single atomic transaction scoped to at most one
// ride lock.  All reads observe the state as of lock acquisition and
// all writes become visible together on Commit or not at all.
// Implementations must guarantee that RideForUpdate blocks while
// another unit of work holds the same ride and surface ErrBusy when
// the wait times out.
type UnitOfWork interface {
	// RideForUpdate re-reads the ride by primary key under an
	// exclusive lock.  Returns ErrRideNotFound when no such ride
	// exists.
	RideForUpdate(ctx context.Context, rideID uint64) (*model.Ride, error)
	// BookingByRideAndRider returns the rider's existing booking on
	// the ride, or (nil, nil) when the rider holds none.
	BookingByRideAndRider(ctx context.Context, rideID, riderID uint64) (*model.Booking, error)
	// InsertBooking stages a new booking row and populates its ID.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// UpdateBookingSeats stages the new cumulative seat count on an
	// existing booking row.
	UpdateBookingSeats(ctx context.Context, bookingID uint64, seats uint32) error
	// UpdateSeatsAvailable stages the ride's new availability.
	UpdateSeatsAvailable(ctx context.Context, rideID uint64, seats uint32) error
	Commit() error
	Rollback() error
}

// Outcome reports a successful reservation.  Ride carries the
// post-commit availability so callers can render it without another
// read.
type Outcome struct {
	BookingID          uint64     `json:"booking_id"`
	Ride               model.Ride `json:"ride"`
	TotalSeatsForRider uint32     `json:"total_seats_for_rider"`
}

// Engine is the sole writer of rides.seats_available and
// bookings.seats_booked.  It holds no state of its own beyond the
// store and is safe for unbounded concurrent use.
type Engine struct {
	store Store
}

// NewEngine returns an Engine bound to the given store.
func NewEngine(store Store) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	return &Engine{store: store}
}

// Reserve books seatsRequested seats on a ride for a rider.  All
// preconditions are evaluated inside the unit of work, after the
// ride row lock is held, so the availability read is guaranteed
// fresh relative to every transaction that committed before the lock
// was granted.  Calls for different rides proceed fully in parallel;
// calls for the same ride serialize on the row lock.
//
// On success the rider's booking row is created, or topped up when
// one already exists, and the ride's availability is decremented, as
// one atomic unit.  On any failure nothing is mutated.  The engine
// never retries: capacity failures are deterministic business
// outcomes and transient ErrBusy retries belong to the caller.
func (e *Engine) Reserve(ctx context.Context, rideID, riderID uint64, seatsRequested int) (*Outcome, error) {
	if seatsRequested <= 0 {
		return nil, ErrInvalidRequest
	}
	// Seat counters are uint32; a request beyond that range would
	// silently truncate on conversion and book the wrong number.
	if uint64(seatsRequested) > math.MaxUint32 {
		return nil, ErrInvalidRequest
	}
	seats := uint32(seatsRequested)

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()

	// The ride row is the single serialization point: the lock must
	// be held before availability is read.
	ride, err := uow.RideForUpdate(ctx, rideID)
	if err != nil {
		return nil, err
	}
	booking, err := uow.BookingByRideAndRider(ctx, rideID, riderID)
	if err != nil {
		return nil, err
	}
	// The per-rider cap is checked before raw availability: a rider
	// whose top-up would blow past seats_total gets the capacity
	// failure even when the ride also lacks free seats.
	if booking != nil && booking.SeatsBooked+seats > ride.SeatsTotal {
		return nil, ErrCapacityExceeded
	}
	if seats > ride.SeatsAvailable {
		return nil, ErrInsufficientSeats
	}

	var bookingID uint64
	var totalForRider uint32
	if booking == nil {
		b := &model.Booking{RideID: rideID, RiderID: riderID, SeatsBooked: seats}
		if err := uow.InsertBooking(ctx, b); err != nil {
			return nil, err
		}
		bookingID = b.ID
		totalForRider = seats
	} else {
		totalForRider = booking.SeatsBooked + seats
		if err := uow.UpdateBookingSeats(ctx, booking.ID, totalForRider); err != nil {
			return nil, err
		}
		bookingID = booking.ID
	}

	ride.SeatsAvailable -= seats
	if err := uow.UpdateSeatsAvailable(ctx, rideID, ride.SeatsAvailable); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return &Outcome{
		BookingID:          bookingID,
		Ride:               *ride,
		TotalSeatsForRider: totalForRider,
	}, nil
}
