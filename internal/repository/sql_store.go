package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
	"github.com/iliyamo/carpool-ride-reservation/internal/reservation"
)

// MySQL server error numbers that indicate a transient serialization
// failure rather than a business outcome.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// MapTransient converts driver-level serialization failures into the
// engine's ErrBusy so callers can tell retryable failures apart from
// deterministic ones.  Everything else passes through unchanged.
// Exported because the driver edit path locks ride rows outside the
// engine and needs the same classification.
func MapTransient(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return reservation.ErrBusy
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return reservation.ErrBusy
	}
	return err
}

// SQLStore adapts the MySQL repositories to the reservation engine's
// Store port.  Each unit of work is one database transaction; the
// ride row lock taken by GetForUpdateTx is the serialization point
// the engine's contract requires.
type SQLStore struct {
	db       *sql.DB
	rides    *RideRepo
	bookings *BookingRepo
}

// NewSQLStore constructs a SQLStore over the shared handle and repos.
func NewSQLStore(db *sql.DB, rides *RideRepo, bookings *BookingRepo) *SQLStore {
	if db == nil || rides == nil || bookings == nil {
		panic("nil dependency passed to NewSQLStore")
	}
	return &SQLStore{db: db, rides: rides, bookings: bookings}
}

// Begin opens a transaction.  Default isolation is sufficient: the
// FOR UPDATE read provides the per-ride serialization, and no other
// rows are contended.
func (s *SQLStore) Begin(ctx context.Context) (reservation.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, MapTransient(err)
	}
	return &sqlUnit{tx: tx, rides: s.rides, bookings: s.bookings}, nil
}

type sqlUnit struct {
	tx       *sql.Tx
	rides    *RideRepo
	bookings *BookingRepo
}

func (u *sqlUnit) RideForUpdate(ctx context.Context, rideID uint64) (*model.Ride, error) {
	ride, err := u.rides.GetForUpdateTx(ctx, u.tx, rideID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservation.ErrRideNotFound
	}
	if err != nil {
		return nil, MapTransient(err)
	}
	return ride, nil
}

func (u *sqlUnit) BookingByRideAndRider(ctx context.Context, rideID, riderID uint64) (*model.Booking, error) {
	b, err := u.bookings.GetByRideAndRiderTx(ctx, u.tx, rideID, riderID)
	if err != nil {
		return nil, MapTransient(err)
	}
	return b, nil
}

func (u *sqlUnit) InsertBooking(ctx context.Context, b *model.Booking) error {
	return MapTransient(u.bookings.CreateTx(ctx, u.tx, b))
}

func (u *sqlUnit) UpdateBookingSeats(ctx context.Context, bookingID uint64, seats uint32) error {
	return MapTransient(u.bookings.UpdateSeatsTx(ctx, u.tx, bookingID, seats))
}

func (u *sqlUnit) UpdateSeatsAvailable(ctx context.Context, rideID uint64, seats uint32) error {
	return MapTransient(u.rides.UpdateSeatsAvailableTx(ctx, u.tx, rideID, seats))
}

func (u *sqlUnit) Commit() error {
	return MapTransient(u.tx.Commit())
}

func (u *sqlUnit) Rollback() error {
	return u.tx.Rollback()
}
