package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
)

// RideRepo provides persistence for rides.  Plain reads and the
// publishing insert run on the pooled handle; the reservation path
// and driver edits go through the Tx variants so they execute inside
// an externally managed transaction holding the ride row lock.
type RideRepo struct {
	db *sql.DB
}

// NewRideRepo returns a new RideRepo bound to the given database.
func NewRideRepo(db *sql.DB) *RideRepo { return &RideRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// that span repositories.
func (r *RideRepo) DB() *sql.DB { return r.db }

const rideColumns = `id, driver_id, title, origin, destination, departs_at,
	seats_total, seats_available, price_per_seat_cents, description, created_at`

func scanRide(row *sql.Row) (*model.Ride, error) {
	var ride model.Ride
	err := row.Scan(
		&ride.ID, &ride.DriverID, &ride.Title, &ride.Origin, &ride.Destination,
		&ride.DepartsAt, &ride.SeatsTotal, &ride.SeatsAvailable,
		&ride.PricePerSeatCents, &ride.Description, &ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

// Create inserts a new ride and populates its generated ID.  The
// caller is responsible for defaulting SeatsAvailable to SeatsTotal;
// creation is a plain insert because there is no contention on a
// ride nobody can book yet.
func (r *RideRepo) Create(ctx context.Context, ride *model.Ride) error {
	const q = `INSERT INTO rides
		(driver_id, title, origin, destination, departs_at, seats_total, seats_available, price_per_seat_cents, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		ride.DriverID, ride.Title, ride.Origin, ride.Destination, ride.DepartsAt,
		ride.SeatsTotal, ride.SeatsAvailable, ride.PricePerSeatCents, ride.Description,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	ride.ID = uint64(id)
	const sel = `SELECT created_at FROM rides WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, ride.ID).Scan(&ride.CreatedAt)
}

// GetByID fetches a ride by primary key.  Returns sql.ErrNoRows when
// the ride does not exist.
func (r *RideRepo) GetByID(ctx context.Context, id uint64) (*model.Ride, error) {
	const q = `SELECT ` + rideColumns + ` FROM rides WHERE id = ?`
	return scanRide(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx re-reads a ride by primary key under an exclusive
// row lock within the given transaction.  Every mutation of seat
// counters must pass through this lock; the blocking wait serializes
// concurrent transactions touching the same ride.
func (r *RideRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ride, error) {
	const q = `SELECT ` + rideColumns + ` FROM rides WHERE id = ? FOR UPDATE`
	return scanRide(tx.QueryRowContext(ctx, q, id))
}

// UpdateSeatsAvailableTx writes the ride's new availability inside
// the transaction that holds its row lock.
func (r *RideRepo) UpdateSeatsAvailableTx(ctx context.Context, tx *sql.Tx, id uint64, seats uint32) error {
	const q = `UPDATE rides SET seats_available = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, seats, id)
	return err
}

// UpdateMetaTx rewrites a ride's editable fields inside the
// transaction that holds its row lock.  Capacity fields are included
// because a seats_total change must adjust seats_available in the
// same atomic unit.
func (r *RideRepo) UpdateMetaTx(ctx context.Context, tx *sql.Tx, ride *model.Ride) error {
	const q = `UPDATE rides SET title = ?, origin = ?, destination = ?, departs_at = ?,
		seats_total = ?, seats_available = ?, price_per_seat_cents = ?, description = ?
		WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		ride.Title, ride.Origin, ride.Destination, ride.DepartsAt,
		ride.SeatsTotal, ride.SeatsAvailable, ride.PricePerSeatCents, ride.Description,
		ride.ID,
	)
	return err
}

// DriverRideRow is a ride as shown on the driver's dashboard,
// including the aggregate seats booked against it.
type DriverRideRow struct {
	ID                uint64    `json:"id"`
	Title             string    `json:"title"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	DepartsAt         time.Time `json:"departs_at"`
	SeatsTotal        uint32    `json:"seats_total"`
	SeatsAvailable    uint32    `json:"seats_available"`
	SeatsBooked       uint32    `json:"seats_booked"`
	PricePerSeatCents uint32    `json:"price_per_seat_cents"`
	Riders            uint32    `json:"riders"`
}

// ListByDriver returns the driver's rides newest departure first,
// with per-ride booking aggregates.  The aggregates are a read-only
// snapshot; only the engine mutates the underlying counters.
func (r *RideRepo) ListByDriver(ctx context.Context, driverID uint64) ([]DriverRideRow, error) {
	const q = `SELECT r.id, r.title, r.origin, r.destination, r.departs_at,
			r.seats_total, r.seats_available, r.price_per_seat_cents,
			COALESCE(SUM(b.seats_booked), 0), COUNT(b.id)
		FROM rides r
		LEFT JOIN bookings b ON b.ride_id = r.id
		WHERE r.driver_id = ?
		GROUP BY r.id
		ORDER BY r.departs_at DESC`
	rows, err := r.db.QueryContext(ctx, q, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DriverRideRow, 0)
	for rows.Next() {
		var d DriverRideRow
		if err := rows.Scan(
			&d.ID, &d.Title, &d.Origin, &d.Destination, &d.DepartsAt,
			&d.SeatsTotal, &d.SeatsAvailable, &d.PricePerSeatCents,
			&d.SeatsBooked, &d.Riders,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
