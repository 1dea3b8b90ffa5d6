package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
)

// BookingRepo provides persistence for bookings.  The write path
// consists solely of Tx methods: booking rows are only ever created
// or accumulated inside the transaction that holds the ride's row
// lock, which together with the unique (ride_id, rider_id) key keeps
// the one-row-per-rider-per-ride invariant.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// GetByRideAndRiderTx returns the rider's booking on the ride within
// the transaction, or (nil, nil) when the rider holds none.
func (r *BookingRepo) GetByRideAndRiderTx(ctx context.Context, tx *sql.Tx, rideID, riderID uint64) (*model.Booking, error) {
	const q = `SELECT id, ride_id, rider_id, seats_booked, created_at, updated_at
		FROM bookings WHERE ride_id = ? AND rider_id = ?`
	var b model.Booking
	err := tx.QueryRowContext(ctx, q, rideID, riderID).Scan(
		&b.ID, &b.RideID, &b.RiderID, &b.SeatsBooked, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTx inserts a new booking within the transaction and
// populates the generated ID on the provided record.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (ride_id, rider_id, seats_booked) VALUES (?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, b.RideID, b.RiderID, b.SeatsBooked)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// UpdateSeatsTx writes the new cumulative seat count on an existing
// booking within the transaction.
func (r *BookingRepo) UpdateSeatsTx(ctx context.Context, tx *sql.Tx, bookingID uint64, seats uint32) error {
	const q = `UPDATE bookings SET seats_booked = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, seats, bookingID)
	return err
}

// RiderBookingDetail is a booking joined with its ride for the
// rider's dashboard.
type RiderBookingDetail struct {
	ID                uint64    `json:"id"`
	RideID            uint64    `json:"ride_id"`
	SeatsBooked       uint32    `json:"seats_booked"`
	BookedAt          time.Time `json:"booked_at"`
	Title             string    `json:"title"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	DepartsAt         time.Time `json:"departs_at"`
	PricePerSeatCents uint32    `json:"price_per_seat_cents"`
	TotalPriceCents   uint64    `json:"total_price_cents"`
}

// ListByRider returns all bookings for the given rider along with
// ride details, newest first.  When no bookings exist an empty slice
// is returned.
func (r *BookingRepo) ListByRider(ctx context.Context, riderID uint64) ([]RiderBookingDetail, error) {
	const q = `SELECT b.id, b.ride_id, b.seats_booked, b.created_at,
			r.title, r.origin, r.destination, r.departs_at, r.price_per_seat_cents
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE b.rider_id = ?
		ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]RiderBookingDetail, 0)
	for rows.Next() {
		var d RiderBookingDetail
		if err := rows.Scan(
			&d.ID, &d.RideID, &d.SeatsBooked, &d.BookedAt,
			&d.Title, &d.Origin, &d.Destination, &d.DepartsAt, &d.PricePerSeatCents,
		); err != nil {
			return nil, err
		}
		d.TotalPriceCents = uint64(d.SeatsBooked) * uint64(d.PricePerSeatCents)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
