package repository

import (
	"context"
	"strings"
	"time"
)

// RideSearchQuery defines filters & pagination for browsing rides.
// Query matches origin, destination or title case-insensitively.
type RideSearchQuery struct {
	Query      string
	TimeFilter string
	Page       int
	PageSize   int
}

type PublicRideRow struct {
	ID                uint64    `json:"id"`
	Title             string    `json:"title"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	DepartsAt         time.Time `json:"departs_at"`
	SeatsTotal        uint32    `json:"seats_total"`
	SeatsAvailable    uint32    `json:"seats_available"`
	PricePerSeatCents uint32    `json:"price_per_seat_cents"`
	Price             float64   `json:"price"`
}

// Search returns rides matching the query plus the total row count
// for pagination.  The availability values in the result are a
// point-in-time snapshot with no mutation rights.
func (r *RideRepo) Search(ctx context.Context, q RideSearchQuery) ([]PublicRideRow, int64, error) {
	where := []string{}
	args := []any{}

	switch strings.ToLower(q.TimeFilter) {
	case "any":
	default:
		where = append(where, "r.departs_at >= NOW()")
	}

	if q.Query != "" {
		needle := "%" + strings.ToLower(q.Query) + "%"
		where = append(where, "(LOWER(r.origin) LIKE ? OR LOWER(r.destination) LIKE ? OR LOWER(r.title) LIKE ?)")
		args = append(args, needle, needle, needle)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM rides r WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT
			r.id,
			r.title,
			r.origin,
			r.destination,
			r.departs_at,
			r.seats_total,
			r.seats_available,
			r.price_per_seat_cents
		FROM rides r
		WHERE ` + cond + `
		ORDER BY r.departs_at ASC
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]PublicRideRow, 0, limit)
	for rows.Next() {
		var d PublicRideRow
		if err := rows.Scan(
			&d.ID,
			&d.Title,
			&d.Origin,
			&d.Destination,
			&d.DepartsAt,
			&d.SeatsTotal,
			&d.SeatsAvailable,
			&d.PricePerSeatCents,
		); err != nil {
			return nil, 0, err
		}
		d.Price = float64(d.PricePerSeatCents) / 100.0
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
