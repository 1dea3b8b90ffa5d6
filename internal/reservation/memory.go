package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
)

// MemoryStore is an in-process Store backed by maps and a per-ride
// exclusive lock.  It implements the same contract as the MySQL
// store: a unit of work that locked a ride blocks every other unit
// of work for that ride until it ends, waits are bounded and time
// out with ErrBusy, and staged writes become visible only on Commit.
// It backs the engine tests and serves as a database-free backend
// for local runs.
type MemoryStore struct {
	mu          sync.Mutex
	rides       map[uint64]*model.Ride
	bookings    map[uint64]*model.Booking
	byRideRider map[[2]uint64]uint64
	locks       map[uint64]chan struct{}
	nextRide    uint64
	nextBooking uint64
	lockWait    time.Duration
}

// NewMemoryStore returns an empty store whose lock waits give up
// after lockWait, surfacing ErrBusy exactly like an InnoDB lock wait
// timeout would.
func NewMemoryStore(lockWait time.Duration) *MemoryStore {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &MemoryStore{
		rides:       make(map[uint64]*model.Ride),
		bookings:    make(map[uint64]*model.Booking),
		byRideRider: make(map[[2]uint64]uint64),
		locks:       make(map[uint64]chan struct{}),
		lockWait:    lockWait,
	}
}

// AddRide inserts a ride and returns its assigned ID.  It is a plain
// insert outside the reservation path, mirroring the publishing
// surface: there is no contention on creation.
func (s *MemoryStore) AddRide(r model.Ride) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRide++
	r.ID = s.nextRide
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.rides[r.ID] = &r
	return r.ID
}

// Ride returns a snapshot of the ride, if present.
func (s *MemoryStore) Ride(id uint64) (model.Ride, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return model.Ride{}, false
	}
	return *r, true
}

// BookingsByRide returns snapshots of all committed bookings on the
// ride.
func (s *MemoryStore) BookingsByRide(rideID uint64) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.RideID == rideID {
			out = append(out, *b)
		}
	}
	return out
}

// Begin opens a unit of work.  The ride lock is not taken here; it
// is acquired by RideForUpdate so the value read is fresh relative
// to whichever transaction held the lock before us.
func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrBusy
	}
	return &memoryUnit{
		store:       s,
		seatUpdates: make(map[uint64]uint32),
	}, nil
}

// lockFor returns the ride's lock channel, creating it lazily.  A
// buffered channel of size one acts as a mutex that supports a
// bounded wait.
func (s *MemoryStore) lockFor(rideID uint64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[rideID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[rideID] = ch
	}
	return ch
}

// memoryUnit stages all writes and applies them atomically on
// Commit.  It holds at most one ride lock, matching the engine's
// protocol: bookings never span rides, so there is no lock ordering
// to get wrong.
type memoryUnit struct {
	store       *MemoryStore
	lockedRide  uint64
	done        bool
	rideSeats   *uint32 // staged seats_available for lockedRide
	inserts     []*model.Booking
	seatUpdates map[uint64]uint32 // bookingID -> staged seats_booked
}

func (u *memoryUnit) RideForUpdate(ctx context.Context, rideID uint64) (*model.Ride, error) {
	if u.done {
		return nil, fmt.Errorf("unit of work already finished")
	}
	if u.lockedRide != 0 && u.lockedRide != rideID {
		return nil, fmt.Errorf("unit of work already holds ride %d", u.lockedRide)
	}
	u.store.mu.Lock()
	_, exists := u.store.rides[rideID]
	u.store.mu.Unlock()
	if !exists {
		return nil, ErrRideNotFound
	}
	if u.lockedRide == 0 {
		ch := u.store.lockFor(rideID)
		select {
		case ch <- struct{}{}:
			u.lockedRide = rideID
		case <-time.After(u.store.lockWait):
			return nil, ErrBusy
		case <-ctx.Done():
			return nil, ErrBusy
		}
	}
	// Re-read after the lock is granted: whatever committed while we
	// were waiting is visible now.
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	r, ok := u.store.rides[rideID]
	if !ok {
		return nil, ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (u *memoryUnit) BookingByRideAndRider(ctx context.Context, rideID, riderID uint64) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrBusy
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	id, ok := u.store.byRideRider[[2]uint64{rideID, riderID}]
	if !ok {
		return nil, nil
	}
	cp := *u.store.bookings[id]
	return &cp, nil
}

func (u *memoryUnit) InsertBooking(ctx context.Context, b *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return ErrBusy
	}
	u.store.mu.Lock()
	u.store.nextBooking++
	b.ID = u.store.nextBooking
	u.store.mu.Unlock()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	u.inserts = append(u.inserts, b)
	return nil
}

func (u *memoryUnit) UpdateBookingSeats(ctx context.Context, bookingID uint64, seats uint32) error {
	if err := ctx.Err(); err != nil {
		return ErrBusy
	}
	u.seatUpdates[bookingID] = seats
	return nil
}

func (u *memoryUnit) UpdateSeatsAvailable(ctx context.Context, rideID uint64, seats uint32) error {
	if err := ctx.Err(); err != nil {
		return ErrBusy
	}
	if rideID != u.lockedRide {
		return fmt.Errorf("ride %d is not locked by this unit of work", rideID)
	}
	u.rideSeats = &seats
	return nil
}

// Commit applies staged writes and releases the ride lock.  The
// store mutex makes the apply a single indivisible step, so readers
// never observe a booking without its availability decrement.
func (u *memoryUnit) Commit() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.store.mu.Lock()
	for _, b := range u.inserts {
		cp := *b
		u.store.bookings[cp.ID] = &cp
		u.store.byRideRider[[2]uint64{cp.RideID, cp.RiderID}] = cp.ID
	}
	for id, seats := range u.seatUpdates {
		if b, ok := u.store.bookings[id]; ok {
			b.SeatsBooked = seats
			b.UpdatedAt = time.Now().UTC()
		}
	}
	if u.rideSeats != nil {
		u.store.rides[u.lockedRide].SeatsAvailable = *u.rideSeats
	}
	u.store.mu.Unlock()
	u.finish()
	return nil
}

// Rollback discards staged writes and releases the ride lock.
func (u *memoryUnit) Rollback() error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *memoryUnit) finish() {
	if u.lockedRide != 0 {
		<-u.store.lockFor(u.lockedRide)
		u.lockedRide = 0
	}
	u.inserts = nil
	u.seatUpdates = nil
	u.rideSeats = nil
	u.done = true
}
