package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carpool-ride-reservation/internal/model"
)

func newTestStore(t *testing.T, seatsTotal, seatsAvailable uint32) (*MemoryStore, uint64) {
	t.Helper()
	store := NewMemoryStore(2 * time.Second)
	rideID := store.AddRide(model.Ride{
		DriverID:       1,
		Title:          "Morning commute",
		Origin:         "Haifa",
		Destination:    "Tel Aviv",
		DepartsAt:      time.Now().UTC().Add(24 * time.Hour),
		SeatsTotal:     seatsTotal,
		SeatsAvailable: seatsAvailable,
	})
	return store, rideID
}

// requireConserved asserts the core invariant: at every committed
// state, seats_available plus the sum of booked seats equals the
// ride's total.
func requireConserved(t *testing.T, store *MemoryStore, rideID uint64) {
	t.Helper()
	ride, ok := store.Ride(rideID)
	require.True(t, ok)
	var booked uint32
	for _, b := range store.BookingsByRide(rideID) {
		booked += b.SeatsBooked
	}
	require.Equal(t, ride.SeatsTotal, ride.SeatsAvailable+booked)
}

func TestReserveCreatesBooking(t *testing.T) {
	store, rideID := newTestStore(t, 4, 4)
	engine := NewEngine(store)

	out, err := engine.Reserve(context.Background(), rideID, 7, 2)
	require.NoError(t, err)
	assert.NotZero(t, out.BookingID)
	assert.Equal(t, uint32(2), out.TotalSeatsForRider)
	assert.Equal(t, uint32(2), out.Ride.SeatsAvailable)

	ride, ok := store.Ride(rideID)
	require.True(t, ok)
	assert.Equal(t, uint32(2), ride.SeatsAvailable)
	requireConserved(t, store, rideID)
}

func TestReserveRideNotFound(t *testing.T) {
	store := NewMemoryStore(time.Second)
	engine := NewEngine(store)

	_, err := engine.Reserve(context.Background(), 999, 7, 1)
	require.ErrorIs(t, err, ErrRideNotFound)
}

func TestReserveRejectsNonPositiveSeats(t *testing.T) {
	store, rideID := newTestStore(t, 4, 4)
	engine := NewEngine(store)

	for _, seats := range []int{0, -1} {
		_, err := engine.Reserve(context.Background(), rideID, 7, seats)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(4), ride.SeatsAvailable)
	assert.Empty(t, store.BookingsByRide(rideID))
}

func TestReserveRejectsSeatCountBeyondUint32(t *testing.T) {
	store, rideID := newTestStore(t, 4, 4)
	engine := NewEngine(store)

	// 2^32+1 would truncate to 1 on conversion and book a single
	// seat instead of failing.
	_, err := engine.Reserve(context.Background(), rideID, 7, 1<<32+1)
	require.ErrorIs(t, err, ErrInvalidRequest)

	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(4), ride.SeatsAvailable)
	assert.Empty(t, store.BookingsByRide(rideID))
}

func TestReserveInsufficientSeats(t *testing.T) {
	store, rideID := newTestStore(t, 4, 3)
	engine := NewEngine(store)

	_, err := engine.Reserve(context.Background(), rideID, 7, 4)
	require.ErrorIs(t, err, ErrInsufficientSeats)

	// A failed precondition leaves both tables untouched.
	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(3), ride.SeatsAvailable)
	assert.Empty(t, store.BookingsByRide(rideID))
}

func TestTopUpAccumulates(t *testing.T) {
	store, rideID := newTestStore(t, 5, 5)
	engine := NewEngine(store)
	ctx := context.Background()

	first, err := engine.Reserve(ctx, rideID, 7, 2)
	require.NoError(t, err)
	second, err := engine.Reserve(ctx, rideID, 7, 2)
	require.NoError(t, err)

	// Same booking row, accumulated seats, no duplicate.
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, uint32(4), second.TotalSeatsForRider)

	bookings := store.BookingsByRide(rideID)
	require.Len(t, bookings, 1)
	assert.Equal(t, uint32(4), bookings[0].SeatsBooked)

	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(1), ride.SeatsAvailable)
	requireConserved(t, store, rideID)
}

func TestCapacityExceededLeavesStateUntouched(t *testing.T) {
	store, rideID := newTestStore(t, 4, 4)
	engine := NewEngine(store)
	ctx := context.Background()

	_, err := engine.Reserve(ctx, rideID, 7, 3)
	require.NoError(t, err)

	// Cumulative 3 + 2 = 5 > 4: the rider's cap fires, not the
	// availability check, and nothing is mutated.
	_, err = engine.Reserve(ctx, rideID, 7, 2)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	bookings := store.BookingsByRide(rideID)
	require.Len(t, bookings, 1)
	assert.Equal(t, uint32(3), bookings[0].SeatsBooked)
	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(1), ride.SeatsAvailable)
	requireConserved(t, store, rideID)
}

func TestTopUpWithinCapStillBoundedByAvailability(t *testing.T) {
	store, rideID := newTestStore(t, 6, 6)
	engine := NewEngine(store)
	ctx := context.Background()

	// Another rider takes 4; rider 7 holds 1 and asks for 2 more.
	// Cumulative 3 <= 6 passes the cap, but only 1 seat remains.
	_, err := engine.Reserve(ctx, rideID, 8, 4)
	require.NoError(t, err)
	_, err = engine.Reserve(ctx, rideID, 7, 1)
	require.NoError(t, err)
	_, err = engine.Reserve(ctx, rideID, 7, 2)
	require.ErrorIs(t, err, ErrInsufficientSeats)

	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(1), ride.SeatsAvailable)
	requireConserved(t, store, rideID)
}

func TestNoOversellUnderConcurrency(t *testing.T) {
	const seatsTotal = 5
	const callers = 50

	store, rideID := newTestStore(t, seatsTotal, seatsTotal)
	engine := NewEngine(store)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct riders racing for one seat each.
			_, errs[i] = engine.Reserve(context.Background(), rideID, uint64(100+i), 1)
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrInsufficientSeats):
			insufficient++
		}
	}
	assert.Equal(t, seatsTotal, succeeded)
	assert.Equal(t, callers-seatsTotal, insufficient)

	ride, _ := store.Ride(rideID)
	assert.Equal(t, uint32(0), ride.SeatsAvailable)
	assert.Len(t, store.BookingsByRide(rideID), seatsTotal)
	requireConserved(t, store, rideID)
}

func TestFullRideIsTerminal(t *testing.T) {
	store, rideID := newTestStore(t, 2, 2)
	engine := NewEngine(store)
	ctx := context.Background()

	_, err := engine.Reserve(ctx, rideID, 7, 2)
	require.NoError(t, err)
	_, err = engine.Reserve(ctx, rideID, 8, 1)
	require.ErrorIs(t, err, ErrInsufficientSeats)
	_, err = engine.Reserve(ctx, rideID, 8, 0)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBusyOnLockWaitTimeout(t *testing.T) {
	store, rideID := newTestStore(t, 4, 4)
	store.lockWait = 50 * time.Millisecond
	engine := NewEngine(store)
	ctx := context.Background()

	// Park a unit of work on the ride lock.
	blocker, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = blocker.RideForUpdate(ctx, rideID)
	require.NoError(t, err)

	_, err = engine.Reserve(ctx, rideID, 7, 1)
	require.ErrorIs(t, err, ErrBusy)

	// Once the blocker ends, the same call goes through.
	require.NoError(t, blocker.Rollback())
	_, err = engine.Reserve(ctx, rideID, 7, 1)
	require.NoError(t, err)
}

func TestOtherRidesUnaffectedByHeldLock(t *testing.T) {
	store, rideA := newTestStore(t, 4, 4)
	rideB := store.AddRide(model.Ride{
		DriverID:       2,
		Title:          "Evening return",
		Origin:         "Tel Aviv",
		Destination:    "Haifa",
		DepartsAt:      time.Now().UTC().Add(36 * time.Hour),
		SeatsTotal:     3,
		SeatsAvailable: 3,
	})
	store.lockWait = 50 * time.Millisecond
	engine := NewEngine(store)
	ctx := context.Background()

	blocker, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = blocker.RideForUpdate(ctx, rideA)
	require.NoError(t, err)
	defer func() { _ = blocker.Rollback() }()

	// A lock on ride A must not serialize ride B.
	out, err := engine.Reserve(ctx, rideB, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), out.Ride.SeatsAvailable)
}

func TestConservationAcrossMixedSequence(t *testing.T) {
	store, rideID := newTestStore(t, 8, 8)
	engine := NewEngine(store)
	ctx := context.Background()

	steps := []struct {
		rider uint64
		seats int
	}{
		{1, 2}, {2, 1}, {1, 1}, {3, 3}, {2, 5}, {3, 1}, {4, 1}, {4, 1},
	}
	for _, s := range steps {
		_, _ = engine.Reserve(ctx, rideID, s.rider, s.seats)
		requireConserved(t, store, rideID)
	}

	// At most one booking row per rider.
	seen := make(map[uint64]int)
	for _, b := range store.BookingsByRide(rideID) {
		seen[b.RiderID]++
	}
	for rider, n := range seen {
		assert.Equal(t, 1, n, "rider %d has duplicate booking rows", rider)
	}
}
