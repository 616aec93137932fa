package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_TryReserveGrantsUntilFullThenWaitlists(t *testing.T) {
	e := newEnv(t)
	e.seedSession("s1", base.Add(2*time.Hour), base.Add(3*time.Hour), 2)
	l := NewLedger(e.store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		out, err := l.TryReserve(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, SeatGranted, out)
	}
	out, err := l.TryReserve(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, SeatWaitlisted, out)

	seats := e.seats("s1")
	assert.Equal(t, 2, seats.Reserved)
	assert.False(t, seats.SeatsAvailable)
	assert.True(t, seats.Waitlisted)
}

func TestLedger_ReleaseReportsWaitlistedSnapshot(t *testing.T) {
	e := newEnv(t)
	e.seedSession("s1", base.Add(2*time.Hour), base.Add(3*time.Hour), 1)
	l := NewLedger(e.store)
	ctx := context.Background()

	_, err := l.TryReserve(ctx, "s1")
	require.NoError(t, err)
	rel, err := l.Release(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ReleaseResult{Released: true, Waitlisted: false}, rel)

	_, _ = l.TryReserve(ctx, "s1")
	_, _ = l.TryReserve(ctx, "s1") // waitlists
	rel, err = l.Release(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ReleaseResult{Released: true, Waitlisted: true}, rel)
	assert.True(t, e.seats("s1").SeatsAvailable)
}

func TestLedger_ReleaseNeverUnderflows(t *testing.T) {
	e := newEnv(t)
	e.seedSession("s1", base.Add(2*time.Hour), base.Add(3*time.Hour), 1)

	_, err := NewLedger(e.store).Release(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrLedgerUnderflow)
	assert.Equal(t, 0, e.seats("s1").Reserved)
}

func TestLedger_UnknownSession(t *testing.T) {
	e := newEnv(t)
	l := NewLedger(e.store)

	_, err := l.TryReserve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = l.Release(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLedger_CapacityInvariantUnderConcurrency(t *testing.T) {
	e := newEnv(t)
	e.seedSession("s1", base.Add(2*time.Hour), base.Add(3*time.Hour), 5)
	l := NewLedger(e.store)

	const workers = 30
	var mu sync.Mutex
	counts := map[SeatOutcome]int{}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := l.TryReserve(context.Background(), "s1")
			assert.NoError(t, err)
			mu.Lock()
			counts[out]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, counts[SeatGranted])
	assert.Equal(t, workers-5, counts[SeatWaitlisted])
	seats := e.seats("s1")
	assert.Equal(t, 5, seats.Reserved)
	assert.LessOrEqual(t, seats.Reserved, seats.Capacity)
}
