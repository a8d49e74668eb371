package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloseService counts close calls and can fail a configurable number
// of times before succeeding.
type fakeCloseService struct {
	mu        sync.Mutex
	calls     map[uuid.UUID]int
	failTimes int
	failWith  error
}

func newFakeCloseService() *fakeCloseService {
	return &fakeCloseService{calls: make(map[uuid.UUID]int)}
}

func (f *fakeCloseService) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[auctionID]++
	if f.failTimes > 0 {
		f.failTimes--
		return nil, f.failWith
	}
	return &shared.Outcome{AuctionID: auctionID, Result: shared.OutcomeNoSale}, nil
}

func (f *fakeCloseService) callCount(auctionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[auctionID]
}

type fakeActivator struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
}

func newFakeActivator() *fakeActivator {
	return &fakeActivator{calls: make(map[uuid.UUID]int)}
}

func (f *fakeActivator) ActivateAuction(ctx context.Context, auctionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[auctionID]++
	return nil
}

func (f *fakeActivator) callCount(auctionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[auctionID]
}

type staticLister struct {
	entries []outbound.ScheduleEntry
}

func (l *staticLister) ListActiveSchedules(ctx context.Context) ([]outbound.ScheduleEntry, error) {
	return l.entries, nil
}

func newTestScheduler(closeService CloseService) (*ClosingScheduler, *MemoryScheduleStore) {
	store := NewMemoryScheduleStore()
	s := NewClosingScheduler(ClosingSchedulerParams{
		Store:        store,
		CloseService: closeService,
		CloseRetries: 3,
		RetryBackoff: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	return s, store
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, condition(), "condition not met within %s", timeout)
}

func TestSchedulerFiresAtDeadline(t *testing.T) {
	closeService := newFakeCloseService()
	s, store := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(30*time.Millisecond)))

	waitFor(t, time.Second, func() bool { return closeService.callCount(auctionID) == 1 })

	// The durable entry is gone once the close completed
	waitFor(t, time.Second, func() bool {
		due, err := store.Due(context.Background(), time.Now().Add(time.Hour))
		return err == nil && len(due) == 0
	})
}

func TestSchedulerDoesNotFireBeforeDeadline(t *testing.T) {
	closeService := newFakeCloseService()
	s, _ := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(200*time.Millisecond)))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, closeService.callCount(auctionID))

	waitFor(t, time.Second, func() bool { return closeService.callCount(auctionID) == 1 })
}

func TestSchedulerPastDueFiresImmediately(t *testing.T) {
	closeService := newFakeCloseService()
	s, _ := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(-time.Minute)))

	waitFor(t, time.Second, func() bool { return closeService.callCount(auctionID) == 1 })
}

func TestSchedulerRescheduleReplacesTimer(t *testing.T) {
	closeService := newFakeCloseService()
	s, _ := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(time.Hour)))
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(30*time.Millisecond)))

	waitFor(t, time.Second, func() bool { return closeService.callCount(auctionID) == 1 })

	// Only one timer survived the replacement
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, closeService.callCount(auctionID))
}

func TestSchedulerCancel(t *testing.T) {
	closeService := newFakeCloseService()
	s, store := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(50*time.Millisecond)))
	s.Cancel(auctionID)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, closeService.callCount(auctionID))

	due, err := store.Due(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSchedulerRetriesFailedClose(t *testing.T) {
	closeService := newFakeCloseService()
	closeService.failTimes = 2
	closeService.failWith = errors.New("db unavailable")

	s, _ := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(10*time.Millisecond)))

	waitFor(t, 2*time.Second, func() bool { return closeService.callCount(auctionID) == 3 })
}

func TestSchedulerKeepsScheduleAfterExhaustedRetries(t *testing.T) {
	closeService := newFakeCloseService()
	closeService.failTimes = 100
	closeService.failWith = errors.New("db unavailable")

	s, store := newTestScheduler(closeService)
	defer s.Stop()

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(10*time.Millisecond)))

	waitFor(t, 2*time.Second, func() bool { return closeService.callCount(auctionID) == 3 })
	time.Sleep(50 * time.Millisecond)

	// The durable entry survives for the next recovery scan
	due, err := store.Due(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{auctionID}, due)
}

func TestSchedulerRecoverActive(t *testing.T) {
	closeService := newFakeCloseService()
	s, _ := newTestScheduler(closeService)
	defer s.Stop()

	pastDue := uuid.New()
	upcoming := uuid.New()
	lister := &staticLister{entries: []outbound.ScheduleEntry{
		{AuctionID: pastDue, EndTime: time.Now().Add(-time.Minute)},
		{AuctionID: upcoming, EndTime: time.Now().Add(time.Hour)},
	}}

	require.NoError(t, s.RecoverActive(context.Background(), lister))

	waitFor(t, time.Second, func() bool { return closeService.callCount(pastDue) == 1 })
	assert.Equal(t, 0, closeService.callCount(upcoming))
}

func TestSchedulerStopPreventsPendingFire(t *testing.T) {
	closeService := newFakeCloseService()
	s, _ := newTestScheduler(closeService)

	auctionID := uuid.New()
	require.NoError(t, s.Schedule(auctionID, time.Now().Add(30*time.Millisecond)))
	s.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, closeService.callCount(auctionID))
}

func TestSchedulerStopBlocksLateTimerCallbacks(t *testing.T) {
	closeService := newFakeCloseService()
	activator := newFakeActivator()

	store := NewMemoryScheduleStore()
	s := NewClosingScheduler(ClosingSchedulerParams{
		Store:        store,
		CloseService: closeService,
		Activator:    activator,
		RetryBackoff: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	s.Stop()

	// A timer that went off while Stop held the mutex lands here after
	// Stop returns. It must neither run the task nor touch the
	// WaitGroup that Stop already waited on.
	auctionID := uuid.New()
	s.fireClose(auctionID, time.Now().Add(-time.Minute))
	s.fireStart(auctionID)

	assert.Equal(t, 0, closeService.callCount(auctionID))
	assert.Equal(t, 0, activator.callCount(auctionID))
}

func TestSchedulerRecoveryDropsStaleEntries(t *testing.T) {
	closeService := newFakeCloseService()
	s, store := newTestScheduler(closeService)
	defer s.Stop()

	// Durable entry for an auction the lifecycle state no longer
	// reports as active: it was resolved before the restart.
	stale := uuid.New()
	require.NoError(t, store.Add(context.Background(), stale, time.Now().Add(-time.Minute)))

	require.NoError(t, s.RecoverActive(context.Background(), &staticLister{}))

	due, err := store.Due(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Equal(t, 0, closeService.callCount(stale))
}

func TestSchedulerScheduleStart(t *testing.T) {
	closeService := newFakeCloseService()
	activator := newFakeActivator()

	store := NewMemoryScheduleStore()
	s := NewClosingScheduler(ClosingSchedulerParams{
		Store:        store,
		CloseService: closeService,
		Activator:    activator,
		RetryBackoff: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	defer s.Stop()

	auctionID := uuid.New()
	s.ScheduleStart(auctionID, time.Now().Add(20*time.Millisecond))

	waitFor(t, time.Second, func() bool { return activator.callCount(auctionID) == 1 })
}

func TestMemoryScheduleStore(t *testing.T) {
	store := NewMemoryScheduleStore()
	ctx := context.Background()

	early := uuid.New()
	late := uuid.New()
	now := time.Now()

	require.NoError(t, store.Add(ctx, early, now.Add(-time.Minute)))
	require.NoError(t, store.Add(ctx, late, now.Add(time.Hour)))

	due, err := store.Due(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early}, due)

	require.NoError(t, store.Remove(ctx, early))
	due, err = store.Due(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}
