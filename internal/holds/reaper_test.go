package holds_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickio/internal/holds"
	"tickio/internal/logger"
	"tickio/internal/models"
)

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	store, bunDB := setupStore(t)
	defer bunDB.Close()

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return base }

	_, err := store.UpsertHold(context.Background(), "tt-1", models.AuthenticatedUser("1"), 1)
	require.NoError(t, err)
	_, err = store.UpsertHold(context.Background(), "tt-2", models.AuthenticatedUser("2"), 2)
	require.NoError(t, err)

	reaper := holds.NewReaper(store, time.Minute, logger.NewTestLogger())

	// Nothing has expired yet.
	removed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// Jump past the TTL; both holds are now dead.
	store.Now = func() time.Time { return base.Add(11 * time.Minute) }
	removed, err = reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// A second sweep finds nothing.
	removed, err = reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store, bunDB := setupStore(t)
	defer bunDB.Close()

	reaper := holds.NewReaper(store, 5*time.Millisecond, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}
