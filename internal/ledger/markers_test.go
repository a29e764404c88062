package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/uptimer/internal/state/memory"
)

func TestMarkersDailyGate(t *testing.T) {
	ctx := context.Background()
	m := NewMarkers(memory.New())
	day1 := time.Date(2025, 6, 10, 0, 5, 0, 0, time.UTC)
	day1Later := day1.Add(20 * time.Hour)
	day2 := day1.Add(24 * time.Hour)

	due, err := m.IsDue(ctx, LastCleanup, day1)
	require.NoError(t, err)
	assert.True(t, due, "never fired means due")

	require.NoError(t, m.Mark(ctx, LastCleanup, day1))

	due, err = m.IsDue(ctx, LastCleanup, day1Later)
	require.NoError(t, err)
	assert.False(t, due)

	due, err = m.IsDue(ctx, LastSummary, day1Later)
	require.NoError(t, err)
	assert.True(t, due, "markers are independent")

	due, err = m.IsDue(ctx, LastCleanup, day2)
	require.NoError(t, err)
	assert.True(t, due)

	last, err := m.Last(ctx, LastCleanup)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", last)
}

func TestMarkersClaimOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMarkers(memory.New())
	today := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	first, err := m.Claim(ctx, LastSummary, today)
	require.NoError(t, err)
	second, err := m.Claim(ctx, LastSummary, today)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestMarkersInvalidDateIsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Write(ctx, MarkersKey, []byte(`{"last_cleanup_date":"yesterday"}`)))

	m := NewMarkers(store)
	last, err := m.Last(ctx, LastCleanup)
	require.NoError(t, err)
	assert.Empty(t, last)
}
