package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/state/memory"
)

func intPtr(v int) *int { return &v }

func upResult(url string, at time.Time) domain.CheckResult {
	return domain.CheckResult{
		TargetURL:  url,
		Reachable:  true,
		HTTPStatus: intPtr(200),
		LatencyMS:  12.5,
		Detail:     "SUCCESS: HTTP 200",
		CheckedAt:  at,
	}
}

func downResult(url string, at time.Time) domain.CheckResult {
	return domain.CheckResult{
		TargetURL: url,
		Reachable: false,
		LatencyMS: 10000,
		Detail:    "CONNECTION ERROR: timeout",
		CheckedAt: at,
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	up := &domain.StatusRecord{Status: domain.StatusUp, LastChecked: now}
	down := &domain.StatusRecord{Status: domain.StatusDown, LastChecked: now}

	tests := []struct {
		name     string
		previous *domain.StatusRecord
		result   domain.CheckResult
		want     TransitionKind
		notifies bool
	}{
		{"first cycle up", nil, upResult("u", now), UpUp, false},
		{"first cycle down", nil, downResult("u", now), UpDown, true},
		{"up to up", up, upResult("u", now), UpUp, false},
		{"up to down", up, downResult("u", now), UpDown, true},
		{"down to up", down, upResult("u", now), DownUp, true},
		{"down to down", down, downResult("u", now), DownDown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transition(tt.previous, tt.result)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.notifies, got.Notifies())
		})
	}
}

func TestStatusLedgerPersistAndPrevious(t *testing.T) {
	ctx := context.Background()
	l := NewStatusLedger(memory.New())
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	prev, err := l.Previous(ctx, "https://a.example")
	require.NoError(t, err)
	assert.Nil(t, prev, "unknown url has no previous record")

	require.NoError(t, l.Persist(ctx, downResult("https://a.example", now)))
	require.NoError(t, l.Persist(ctx, upResult("https://b.example", now)))

	prev, err = l.Previous(ctx, "https://a.example")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, domain.StatusDown, prev.Status)
	assert.Nil(t, prev.HTTPStatus)

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	require.NotNil(t, snap["https://b.example"].HTTPStatus)
	assert.Equal(t, 200, *snap["https://b.example"].HTTPStatus)
}

func TestStatusLedgerPruneExcept(t *testing.T) {
	ctx := context.Background()
	l := NewStatusLedger(memory.New())
	now := time.Now()

	for _, u := range []string{"https://a", "https://b", "https://c"} {
		require.NoError(t, l.Persist(ctx, upResult(u, now)))
	}

	orphans, err := l.OrphansOf(ctx, []string{"https://a"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://b", "https://c"}, orphans)

	removed, err := l.PruneExcept(ctx, []string{"https://a"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = l.PruneExcept(ctx, []string{"https://a"})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestStatusLedgerCorruptDocumentFailsOpen(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	l := NewStatusLedger(store, WithClock(func() time.Time { return clock }))

	require.NoError(t, store.Write(ctx, StatusKey, []byte(`{not json`)))

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)

	quarantined, err := store.Read(ctx, StatusKey+".corrupt-20250610T080000Z")
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(quarantined))

	// a write after corruption starts from empty state
	require.NoError(t, l.Persist(ctx, upResult("https://a", clock)))
	snap, err = l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestStatusLedgerInvalidRecordIsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewStatusLedger(store)

	require.NoError(t, store.Write(ctx, StatusKey,
		[]byte(`{"https://a":{"status":"sideways","last_checked":"2025-06-10T08:00:00Z"}}`)))

	prev, err := l.Previous(ctx, "https://a")
	require.NoError(t, err)
	assert.Nil(t, prev)
}
