package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/uptimer/internal/state/file"
	"github.com/MrSnakeDoc/uptimer/internal/state/memory"
)

func TestCorruptDocumentQuarantinedOnce(t *testing.T) {
	ctx := context.Background()
	store, err := file.New(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, AlertsKey, []byte(`{not json`)))

	clock := newClock()
	l := NewAlertLedger(store, WithClock(clock.Now))

	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		all, err := l.List(ctx, AlertFilter{})
		require.NoError(t, err)
		assert.Empty(t, all)
	}
	n, err := l.CountOlderThan(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	copies, err := NewQuarantine(store).List(ctx)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, AlertsKey, copies[0].Document)

	raw, err := store.Read(ctx, copies[0].Key)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(raw))

	repaired, err := store.Read(ctx, AlertsKey)
	require.NoError(t, err)
	assert.NotEqual(t, `{not json`, string(repaired))
}

func TestCorruptDocumentRepairedOnStatusRead(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Write(ctx, StatusKey, []byte(`[]`)))

	clock := newClock()
	l := NewStatusLedger(store, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		snap, err := l.Snapshot(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap)
	}

	copies, err := NewQuarantine(store).List(ctx)
	require.NoError(t, err)
	assert.Len(t, copies, 1)
}

func TestParseQuarantineKey(t *testing.T) {
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		key  string
		ok   bool
		want string
	}{
		{QuarantineKey(AlertsKey, at), true, AlertsKey},
		{"status.json.corrupt-20250610T080000Z", true, "status.json"},
		{"status.json", false, ""},
		{"status.json.corrupt-yesterday", false, ""},
		{".corrupt-20250610T080000Z", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := ParseQuarantineKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Document)
				assert.True(t, got.At.Equal(at))
			}
		})
	}
}

func TestQuarantineListAndRemove(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	older := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	require.NoError(t, store.Write(ctx, AlertsKey, []byte(`[]`)))
	require.NoError(t, store.Write(ctx, QuarantineKey(StatusKey, newer), []byte(`x`)))
	require.NoError(t, store.Write(ctx, QuarantineKey(AlertsKey, older), []byte(`y`)))

	q := NewQuarantine(store)
	copies, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, AlertsKey, copies[0].Document)
	assert.Equal(t, StatusKey, copies[1].Document)

	assert.Error(t, q.Remove(ctx, AlertsKey), "live documents are never removed")
	require.NoError(t, q.Remove(ctx, copies[0].Key))

	copies, err = q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, copies, 1)

	_, err = store.Read(ctx, AlertsKey)
	assert.NoError(t, err)
}
