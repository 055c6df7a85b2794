package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avelins/traintrack/internal/store"
	"github.com/avelins/traintrack/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryStore() (*HistoryStore, *store.MemStore) {
	memStore := store.NewMemStore()
	return NewHistoryStore(memStore, metrics.NewTestManager()), memStore
}

func testEntry(date time.Time) WorkoutEntry {
	return WorkoutEntry{
		Date:            date,
		RestTimeSeconds: 120,
		CompletedSets:   3,
		TotalSets:       3,
	}
}

func TestHistoryStore_SaveEntry(t *testing.T) {
	ctx := context.Background()
	hs, _ := newTestHistoryStore()

	assert.Empty(t, hs.History(ctx))
	assert.Nil(t, hs.LastEntry(ctx, "bench press"))

	date := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	hs.SaveEntry(ctx, "bench press", testEntry(date))
	hs.SaveEntry(ctx, "bench press", testEntry(date.Add(time.Hour)))
	hs.SaveEntry(ctx, "squat", testEntry(date))

	all := hs.History(ctx)
	require.Len(t, all, 2)
	require.Len(t, all["bench press"], 2)
	require.Len(t, all["squat"], 1)

	// newest first
	assert.Equal(t, date.Add(time.Hour), all["bench press"][0].Date)
	assert.Equal(t, date, all["bench press"][1].Date)

	last := hs.LastEntry(ctx, "bench press")
	require.NotNil(t, last)
	assert.Equal(t, date.Add(time.Hour), last.Date)
}

func TestHistoryStore_SaveEntry_DedupWindow(t *testing.T) {
	ctx := context.Background()
	hs, _ := newTestHistoryStore()

	date := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	first := testEntry(date)
	hs.SaveEntry(ctx, "bench press", first)

	// 999 ms later: same logical save, replaces in place
	second := testEntry(date.Add(999 * time.Millisecond))
	second.CompletedSets = 2
	hs.SaveEntry(ctx, "bench press", second)

	entries := hs.History(ctx)["bench press"]
	require.Len(t, entries, 1)
	assert.Equal(t, second.Date, entries[0].Date)
	assert.Equal(t, 2, entries[0].CompletedSets)

	// exactly 1 s apart: a new entry
	third := testEntry(second.Date.Add(time.Second))
	hs.SaveEntry(ctx, "bench press", third)
	require.Len(t, hs.History(ctx)["bench press"], 2)

	// a save within the window of only the older stored entry replaces
	// it at its position, not at the head
	fourth := testEntry(third.Date.Add(2 * time.Second))
	hs.SaveEntry(ctx, "bench press", fourth)
	older := testEntry(second.Date.Add(-500 * time.Millisecond))
	older.CompletedSets = 1
	hs.SaveEntry(ctx, "bench press", older)
	entries = hs.History(ctx)["bench press"]
	require.Len(t, entries, 3)
	assert.Equal(t, fourth.Date, entries[0].Date)
	assert.Equal(t, third.Date, entries[1].Date)
	assert.Equal(t, older.Date, entries[2].Date)
	assert.Equal(t, 1, entries[2].CompletedSets)
}

func TestHistoryStore_SaveEntry_RetentionCap(t *testing.T) {
	ctx := context.Background()
	hs, _ := newTestHistoryStore()

	date := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		hs.SaveEntry(ctx, "deadlift", testEntry(date.Add(time.Duration(i)*time.Hour)))
	}

	entries := hs.History(ctx)["deadlift"]
	require.Len(t, entries, maxEntriesPerExercise)

	// the survivors are the 50 most recent, newest first
	assert.Equal(t, date.Add(59*time.Hour), entries[0].Date)
	assert.Equal(t, date.Add(10*time.Hour), entries[len(entries)-1].Date)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Date.Before(entries[i-1].Date))
	}
}

func TestHistoryStore_RemoveDuplicates(t *testing.T) {
	ctx := context.Background()
	hs, memStore := newTestHistoryStore()

	date := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	// seed the raw document directly to simulate duplicates written by
	// concurrent saves
	seeded := ExerciseHistory{
		"bench press": {
			testEntry(date.Add(2 * time.Second)),
			testEntry(date.Add(2*time.Second + 300*time.Millisecond)),
			testEntry(date),
			testEntry(date.Add(400 * time.Millisecond)),
		},
	}
	raw, err := json.Marshal(seeded)
	require.NoError(t, err)
	require.NoError(t, memStore.Set(ctx, historyKey, raw))

	hs.RemoveDuplicates(ctx)

	entries := hs.History(ctx)["bench press"]
	require.Len(t, entries, 2)
	assert.Equal(t, date.Add(2*time.Second), entries[0].Date)
	assert.Equal(t, date, entries[1].Date)
}

func TestHistoryStore_History_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	hs, memStore := newTestHistoryStore()

	require.NoError(t, memStore.Set(ctx, historyKey, []byte("{not json")))

	// corrupt history reads as empty, never errors
	assert.Empty(t, hs.History(ctx))
	assert.Nil(t, hs.LastEntry(ctx, "bench press"))

	// and a save simply starts over
	hs.SaveEntry(ctx, "bench press", testEntry(time.Now()))
	assert.Len(t, hs.History(ctx)["bench press"], 1)
}

func TestHistoryStore_StorageFailure(t *testing.T) {
	ctx := context.Background()
	hs := NewHistoryStore(&faultyStore{}, metrics.NewTestManager())

	// every operation degrades to empty / no-op, nothing panics or errors
	assert.Empty(t, hs.History(ctx))
	hs.SaveEntry(ctx, "bench press", testEntry(time.Now()))
	assert.Nil(t, hs.LastEntry(ctx, "bench press"))
	hs.RemoveDuplicates(ctx)
	hs.Clear(ctx)
	hs.SaveDefaults(ctx, "bench press", 60, 120)
	assert.Zero(t, hs.Defaults(ctx, "bench press"))
}

func TestHistoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	hs, _ := newTestHistoryStore()

	hs.SaveEntry(ctx, "bench press", testEntry(time.Now()))
	hs.SaveDefaults(ctx, "bench press", 60, 120)
	require.NotEmpty(t, hs.History(ctx))

	hs.Clear(ctx)

	assert.Empty(t, hs.History(ctx))
	// defaults are preferences, they survive a history wipe
	defaults := hs.Defaults(ctx, "bench press")
	require.NotNil(t, defaults.Weight)
	assert.Equal(t, 60.0, *defaults.Weight)
}

func TestHistoryStore_Defaults(t *testing.T) {
	ctx := context.Background()
	hs, _ := newTestHistoryStore()

	assert.Zero(t, hs.Defaults(ctx, "bench press"))

	hs.SaveDefaults(ctx, "bench press", 60, 120)
	defaults := hs.Defaults(ctx, "bench press")
	require.NotNil(t, defaults.Weight)
	require.NotNil(t, defaults.RestTime)
	assert.Equal(t, 60.0, *defaults.Weight)
	assert.Equal(t, 120, *defaults.RestTime)

	// zero and negative values leave the stored fields untouched
	hs.SaveDefaults(ctx, "bench press", 0, -30)
	defaults = hs.Defaults(ctx, "bench press")
	require.NotNil(t, defaults.Weight)
	require.NotNil(t, defaults.RestTime)
	assert.Equal(t, 60.0, *defaults.Weight)
	assert.Equal(t, 120, *defaults.RestTime)

	// a single positive field updates only that field
	hs.SaveDefaults(ctx, "bench press", 62.5, 0)
	defaults = hs.Defaults(ctx, "bench press")
	assert.Equal(t, 62.5, *defaults.Weight)
	assert.Equal(t, 120, *defaults.RestTime)
}

// faultyStore fails every operation, for exercising the degrade paths.
type faultyStore struct{}

func (fs *faultyStore) Get(_ context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("get %s: storage unavailable", key)
}

func (fs *faultyStore) Set(_ context.Context, key string, _ []byte) error {
	return fmt.Errorf("set %s: storage unavailable", key)
}

func (fs *faultyStore) Delete(_ context.Context, key string) error {
	return fmt.Errorf("delete %s: storage unavailable", key)
}

func (fs *faultyStore) Keys(_ context.Context, _ string) ([]string, error) {
	return nil, errors.New("keys: storage unavailable")
}
