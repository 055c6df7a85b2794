package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/avelins/traintrack/internal/store"
	"github.com/avelins/traintrack/internal/telemetry/metrics"
	"github.com/avelins/traintrack/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	historyKey     = "exercise-history"
	defaultsKey    = "exercise-defaults"
	progressKey    = "daily-training-progress"
	completionsKey = "training-completions"

	// two saves closer than this are the same logical save
	dedupWindow = time.Second

	maxEntriesPerExercise = 50
	maxCompletions        = 100
)

// HistoryStore is the durable per-exercise archive of completed
// workouts and saved defaults. All operations are best-effort: storage
// failures are logged and degrade to empty reads / no-op writes, never
// surfaced to the caller. Workout history is telemetry-like data and
// must not break the workout flow around it.
type HistoryStore struct {
	store   store.Store
	metrics *metrics.Manager
	mutex   sync.Mutex
	nowFunc func() time.Time
}

func NewHistoryStore(kvStore store.Store, metricsManager *metrics.Manager) *HistoryStore {
	return &HistoryStore{
		store:   kvStore,
		metrics: metricsManager,
		nowFunc: time.Now,
	}
}

// History returns the full exercise history map. Absent or corrupt
// persisted data reads as an empty map.
func (hs *HistoryStore) History(ctx context.Context) ExerciseHistory {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.getHistory")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()
	return hs.loadHistory(ctx)
}

// SaveEntry persists one completed exercise. An existing entry within
// the dedup window is replaced in place, otherwise the entry is
// prepended; the per-exercise sequence is capped, oldest dropped first.
func (hs *HistoryStore) SaveEntry(ctx context.Context, exerciseName string, entry WorkoutEntry) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.saveEntry")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	all := hs.loadHistory(ctx)
	entries := all[exerciseName]

	replaced := false
	for i := range entries {
		if absDuration(entry.Date.Sub(entries[i].Date)) < dedupWindow {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append([]WorkoutEntry{entry}, entries...)
	}

	if len(entries) > maxEntriesPerExercise {
		hs.metrics.CounterHistoryEvictions.Add(float64(len(entries) - maxEntriesPerExercise))
		entries = entries[:maxEntriesPerExercise]
	}

	all[exerciseName] = entries
	if hs.saveJSON(ctx, historyKey, all) {
		hs.metrics.CounterHistorySaves.Inc()
	}
}

// LastEntry returns the most recent entry for the exercise, or nil.
func (hs *HistoryStore) LastEntry(ctx context.Context, exerciseName string) *WorkoutEntry {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.lastEntry")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	entries := hs.loadHistory(ctx)[exerciseName]
	if len(entries) == 0 {
		return nil
	}
	entry := entries[0]
	return &entry
}

// RemoveDuplicates sweeps every exercise sequence top to bottom and
// drops entries within the dedup window of an already kept one. The map
// is persisted only when something was actually dropped.
func (hs *HistoryStore) RemoveDuplicates(ctx context.Context) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.removeDuplicates")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	all := hs.loadHistory(ctx)
	dropped := false

	for name, entries := range all {
		var kept []WorkoutEntry
		for _, entry := range entries {
			duplicate := false
			for _, keptEntry := range kept {
				if absDuration(entry.Date.Sub(keptEntry.Date)) < dedupWindow {
					duplicate = true
					break
				}
			}
			if duplicate {
				dropped = true
				continue
			}
			kept = append(kept, entry)
		}
		all[name] = kept
	}

	if dropped {
		hs.saveJSON(ctx, historyKey, all)
	}
}

// Clear drops all persisted workout records: history, daily progress
// and completions. Saved defaults survive, they are preferences rather
// than records.
func (hs *HistoryStore) Clear(ctx context.Context) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.clear")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	err := multierr.Combine(
		hs.store.Delete(ctx, historyKey),
		hs.store.Delete(ctx, progressKey),
		hs.store.Delete(ctx, completionsKey),
	)
	if err != nil {
		hs.metrics.CounterStorageErrors.Inc()
		log.Errorf("clear workout history: %s", err)
	}
}

// Defaults returns the saved defaults for the exercise; zero value when
// nothing was saved yet.
func (hs *HistoryStore) Defaults(ctx context.Context, exerciseName string) ExerciseDefaults {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.getDefaults")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	defaults := make(map[string]ExerciseDefaults)
	hs.loadJSON(ctx, defaultsKey, &defaults)
	return defaults[exerciseName]
}

// SaveDefaults stores the preferred weight and rest time for the
// exercise. A field is only overwritten when the provided value is
// positive; zero or negative values leave the stored default untouched.
func (hs *HistoryStore) SaveDefaults(ctx context.Context, exerciseName string, weight float64, restTime int) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.saveDefaults")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	defaults := make(map[string]ExerciseDefaults)
	hs.loadJSON(ctx, defaultsKey, &defaults)

	current := defaults[exerciseName]
	if weight > 0 {
		current.Weight = &weight
	}
	if restTime > 0 {
		current.RestTime = &restTime
	}
	defaults[exerciseName] = current

	hs.saveJSON(ctx, defaultsKey, defaults)
}

func (hs *HistoryStore) loadHistory(ctx context.Context) ExerciseHistory {
	all := make(ExerciseHistory)
	hs.loadJSON(ctx, historyKey, &all)
	return all
}

// loadJSON fills out from the stored document under key. Absence and
// failures read as "nothing stored"; failures are logged and counted.
func (hs *HistoryStore) loadJSON(ctx context.Context, key string, out any) {
	raw, err := hs.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			hs.metrics.CounterStorageErrors.Inc()
			log.Errorf("load %s: %s", key, err)
		}
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		hs.metrics.CounterStorageErrors.Inc()
		log.Errorf("load %s: corrupt document, treating as empty: %s", key, err)
	}
}

func (hs *HistoryStore) saveJSON(ctx context.Context, key string, v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		hs.metrics.CounterStorageErrors.Inc()
		log.Errorf("save %s: marshal: %s", key, err)
		return false
	}
	if err := hs.store.Set(ctx, key, raw); err != nil {
		hs.metrics.CounterStorageErrors.Inc()
		log.Errorf("save %s: %s", key, err)
		return false
	}
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
