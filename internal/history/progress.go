package history

import (
	"context"

	"github.com/avelins/traintrack/internal/telemetry/tracing"
	"github.com/avelins/traintrack/pkg"
)

// DailyProgress returns the progress record for the training type, or
// nil when nothing was recorded today. A record from an earlier
// calendar day is treated as absent.
func (hs *HistoryStore) DailyProgress(ctx context.Context, trainingType string) *DailyProgress {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.dailyProgress")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	progress := make(map[string]DailyProgress)
	hs.loadJSON(ctx, progressKey, &progress)

	record, ok := progress[trainingType]
	if !ok || record.Date != pkg.DayString(hs.nowFunc()) {
		return nil
	}
	return &record
}

// SetExerciseProgress records completed sets for one exercise within
// today's run of the training type. A record left over from another day
// is reset first.
func (hs *HistoryStore) SetExerciseProgress(ctx context.Context, trainingType, exerciseName string, completedSets int) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.setExerciseProgress")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	progress := make(map[string]DailyProgress)
	hs.loadJSON(ctx, progressKey, &progress)

	today := pkg.DayString(hs.nowFunc())
	record := progress[trainingType]
	if record.Date != today {
		record = DailyProgress{
			Date:             today,
			ExerciseProgress: make(map[string]int),
		}
	}
	if record.ExerciseProgress == nil {
		record.ExerciseProgress = make(map[string]int)
	}
	record.ExerciseProgress[exerciseName] = completedSets
	progress[trainingType] = record

	hs.saveJSON(ctx, progressKey, progress)
}

// ClearDailyProgress drops today's (and any stale) progress record for
// the training type.
func (hs *HistoryStore) ClearDailyProgress(ctx context.Context, trainingType string) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.clearDailyProgress")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	progress := make(map[string]DailyProgress)
	hs.loadJSON(ctx, progressKey, &progress)

	if _, ok := progress[trainingType]; !ok {
		return
	}
	delete(progress, trainingType)
	hs.saveJSON(ctx, progressKey, progress)
}

// AddCompletion prepends a finished training session to the per-type
// completion log, capped at the most recent records.
func (hs *HistoryStore) AddCompletion(ctx context.Context, completion TrainingCompletion) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.addCompletion")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	completions := make(map[string][]TrainingCompletion)
	hs.loadJSON(ctx, completionsKey, &completions)

	records := append([]TrainingCompletion{completion}, completions[completion.TrainingType]...)
	if len(records) > maxCompletions {
		records = records[:maxCompletions]
	}
	completions[completion.TrainingType] = records

	hs.saveJSON(ctx, completionsKey, completions)
}

// Completions returns the completion log for the training type, newest
// first.
func (hs *HistoryStore) Completions(ctx context.Context, trainingType string) []TrainingCompletion {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.completions")
	defer span.End()

	hs.mutex.Lock()
	defer hs.mutex.Unlock()

	completions := make(map[string][]TrainingCompletion)
	hs.loadJSON(ctx, completionsKey, &completions)
	return completions[trainingType]
}
