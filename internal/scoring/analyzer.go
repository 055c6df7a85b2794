package scoring

import (
	"context"

	"github.com/avelins/traintrack/internal/history"
	"github.com/avelins/traintrack/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type historySource interface {
	History(ctx context.Context) history.ExerciseHistory
}

// Analyzer derives progress series from the persisted workout history.
type Analyzer struct {
	source historySource
}

func NewAnalyzer(source historySource) *Analyzer {
	return &Analyzer{
		source: source,
	}
}

// ExerciseProgress returns the Adjusted Volume series for one exercise,
// ascending by date. An unknown exercise yields an empty series.
func (a *Analyzer) ExerciseProgress(ctx context.Context, exerciseName string) []AdjustedVolumeSample {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.exerciseProgress")
	defer span.End()
	span.SetAttributes(attribute.String("exercise", exerciseName))

	return ComputeHistory(a.source.History(ctx)[exerciseName])
}

// AllProgress computes the series for every exercise with history.
func (a *Analyzer) AllProgress(ctx context.Context) map[string][]AdjustedVolumeSample {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.allProgress")
	defer span.End()

	all := a.source.History(ctx)
	progress := make(map[string][]AdjustedVolumeSample, len(all))
	for name, entries := range all {
		samples := ComputeHistory(entries)
		if len(samples) == 0 {
			continue
		}
		progress[name] = samples
	}
	return progress
}
