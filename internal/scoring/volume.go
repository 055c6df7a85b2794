package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/avelins/traintrack/internal/history"
)

const (
	// reference rest time; shorter rest scores as higher intensity
	referenceRestSeconds = 180
	restEfficiencyMin    = 0.5
	restEfficiencyMax    = 1.5

	// substitute load per rep for bodyweight sets, to keep bodyweight
	// volume at a comparable magnitude to light external load
	bodyweightRepLoad = 2

	maxOverloadBonus = 0.5
)

// AdjustedVolumeSample is one scored workout session. AdjustedVolume is
// the product of the four factors; the factors are carried along for
// display and auditability.
type AdjustedVolumeSample struct {
	Date                     time.Time `json:"date"`
	AdjustedVolume           int       `json:"adjustedVolume"`
	VolumeLoad               float64   `json:"volumeLoad"`
	RestEfficiency           float64   `json:"restEfficiency"`
	ConsistencyFactor        float64   `json:"consistencyFactor"`
	ProgressiveOverloadBonus float64   `json:"progressiveOverloadBonus"`
}

// VolumeLoad sums weight x reps over all sets. A set without weight but
// with reps counts as bodyweight work at bodyweightRepLoad per rep; a
// set with neither contributes nothing.
func VolumeLoad(sets []history.SetData) float64 {
	var total float64
	for _, set := range sets {
		weight := deref(set.Weight)
		reps := deref(set.Repeats)
		if weight > 0 && reps > 0 {
			total += weight * reps
		} else if reps > 0 {
			total += reps * bodyweightRepLoad
		}
	}
	return total
}

// RestEfficiency maps the configured rest interval to an intensity
// factor: 1.0 at the reference rest, higher for shorter rest, clamped
// to [0.5, 1.5].
func RestEfficiency(restSeconds int) float64 {
	re := 1 + float64(referenceRestSeconds-restSeconds)/300
	if re < restEfficiencyMin {
		return restEfficiencyMin
	}
	if re > restEfficiencyMax {
		return restEfficiencyMax
	}
	return re
}

// ConsistencyFactor is the fraction of planned sets actually completed.
// totalSets must be positive; that precondition is owned by the caller.
func ConsistencyFactor(completedSets, totalSets int) float64 {
	return float64(completedSets) / float64(totalSets)
}

// ProgressiveOverloadBonus rewards within-session improvement over the
// first set's load. Declines never penalize and the bonus caps at 50%.
// The baseline is the literal first set's weight x reps, without the
// bodyweight substitution VolumeLoad applies.
func ProgressiveOverloadBonus(sets []history.SetData) float64 {
	if len(sets) < 2 {
		return 1
	}

	firstLoad := deref(sets[0].Weight) * deref(sets[0].Repeats)
	if firstLoad == 0 {
		// no relative improvement over a zero baseline
		return 1
	}

	var improvementSum float64
	var contributing int
	for _, set := range sets[1:] {
		load := deref(set.Weight) * deref(set.Repeats)
		if load <= 0 {
			continue
		}
		improvementSum += (load - firstLoad) / firstLoad
		contributing++
	}
	if contributing == 0 {
		return 1
	}

	avgImprovement := improvementSum / float64(contributing)
	if avgImprovement < 0 {
		avgImprovement = 0
	}
	if avgImprovement > maxOverloadBonus {
		avgImprovement = maxOverloadBonus
	}

	return 1 + avgImprovement
}

// ComputeSample scores one entry. Factors are rounded to 2 decimals for
// display; the final score is computed from the unrounded factors and
// rounded to an integer.
func ComputeSample(entry history.WorkoutEntry) AdjustedVolumeSample {
	volumeLoad := VolumeLoad(entry.SetsData)
	restEfficiency := RestEfficiency(entry.RestTimeSeconds)
	consistency := ConsistencyFactor(entry.CompletedSets, entry.TotalSets)
	overloadBonus := ProgressiveOverloadBonus(entry.SetsData)

	return AdjustedVolumeSample{
		Date:                     entry.Date,
		AdjustedVolume:           int(math.Round(volumeLoad * restEfficiency * consistency * overloadBonus)),
		VolumeLoad:               math.Round(volumeLoad),
		RestEfficiency:           round2(restEfficiency),
		ConsistencyFactor:        round2(consistency),
		ProgressiveOverloadBonus: round2(overloadBonus),
	}
}

// ComputeHistory converts an entry sequence into the Adjusted Volume
// time series: entries without per-set data are skipped, the rest are
// scored and sorted ascending by date for charting.
func ComputeHistory(entries []history.WorkoutEntry) []AdjustedVolumeSample {
	var samples []AdjustedVolumeSample
	for _, entry := range entries {
		if len(entry.SetsData) == 0 {
			continue
		}
		samples = append(samples, ComputeSample(entry))
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})

	return samples
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
