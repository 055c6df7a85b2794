package scoring_test

import (
	"testing"
	"time"

	"github.com/avelins/traintrack/internal/history"
	"github.com/avelins/traintrack/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 {
	return &v
}

func set(weight, reps float64) history.SetData {
	return history.SetData{Weight: fptr(weight), Repeats: fptr(reps)}
}

func TestVolumeLoad(t *testing.T) {
	testCases := []struct {
		name     string
		sets     []history.SetData
		expected float64
	}{
		{"no sets", nil, 0},
		{"weighted set", []history.SetData{set(20, 10)}, 200},
		{"bodyweight set counts reps x 2", []history.SetData{set(0, 10)}, 20},
		{"absent weight counts as bodyweight", []history.SetData{{Repeats: fptr(10)}}, 20},
		{"no reps no volume", []history.SetData{{Repeats: fptr(0)}}, 0},
		{"empty set", []history.SetData{{}}, 0},
		{"weight without reps", []history.SetData{{Weight: fptr(50)}}, 0},
		{"mixed", []history.SetData{set(20, 10), set(0, 10), {}}, 220},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, scoring.VolumeLoad(tc.sets))
		})
	}
}

func TestRestEfficiency(t *testing.T) {
	testCases := []struct {
		restSeconds int
		expected    float64
	}{
		{60, 1.4},
		{120, 1.2},
		{180, 1.0},
		{300, 0.6},
		{0, 1.5},
		{-1000, 1.5}, // clamped at the top
		{10000, 0.5}, // clamped at the bottom
		{-120, 1.5},
		{480, 0.5},
		{30, 1.5},  // last value before the top clamp
		{330, 0.5}, // last value before the bottom clamp
	}

	for _, tc := range testCases {
		assert.InDelta(t, tc.expected, scoring.RestEfficiency(tc.restSeconds), 1e-9, "rest %d", tc.restSeconds)
	}
}

func TestConsistencyFactor(t *testing.T) {
	assert.Equal(t, 1.0, scoring.ConsistencyFactor(3, 3))
	assert.InDelta(t, 0.6666, scoring.ConsistencyFactor(2, 3), 0.001)
	assert.Equal(t, 0.0, scoring.ConsistencyFactor(0, 4))
}

func TestProgressiveOverloadBonus(t *testing.T) {
	testCases := []struct {
		name     string
		sets     []history.SetData
		expected float64
	}{
		{"no sets", nil, 1.0},
		{"single set", []history.SetData{set(100, 5)}, 1.0},
		{"declining load never penalizes", []history.SetData{set(100, 10), set(80, 10), set(60, 10)}, 1.0},
		{"flat load", []history.SetData{set(20, 10), set(20, 10), set(20, 10)}, 1.0},
		{"improvement averaged", []history.SetData{set(100, 10), set(110, 10), set(130, 10)}, 1.2},
		{"bonus capped at 50%", []history.SetData{set(100, 10), set(200, 10), set(300, 10)}, 1.5},
		{"zero baseline", []history.SetData{set(0, 10), set(100, 10)}, 1.0},
		{"zero-load sets skipped", []history.SetData{set(100, 10), set(0, 0), set(120, 10)}, 1.2},
		{"no contributing subsequent set", []history.SetData{set(100, 10), {}, {Repeats: fptr(0)}}, 1.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, scoring.ProgressiveOverloadBonus(tc.sets), 1e-9)
		})
	}
}

func TestComputeSample(t *testing.T) {
	date := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

	sample := scoring.ComputeSample(history.WorkoutEntry{
		Date:            date,
		RestTimeSeconds: 180,
		CompletedSets:   3,
		TotalSets:       3,
		SetsData:        []history.SetData{set(20, 10), set(20, 10), set(20, 10)},
	})

	assert.Equal(t, date, sample.Date)
	assert.Equal(t, 600.0, sample.VolumeLoad)
	assert.Equal(t, 1.0, sample.RestEfficiency)
	assert.Equal(t, 1.0, sample.ConsistencyFactor)
	assert.Equal(t, 1.0, sample.ProgressiveOverloadBonus)
	assert.Equal(t, 600, sample.AdjustedVolume)
}

func TestComputeSample_AllFactors(t *testing.T) {
	// 60s rest -> RE 1.4, 2/3 sets -> CF 0.67, improving loads -> POB
	sample := scoring.ComputeSample(history.WorkoutEntry{
		Date:            time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC),
		RestTimeSeconds: 60,
		CompletedSets:   2,
		TotalSets:       3,
		SetsData:        []history.SetData{set(100, 10), set(110, 10), set(130, 10)},
	})

	assert.Equal(t, 3400.0, sample.VolumeLoad)
	assert.Equal(t, 1.4, sample.RestEfficiency)
	assert.Equal(t, 0.67, sample.ConsistencyFactor)
	assert.Equal(t, 1.2, sample.ProgressiveOverloadBonus)
	// unrounded: 3400 * 1.4 * (2/3) * 1.2 = 3808
	assert.Equal(t, 3808, sample.AdjustedVolume)
}

func TestComputeHistory(t *testing.T) {
	newest := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

	entries := []history.WorkoutEntry{
		{
			// newest first in storage order
			Date:            newest,
			RestTimeSeconds: 180,
			CompletedSets:   3,
			TotalSets:       3,
			SetsData:        []history.SetData{set(25, 10)},
		},
		{
			// legacy entry without per-set data is skipped
			Date:            newest.AddDate(0, 0, -1),
			RestTimeSeconds: 180,
			CompletedSets:   3,
			TotalSets:       3,
		},
		{
			Date:            newest.AddDate(0, 0, -2),
			RestTimeSeconds: 180,
			CompletedSets:   3,
			TotalSets:       3,
			SetsData:        []history.SetData{set(20, 10)},
		},
	}

	samples := scoring.ComputeHistory(entries)
	require.Len(t, samples, 2)

	// ascending by date
	assert.Equal(t, newest.AddDate(0, 0, -2), samples[0].Date)
	assert.Equal(t, newest, samples[1].Date)
	assert.Equal(t, 200, samples[0].AdjustedVolume)
	assert.Equal(t, 250, samples[1].AdjustedVolume)
}

func TestComputeHistory_Empty(t *testing.T) {
	assert.Empty(t, scoring.ComputeHistory(nil))
	assert.Empty(t, scoring.ComputeHistory([]history.WorkoutEntry{
		{Date: time.Now(), TotalSets: 3, CompletedSets: 3},
	}))
}
