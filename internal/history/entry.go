package history

import "time"

// SetData captures one performed set. Both fields are optional in the
// persisted documents: legacy entries miss them entirely, bodyweight
// sets carry repeats only.
type SetData struct {
	Weight  *float64 `json:"weight,omitempty"`
	Repeats *float64 `json:"repeats,omitempty"`
}

// WorkoutEntry is one completed exercise instance. Entries are immutable
// once written, except for the dedup-replace rule in SaveEntry.
type WorkoutEntry struct {
	Date            time.Time `json:"date"`
	Weight          *float64  `json:"weight,omitempty"`
	RestTimeSeconds int       `json:"restTimeSeconds"`
	CompletedSets   int       `json:"completedSets"`
	TotalSets       int       `json:"totalSets"`
	SetsData        []SetData `json:"setsData,omitempty"`
}

// ExerciseHistory maps exercise name to its entries, newest first.
type ExerciseHistory map[string][]WorkoutEntry

// ExerciseDefaults are the per-exercise saved preferences, shown as the
// prefilled values when the exercise is started again.
type ExerciseDefaults struct {
	Weight   *float64 `json:"weight,omitempty"`
	RestTime *int     `json:"restTime,omitempty"`
}

// DailyProgress tracks per-exercise completed sets for one training
// type, valid only for the calendar day in Date.
type DailyProgress struct {
	Date             string         `json:"date"`
	ExerciseProgress map[string]int `json:"exerciseProgress"`
}

// TrainingCompletion records one fully finished training session.
type TrainingCompletion struct {
	TrainingType       string   `json:"trainingType"`
	Date               string   `json:"date"`
	CompletedExercises []string `json:"completedExercises"`
}
