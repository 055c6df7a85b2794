package backend

import "time"

// Document shapes as the CRUD backend serves them. Several string
// fields are genuinely absent in legacy records, so they stay optional
// free-form strings rather than anything stricter.

type Exercise struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Name            string    `json:"name"`
	MuscleGroup     string    `json:"muscleGroup,omitempty"`
	Note            string    `json:"note,omitempty"`
	Link            string    `json:"link,omitempty"`
	Sets            int       `json:"sets,omitempty"`
	Repeats         string    `json:"repeats,omitempty"`
	RestTimeSeconds int       `json:"restTimeSeconds,omitempty"`
	Weight          *float64  `json:"weight,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type TrainingPlan struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	TrainingType string    `json:"trainingType,omitempty"`
	Version      string    `json:"version,omitempty"`
	Note         string    `json:"note,omitempty"`
	ExerciseIDs  []string  `json:"exerciseIds,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Trainee struct {
	ID        string    `json:"id"`
	CoachID   string    `json:"coachId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	PlanID    string    `json:"planId,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID                 string    `json:"id"`
	TraineeID          string    `json:"traineeId"`
	PlanID             string    `json:"planId,omitempty"`
	Date               string    `json:"date"`
	CompletedExercises []string  `json:"completedExercises,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}
