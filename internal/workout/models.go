package workout

import (
	"time"
)

// Goal is the training goal a user has selected. It selects the rep-decline thresholds used by feedback.
type Goal string

const (
	GoalStrength       Goal = "strength"
	GoalMuscleGrowth   Goal = "muscle_growth"
	GoalCardio         Goal = "cardio"
	GoalWeightLoss     Goal = "weight_loss"
	GoalGeneralFitness Goal = "general_fitness"
)

// MuscleGroupID identifies a row in the muscle group catalog.
type MuscleGroupID int

// MuscleGroup is an entry of the muscle group catalog, e.g. Chest or Hamstrings.
type MuscleGroup struct {
	ID   MuscleGroupID
	Name string
}

// MuscleTarget is a movement's declared contribution to a muscle group.
//
// Percentage is nominally 0–100 but is not required to sum to 100 across a movement.
type MuscleTarget struct {
	MuscleGroup MuscleGroup
	Percentage  float64
}

// Movement is an exercise type such as Bench Press.
type Movement struct {
	ID             int
	Name           string
	NormalizedName string
	Description    string
	Targets        []MuscleTarget
}

// Rep is a legacy rep record. Legacy reps and weights of a set are paired by position.
type Rep struct {
	ID    int
	Count int
}

// Weight is a legacy weight record.
type Weight struct {
	ID           int
	Value        float64
	IsBodyweight bool
}

// SetEntry is the paired representation of reps performed at a given weight.
type SetEntry struct {
	ID           int
	Order        int
	Reps         int
	Weight       float64
	IsBodyweight bool
}

// Set is one set of a movement. It carries either paired entries, legacy reps and weights, or both.
// Use [ReconcileEntries] to resolve it into a single entry sequence.
type Set struct {
	ID      int
	Order   int
	Reps    []Rep
	Weights []Weight
	Entries []SetEntry
}

// WorkoutMovement is a movement performed within a workout.
type WorkoutMovement struct {
	ID       int
	Position int
	Movement Movement
	Sets     []Set
}

// Workout is a training session of a user.
type Workout struct {
	ID        int
	UserID    int
	Name      string
	Date      time.Time
	Completed bool
	// UserBodyweight is the owner's bodyweight in kg used for bodyweight movements, 0 when unknown.
	UserBodyweight float64
	Movements      []WorkoutMovement
}

// User holds the attributes the engine needs from a user account.
type User struct {
	ID           int
	Username     string
	BodyweightKg float64
	Goal         Goal
}
