// Package training manages mesocycles, their workouts and logged sets, and
// orchestrates the prescription engine across week boundaries.
package training

import "time"

// Category represents the type of exercise.
type Category string

const (
	CategoryFullBody Category = "full_body"
	CategoryUpper    Category = "upper"
	CategoryLower    Category = "lower"
)

// ExerciseType distinguishes barbell-style loaded movements from bodyweight work.
type ExerciseType string

const (
	ExerciseTypeWeighted   ExerciseType = "weighted"
	ExerciseTypeBodyweight ExerciseType = "bodyweight"
)

// Exercise represents a single exercise type, e.g. Squat, Bench Press, etc.
type Exercise struct {
	ID                    int          `json:"id"`
	Name                  string       `json:"name"`
	Category              Category     `json:"category"`
	ExerciseType          ExerciseType `json:"exercise_type"`
	DescriptionMarkdown   string       `json:"description_markdown"`
	PrimaryMuscleGroups   []string     `json:"primary_muscle_groups"`
	SecondaryMuscleGroups []string     `json:"secondary_muscle_groups"`
}

// Plan is a reusable training template of days and exercise slots.
type Plan struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Days        []PlanDay `json:"days"`
}

// PlanDay is one training day within a plan.
type PlanDay struct {
	ID        int                `json:"id"`
	DayIndex  int                `json:"day_index"`
	Name      string             `json:"name"`
	Exercises []PlanDayExercise `json:"exercises"`
}

// PlanDayExercise is an exercise slot in a plan day together with its
// progression baseline.
type PlanDayExercise struct {
	ID                int     `json:"id"`
	ExerciseID        int     `json:"exercise_id"`
	ExerciseName      string  `json:"exercise_name"`
	Position          int     `json:"position"`
	BaseWeightKg      float64 `json:"base_weight_kg"`
	BaseReps          int     `json:"base_reps"`
	BaseSets          int     `json:"base_sets"`
	WeightIncrementKg float64 `json:"weight_increment_kg"`
	MinReps           int     `json:"min_reps"`
	MaxReps           int     `json:"max_reps"`
}

// MesocycleStatus is the lifecycle state of a mesocycle.
type MesocycleStatus string

const (
	MesocycleActive    MesocycleStatus = "active"
	MesocycleCompleted MesocycleStatus = "completed"
	MesocycleCancelled MesocycleStatus = "cancelled"
)

// Mesocycle is one multi-week training block of a plan for one user.
type Mesocycle struct {
	ID            int             `json:"id"`
	UserID        int             `json:"-"`
	PlanID        int             `json:"plan_id"`
	StartDate     time.Time       `json:"start_date"`
	DurationWeeks int             `json:"duration_weeks"`
	CurrentWeek   int             `json:"current_week"`
	Status        MesocycleStatus `json:"status"`
}

// WorkoutStatus is the lifecycle state of a workout.
type WorkoutStatus string

const (
	WorkoutPending    WorkoutStatus = "pending"
	WorkoutInProgress WorkoutStatus = "in_progress"
	WorkoutCompleted  WorkoutStatus = "completed"
	WorkoutSkipped    WorkoutStatus = "skipped"
)

// Workout is one scheduled training day inside a mesocycle.
type Workout struct {
	ID            int           `json:"id"`
	MesocycleID   int           `json:"mesocycle_id"`
	PlanDayID     int           `json:"plan_day_id"`
	WeekNumber    int           `json:"week_number"`
	ScheduledDate time.Time     `json:"scheduled_date"`
	Status        WorkoutStatus `json:"status"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Sets          []WorkoutSet  `json:"sets,omitempty"`
}

// SetStatus is the lifecycle state of a workout set.
type SetStatus string

const (
	SetPending   SetStatus = "pending"
	SetCompleted SetStatus = "completed"
	SetSkipped   SetStatus = "skipped"
)

// WorkoutSet is one prescribed set of one exercise within a workout. Actuals
// are non-nil exactly when the set is completed.
type WorkoutSet struct {
	ID             int       `json:"id"`
	WorkoutID      int       `json:"workout_id"`
	ExerciseID     int       `json:"exercise_id"`
	PlanExerciseID int       `json:"-"`
	SetNumber      int       `json:"set_number"`
	TargetWeightKg float64   `json:"target_weight_kg"`
	TargetReps     int       `json:"target_reps"`
	ActualWeightKg *float64  `json:"actual_weight_kg,omitempty"`
	ActualReps     *int      `json:"actual_reps,omitempty"`
	Status         SetStatus `json:"status"`
}

// FeatureFlag toggles operational behaviour such as maintenance mode.
type FeatureFlag struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Feature flag names known to the application.
const FlagMaintenanceMode = "maintenance_mode"
