// Package progression implements the week-over-week prescription engine for
// strength training: progressive overload with a double-progression rep scheme,
// periodic deload weeks, and failure-driven regression.
//
// Everything in this package is pure computation over its inputs so that the
// prescription logic can be tested deterministically without a database.
package progression

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine. Callers map these to their own
// validation error kinds.
var (
	// ErrInvalidProfile indicates a profile whose bounds make prescription impossible.
	ErrInvalidProfile = errors.New("invalid progression profile")
	// ErrStalePerformance indicates that the supplied performance summary does not
	// describe the week immediately before the one being prescribed.
	ErrStalePerformance = errors.New("performance is not from the previous week")
)

// Profile holds the per-exercise baseline and increments defined when the
// exercise is added to a plan day. It is immutable input to the engine.
type Profile struct {
	ExerciseID        int64
	PlanExerciseID    int64
	BaseWeightKg      float64
	BaseReps          int
	BaseSets          int
	WeightIncrementKg float64
	MinReps           int
	MaxReps           int
}

// Validate checks that the profile bounds permit prescription.
func (p Profile) Validate() error {
	if p.MinReps > p.MaxReps {
		return fmt.Errorf("%w: min reps %d exceeds max reps %d", ErrInvalidProfile, p.MinReps, p.MaxReps)
	}
	if p.MinReps < 1 {
		return fmt.Errorf("%w: min reps %d must be positive", ErrInvalidProfile, p.MinReps)
	}
	if p.WeightIncrementKg <= 0 {
		return fmt.Errorf("%w: weight increment %.2f must be positive", ErrInvalidProfile, p.WeightIncrementKg)
	}
	if p.BaseSets < 1 {
		return fmt.Errorf("%w: base sets %d must be positive", ErrInvalidProfile, p.BaseSets)
	}
	if p.BaseWeightKg < 0 {
		return fmt.Errorf("%w: base weight %.2f must not be negative", ErrInvalidProfile, p.BaseWeightKg)
	}
	return nil
}

// clampReps forces reps into the profile's rep range.
func (p Profile) clampReps(reps int) int {
	if reps < p.MinReps {
		return p.MinReps
	}
	if reps > p.MaxReps {
		return p.MaxReps
	}
	return reps
}

// floorWeight forces weight to never drop below the profile's base weight.
func (p Profile) floorWeight(weightKg float64) float64 {
	if weightKg < p.BaseWeightKg {
		return p.BaseWeightKg
	}
	return weightKg
}
