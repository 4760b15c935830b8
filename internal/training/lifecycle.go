package training

import "fmt"

// checkWorkoutTransition validates a workout status transition against the
// state machine pending → in_progress → {completed, skipped}, with
// pending → skipped also legal. Terminal states permit nothing, so repeating
// a skip is rejected rather than treated as a no-op.
func checkWorkoutTransition(from, to WorkoutStatus) error {
	legal := false
	switch from {
	case WorkoutPending:
		legal = to == WorkoutInProgress || to == WorkoutSkipped
	case WorkoutInProgress:
		legal = to == WorkoutCompleted || to == WorkoutSkipped
	case WorkoutCompleted, WorkoutSkipped:
	}
	if !legal {
		return fmt.Errorf("%w: workout %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// checkSetTransition validates a set status transition. Logging is permitted
// from pending and completed (re-logging overwrites the actuals), unlogging
// only from completed, skipping only from pending.
func checkSetTransition(from, to SetStatus) error {
	legal := false
	switch from {
	case SetPending:
		legal = to == SetCompleted || to == SetSkipped
	case SetCompleted:
		legal = to == SetCompleted || to == SetPending
	case SetSkipped:
	}
	if !legal {
		return fmt.Errorf("%w: set %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// checkMesocycleTransition validates a mesocycle status transition. Both
// terminal transitions are only legal from active. Completing a non-active
// mesocycle is a validation failure rather than an invalid transition,
// matching how clients are expected to surface it.
func checkMesocycleTransition(from, to MesocycleStatus) error {
	if from == MesocycleActive && (to == MesocycleCompleted || to == MesocycleCancelled) {
		return nil
	}
	if to == MesocycleCompleted {
		return fmt.Errorf("%w: cannot complete %s mesocycle", ErrValidation, from)
	}
	return fmt.Errorf("%w: mesocycle %s -> %s", ErrInvalidTransition, from, to)
}
