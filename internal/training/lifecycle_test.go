package training

import (
	"errors"
	"testing"
)

func TestCheckWorkoutTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    WorkoutStatus
		to      WorkoutStatus
		wantErr error
	}{
		{name: "start pending", from: WorkoutPending, to: WorkoutInProgress},
		{name: "skip pending", from: WorkoutPending, to: WorkoutSkipped},
		{name: "complete in progress", from: WorkoutInProgress, to: WorkoutCompleted},
		{name: "skip in progress", from: WorkoutInProgress, to: WorkoutSkipped},
		{name: "complete pending", from: WorkoutPending, to: WorkoutCompleted, wantErr: ErrInvalidTransition},
		{name: "start in progress", from: WorkoutInProgress, to: WorkoutInProgress, wantErr: ErrInvalidTransition},
		{name: "start completed", from: WorkoutCompleted, to: WorkoutInProgress, wantErr: ErrInvalidTransition},
		{name: "skip skipped", from: WorkoutSkipped, to: WorkoutSkipped, wantErr: ErrInvalidTransition},
		{name: "complete completed", from: WorkoutCompleted, to: WorkoutCompleted, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkWorkoutTransition(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("checkWorkoutTransition(%s, %s) = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestCheckSetTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    SetStatus
		to      SetStatus
		wantErr error
	}{
		{name: "log pending", from: SetPending, to: SetCompleted},
		{name: "relog completed", from: SetCompleted, to: SetCompleted},
		{name: "unlog completed", from: SetCompleted, to: SetPending},
		{name: "skip pending", from: SetPending, to: SetSkipped},
		{name: "unlog pending", from: SetPending, to: SetPending, wantErr: ErrInvalidTransition},
		{name: "log skipped", from: SetSkipped, to: SetCompleted, wantErr: ErrInvalidTransition},
		{name: "skip completed", from: SetCompleted, to: SetSkipped, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkSetTransition(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("checkSetTransition(%s, %s) = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestCheckMesocycleTransition(t *testing.T) {
	t.Parallel()

	if err := checkMesocycleTransition(MesocycleActive, MesocycleCompleted); err != nil {
		t.Errorf("complete active = %v, want nil", err)
	}
	if err := checkMesocycleTransition(MesocycleActive, MesocycleCancelled); err != nil {
		t.Errorf("cancel active = %v, want nil", err)
	}
	if err := checkMesocycleTransition(MesocycleCancelled, MesocycleCompleted); !errors.Is(err, ErrValidation) {
		t.Errorf("complete cancelled = %v, want %v", err, ErrValidation)
	}
	if err := checkMesocycleTransition(MesocycleCompleted, MesocycleCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel completed = %v, want %v", err, ErrInvalidTransition)
	}
}
