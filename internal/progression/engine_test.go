package progression

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func benchPress() Profile {
	return Profile{
		ExerciseID:        1,
		PlanExerciseID:    1,
		BaseWeightKg:      60,
		BaseReps:          8,
		BaseSets:          3,
		WeightIncrementKg: 2.5,
		MinReps:           8,
		MaxReps:           12,
	}
}

func TestComputeWeekTargets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		profile    Profile
		weekNumber int
		previous   *Performance
		isDeload   bool
		want       WeekTargets
	}{
		{
			name:       "first week uses baseline",
			profile:    benchPress(),
			weekNumber: 1,
			previous:   nil,
			want:       WeekTargets{WeekNumber: 1, TargetWeightKg: 60, TargetReps: 8, TargetSets: 3},
		},
		{
			name:       "hit adds an increment and resets reps",
			profile:    benchPress(),
			weekNumber: 2,
			previous: &Performance{
				WeekNumber: 1, TargetWeightKg: 60, TargetReps: 8,
				ActualWeightKg: 60, ActualReps: 10, HitTarget: true,
			},
			want: WeekTargets{WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8, TargetSets: 3},
		},
		{
			name:       "first miss repeats the prescription",
			profile:    benchPress(),
			weekNumber: 3,
			previous: &Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ActualWeightKg: 62.5, ActualReps: 6, HitTarget: false,
			},
			want: WeekTargets{
				WeekNumber: 3, TargetWeightKg: 62.5, TargetReps: 8, TargetSets: 3,
				ConsecutiveFailures: 1,
			},
		},
		{
			name:       "second consecutive miss regresses to max reps",
			profile:    benchPress(),
			weekNumber: 4,
			previous: &Performance{
				WeekNumber: 3, TargetWeightKg: 62.5, TargetReps: 8,
				ActualWeightKg: 62.5, ActualReps: 7, HitTarget: false,
				ConsecutiveFailures: 1,
			},
			want: WeekTargets{WeekNumber: 4, TargetWeightKg: 60, TargetReps: 12, TargetSets: 3},
		},
		{
			name:       "regression never drops below the base weight",
			profile:    benchPress(),
			weekNumber: 2,
			previous: &Performance{
				WeekNumber: 1, TargetWeightKg: 60, TargetReps: 8,
				HitTarget: false, ConsecutiveFailures: 1,
			},
			want: WeekTargets{WeekNumber: 2, TargetWeightKg: 60, TargetReps: 12, TargetSets: 3},
		},
		{
			name:       "deload drops an increment and halves sets",
			profile:    benchPress(),
			weekNumber: 4,
			previous: &Performance{
				WeekNumber: 3, TargetWeightKg: 65, TargetReps: 10,
				ActualWeightKg: 65, ActualReps: 10, HitTarget: true,
			},
			isDeload: true,
			want: WeekTargets{
				WeekNumber: 4, TargetWeightKg: 62.5, TargetReps: 10, TargetSets: 1,
				IsDeload: true,
			},
		},
		{
			name:       "deload carries the failure counter through",
			profile:    benchPress(),
			weekNumber: 4,
			previous: &Performance{
				WeekNumber: 3, TargetWeightKg: 62.5, TargetReps: 8,
				HitTarget: false, ConsecutiveFailures: 1,
			},
			isDeload: true,
			want: WeekTargets{
				WeekNumber: 4, TargetWeightKg: 60, TargetReps: 8, TargetSets: 1,
				IsDeload: true, ConsecutiveFailures: 1,
			},
		},
		{
			name: "deload sets never drop below one",
			profile: Profile{
				BaseWeightKg: 40, BaseReps: 10, BaseSets: 1,
				WeightIncrementKg: 2.5, MinReps: 8, MaxReps: 12,
			},
			weekNumber: 1,
			isDeload:   true,
			want: WeekTargets{
				WeekNumber: 1, TargetWeightKg: 40, TargetReps: 10, TargetSets: 1,
				IsDeload: true,
			},
		},
		{
			name: "baseline reps are clamped into the rep range",
			profile: Profile{
				BaseWeightKg: 60, BaseReps: 5, BaseSets: 3,
				WeightIncrementKg: 2.5, MinReps: 8, MaxReps: 12,
			},
			weekNumber: 1,
			want:       WeekTargets{WeekNumber: 1, TargetWeightKg: 60, TargetReps: 8, TargetSets: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ComputeWeekTargets(tt.profile, tt.weekNumber, tt.previous, tt.isDeload)
			if err != nil {
				t.Fatalf("ComputeWeekTargets: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("targets mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeWeekTargetsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		profile    Profile
		weekNumber int
		previous   *Performance
		wantErr    error
	}{
		{
			name: "min reps above max reps",
			profile: Profile{
				BaseWeightKg: 60, BaseReps: 8, BaseSets: 3,
				WeightIncrementKg: 2.5, MinReps: 12, MaxReps: 8,
			},
			weekNumber: 1,
			wantErr:    ErrInvalidProfile,
		},
		{
			name: "non-positive weight increment",
			profile: Profile{
				BaseWeightKg: 60, BaseReps: 8, BaseSets: 3,
				MinReps: 8, MaxReps: 12,
			},
			weekNumber: 1,
			wantErr:    ErrInvalidProfile,
		},
		{
			name: "zero base sets",
			profile: Profile{
				BaseWeightKg: 60, BaseReps: 8,
				WeightIncrementKg: 2.5, MinReps: 8, MaxReps: 12,
			},
			weekNumber: 1,
			wantErr:    ErrInvalidProfile,
		},
		{
			name:       "performance from the wrong week",
			profile:    benchPress(),
			weekNumber: 3,
			previous:   &Performance{WeekNumber: 1, TargetWeightKg: 60, TargetReps: 8},
			wantErr:    ErrStalePerformance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ComputeWeekTargets(tt.profile, tt.weekNumber, tt.previous, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ComputeWeekTargets error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProjectPerformance(t *testing.T) {
	t.Parallel()

	targets := WeekTargets{WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8, ConsecutiveFailures: 1}

	tests := []struct {
		name string
		sets []SetResult
		want Performance
	}{
		{
			name: "every set at or above target hits",
			sets: []SetResult{
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 9},
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 8},
			},
			want: Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ActualWeightKg: 62.5, ActualReps: 8, HitTarget: true,
				ConsecutiveFailures: 1,
			},
		},
		{
			name: "one short set misses",
			sets: []SetResult{
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 8},
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 6},
			},
			want: Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ActualWeightKg: 62.5, ActualReps: 6,
				ConsecutiveFailures: 1,
			},
		},
		{
			name: "a skipped set misses even when the rest hit",
			sets: []SetResult{
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 8},
				{Completed: false},
			},
			want: Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ActualWeightKg: 62.5, ActualReps: 8,
				ConsecutiveFailures: 1,
			},
		},
		{
			name: "weakest completed set provides the actuals",
			sets: []SetResult{
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 9},
				{Completed: true, ActualWeightKg: 60, ActualReps: 10},
				{Completed: true, ActualWeightKg: 62.5, ActualReps: 8},
			},
			want: Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ActualWeightKg: 60, ActualReps: 10,
				ConsecutiveFailures: 1,
			},
		},
		{
			name: "no sets at all is a miss with zero actuals",
			sets: nil,
			want: Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ConsecutiveFailures: 1,
			},
		},
		{
			name: "all sets skipped is a miss with zero actuals",
			sets: []SetResult{{Completed: false}, {Completed: false}},
			want: Performance{
				WeekNumber: 2, TargetWeightKg: 62.5, TargetReps: 8,
				ConsecutiveFailures: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ProjectPerformance(targets, tt.sets)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("performance mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeloadSchedule(t *testing.T) {
	t.Parallel()

	schedule := DeloadSchedule{EveryWeeks: 4}

	tests := []struct {
		week     int
		duration int
		want     bool
	}{
		{week: 1, duration: 6, want: false},
		{week: 3, duration: 6, want: false},
		{week: 4, duration: 6, want: true},
		{week: 5, duration: 6, want: false},
		{week: 6, duration: 6, want: true},
		{week: 8, duration: 10, want: true},
		{week: 3, duration: 3, want: true},
	}

	for _, tt := range tests {
		if got := schedule.IsDeloadWeek(tt.week, tt.duration); got != tt.want {
			t.Errorf("IsDeloadWeek(%d, %d) = %v, want %v", tt.week, tt.duration, got, tt.want)
		}
	}

	disabled := DeloadSchedule{}
	if disabled.IsDeloadWeek(4, 8) {
		t.Error("cadence deloads should be disabled when EveryWeeks is zero")
	}
	if !disabled.IsDeloadWeek(8, 8) {
		t.Error("the final week is always a deload")
	}
}
