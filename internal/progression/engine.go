package progression

import "fmt"

// failureThreshold is the number of consecutive missed weeks after which the
// prescription regresses instead of repeating.
const failureThreshold = 2

// WeekTargets is the prescription for one exercise for one week of a mesocycle.
// ConsecutiveFailures is the running miss counter carried into the next
// computation; persisting it alongside the targets keeps the engine stateless.
type WeekTargets struct {
	WeekNumber          int
	TargetWeightKg      float64
	TargetReps          int
	TargetSets          int
	IsDeload            bool
	ConsecutiveFailures int
}

// ComputeWeekTargets prescribes weight, reps and sets for weekNumber from the
// previous week's performance. A nil previous means there is no history and the
// profile baseline applies. Deload weeks reduce load without consuming or
// resetting the failure counter.
func ComputeWeekTargets(profile Profile, weekNumber int, previous *Performance, isDeload bool) (WeekTargets, error) {
	if err := profile.Validate(); err != nil {
		return WeekTargets{}, err
	}
	if weekNumber < 1 {
		return WeekTargets{}, fmt.Errorf("%w: week number %d must be positive", ErrInvalidProfile, weekNumber)
	}
	if previous != nil && previous.WeekNumber != weekNumber-1 {
		return WeekTargets{}, fmt.Errorf("%w: have week %d, prescribing week %d",
			ErrStalePerformance, previous.WeekNumber, weekNumber)
	}

	targets := WeekTargets{
		WeekNumber:     weekNumber,
		TargetWeightKg: profile.BaseWeightKg,
		TargetReps:     profile.clampReps(profile.BaseReps),
		TargetSets:     profile.BaseSets,
		IsDeload:       isDeload,
	}
	if previous == nil {
		if isDeload {
			targets.TargetSets = halveSets(profile.BaseSets)
		}
		return targets, nil
	}

	if isDeload {
		targets.TargetWeightKg = profile.floorWeight(previous.TargetWeightKg - profile.WeightIncrementKg)
		targets.TargetReps = profile.clampReps(previous.TargetReps)
		targets.TargetSets = halveSets(profile.BaseSets)
		targets.ConsecutiveFailures = previous.ConsecutiveFailures
		return targets, nil
	}

	switch {
	case previous.HitTarget:
		targets.TargetWeightKg = previous.TargetWeightKg + profile.WeightIncrementKg
		targets.TargetReps = profile.MinReps
	case previous.ConsecutiveFailures+1 >= failureThreshold:
		targets.TargetWeightKg = profile.floorWeight(previous.TargetWeightKg - profile.WeightIncrementKg)
		targets.TargetReps = profile.MaxReps
	default:
		targets.TargetWeightKg = profile.floorWeight(previous.TargetWeightKg)
		targets.TargetReps = profile.clampReps(previous.TargetReps)
		targets.ConsecutiveFailures = previous.ConsecutiveFailures + 1
	}
	return targets, nil
}

func halveSets(sets int) int {
	halved := sets / 2
	if halved < 1 {
		return 1
	}
	return halved
}
