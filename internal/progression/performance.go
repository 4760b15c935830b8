package progression

// Performance summarises how one exercise went over one week, in terms the
// engine consumes. It is a projection of logged sets, never stored directly.
type Performance struct {
	WeekNumber          int
	TargetWeightKg      float64
	TargetReps          int
	ActualWeightKg      float64
	ActualReps          int
	HitTarget           bool
	ConsecutiveFailures int
}

// SetResult is one logged set as the projection sees it. Skipped and pending
// sets carry Completed=false and zero actuals.
type SetResult struct {
	Completed      bool
	ActualWeightKg float64
	ActualReps     int
}

// ProjectPerformance folds a week's sets for one exercise into a Performance
// against that week's targets. The target is hit only when every set was
// completed at or above both the target reps and the target weight. The
// reported actuals are those of the weakest completed set, so regression
// decisions key off the worst work done. A week with no completed sets at all
// counts as a miss with zero actuals.
func ProjectPerformance(targets WeekTargets, sets []SetResult) Performance {
	perf := Performance{
		WeekNumber:          targets.WeekNumber,
		TargetWeightKg:      targets.TargetWeightKg,
		TargetReps:          targets.TargetReps,
		ConsecutiveFailures: targets.ConsecutiveFailures,
	}

	hit := len(sets) > 0
	haveActual := false
	for _, set := range sets {
		if !set.Completed {
			hit = false
			continue
		}
		if set.ActualReps < targets.TargetReps || set.ActualWeightKg < targets.TargetWeightKg {
			hit = false
		}
		if !haveActual || weaker(set, perf.ActualWeightKg, perf.ActualReps) {
			perf.ActualWeightKg = set.ActualWeightKg
			perf.ActualReps = set.ActualReps
			haveActual = true
		}
	}
	perf.HitTarget = hit
	return perf
}

// weaker reports whether the set is weaker than the current aggregate, with
// weight dominating and reps breaking ties.
func weaker(set SetResult, weightKg float64, reps int) bool {
	if set.ActualWeightKg != weightKg {
		return set.ActualWeightKg < weightKg
	}
	return set.ActualReps < reps
}
