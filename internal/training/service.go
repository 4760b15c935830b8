package training

import (
	"context"
	"log/slog"
	"time"

	"github.com/jhellman/mesoapp/internal/errors"
	"github.com/jhellman/mesoapp/internal/progression"
	"github.com/jhellman/mesoapp/internal/sqlite"
)

// descriptionGenerator produces a full exercise from a bare name, e.g. by
// asking a language model. See exercisegen.go.
type descriptionGenerator interface {
	Generate(ctx context.Context, name string, muscleGroups []string) (Exercise, error)
}

// Service orchestrates mesocycles, workouts and sets on top of the SQLite
// repositories, delegating the per-week prescription math to the progression
// package.
type Service struct {
	db        *sqlite.Database
	repo      *repository
	logger    *slog.Logger
	deload    progression.DeloadSchedule
	generator descriptionGenerator
	now       func() time.Time
}

// NewService creates the training service. generator may be nil, in which
// case generated exercises fall back to a bare skeleton.
func NewService(
	db *sqlite.Database,
	logger *slog.Logger,
	deload progression.DeloadSchedule,
	generator descriptionGenerator,
) *Service {
	return &Service{
		db:        db,
		repo:      newRepository(db, logger),
		logger:    logger,
		deload:    deload,
		generator: generator,
		now:       time.Now,
	}
}

// StartMesocycle begins a new training block of the plan for the user,
// prescribing and scheduling the whole first week. A user can run at most one
// active mesocycle; a second start fails with ErrConflict.
func (s *Service) StartMesocycle(
	ctx context.Context,
	userID, planID int,
	startDate time.Time,
	durationWeeks int,
) (Mesocycle, error) {
	if durationWeeks < 1 {
		return Mesocycle{}, errors.Wrap(ErrValidation, "duration must be at least one week",
			slog.Int("duration_weeks", durationWeeks))
	}

	plan, err := s.repo.plans.Get(ctx, planID)
	if err != nil {
		return Mesocycle{}, errors.Wrap(err, "get plan")
	}
	if len(plan.Days) == 0 {
		return Mesocycle{}, errors.Wrap(ErrValidation, "plan has no training days",
			slog.Int("plan_id", planID))
	}

	m := Mesocycle{
		UserID:        userID,
		PlanID:        planID,
		StartDate:     startDate,
		DurationWeeks: durationWeeks,
		CurrentWeek:   1,
		Status:        MesocycleActive,
	}
	m, err = s.repo.mesocycles.Create(ctx, m)
	if err != nil {
		return Mesocycle{}, errors.Wrap(err, "create mesocycle")
	}

	targets, workouts, err := s.prescribeWeek(plan, m, 1, nil)
	if err != nil {
		return Mesocycle{}, errors.Wrap(err, "prescribe first week")
	}
	if err = s.repo.mesocycles.InsertWeek(ctx, m, 1, targets, workouts); err != nil {
		return Mesocycle{}, errors.Wrap(err, "persist first week")
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "mesocycle started",
		slog.Int("mesocycle_id", m.ID),
		slog.Int("plan_id", planID),
		slog.Int("duration_weeks", durationWeeks))

	return m, nil
}

// CurrentMesocycle returns the user's active mesocycle together with the
// current week's workouts.
func (s *Service) CurrentMesocycle(ctx context.Context, userID int) (Mesocycle, []Workout, error) {
	m, err := s.repo.mesocycles.GetActive(ctx, userID)
	if err != nil {
		return Mesocycle{}, nil, errors.Wrap(err, "get active mesocycle")
	}
	workouts, err := s.repo.workouts.ListByWeek(ctx, m.ID, m.CurrentWeek)
	if err != nil {
		return Mesocycle{}, nil, errors.Wrap(err, "list current week workouts")
	}
	return m, workouts, nil
}

// CompleteMesocycle marks the user's mesocycle completed. Only an active
// mesocycle can be completed; anything else fails with ErrValidation.
func (s *Service) CompleteMesocycle(ctx context.Context, userID, mesocycleID int) (Mesocycle, error) {
	return s.transitionMesocycle(ctx, userID, mesocycleID, MesocycleCompleted)
}

// CancelMesocycle abandons the user's mesocycle. Only legal from active.
func (s *Service) CancelMesocycle(ctx context.Context, userID, mesocycleID int) (Mesocycle, error) {
	return s.transitionMesocycle(ctx, userID, mesocycleID, MesocycleCancelled)
}

func (s *Service) transitionMesocycle(
	ctx context.Context,
	userID, mesocycleID int,
	to MesocycleStatus,
) (Mesocycle, error) {
	m, err := s.repo.mesocycles.Get(ctx, userID, mesocycleID)
	if err != nil {
		return Mesocycle{}, errors.Wrap(err, "get mesocycle")
	}
	if err = checkMesocycleTransition(m.Status, to); err != nil {
		return Mesocycle{}, err
	}
	if err = s.repo.mesocycles.UpdateStatus(ctx, m.ID, m.Status, to); err != nil {
		return Mesocycle{}, errors.Wrap(err, "update mesocycle status")
	}
	m.Status = to
	return m, nil
}

// AdvanceWeek moves the user's mesocycle forward one week: the finished
// week's logged sets are projected into per-exercise performances, the next
// week's targets are computed from them, and the new week's workouts and sets
// are scheduled. After the final week the mesocycle completes instead.
func (s *Service) AdvanceWeek(ctx context.Context, userID, mesocycleID int) (Mesocycle, error) {
	m, err := s.repo.mesocycles.Get(ctx, userID, mesocycleID)
	if err != nil {
		return Mesocycle{}, errors.Wrap(err, "get mesocycle")
	}
	if err = s.advance(ctx, &m); err != nil {
		return Mesocycle{}, err
	}
	return m, nil
}

// AdvanceDueMesocycles advances every active mesocycle whose current week has
// elapsed by now. Used by the background scheduler; per-mesocycle failures
// are logged and skipped so one broken block cannot stall the rest.
func (s *Service) AdvanceDueMesocycles(ctx context.Context, now time.Time) error {
	due, err := s.repo.mesocycles.ListDue(ctx, now)
	if err != nil {
		return errors.Wrap(err, "list due mesocycles")
	}
	for i := range due {
		if err := s.advance(ctx, &due[i]); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to advance mesocycle",
				slog.Int("mesocycle_id", due[i].ID),
				errors.SlogError(err))
		}
	}
	return nil
}

func (s *Service) advance(ctx context.Context, m *Mesocycle) error {
	if m.Status != MesocycleActive {
		return errors.Wrap(ErrInvalidTransition, "cannot advance inactive mesocycle",
			slog.String("status", string(m.Status)))
	}

	if m.CurrentWeek >= m.DurationWeeks {
		if err := s.repo.mesocycles.UpdateStatus(ctx, m.ID, m.Status, MesocycleCompleted); err != nil {
			return errors.Wrap(err, "complete finished mesocycle")
		}
		m.Status = MesocycleCompleted
		s.logger.LogAttrs(ctx, slog.LevelInfo, "mesocycle completed",
			slog.Int("mesocycle_id", m.ID))
		return nil
	}

	plan, err := s.repo.plans.Get(ctx, m.PlanID)
	if err != nil {
		return errors.Wrap(err, "get plan")
	}
	finishedTargets, err := s.repo.mesocycles.GetWeekTargets(ctx, m.ID, m.CurrentWeek)
	if err != nil {
		return errors.Wrap(err, "get finished week targets")
	}
	results, err := s.repo.workouts.SetResultsByWeek(ctx, m.ID, m.CurrentWeek)
	if err != nil {
		return errors.Wrap(err, "collect finished week set results")
	}

	previous := make(map[int]progression.Performance, len(finishedTargets))
	for planExerciseID, targets := range finishedTargets {
		previous[planExerciseID] = progression.ProjectPerformance(targets, results[planExerciseID])
	}

	next := m.CurrentWeek + 1
	targets, workouts, err := s.prescribeWeek(plan, *m, next, previous)
	if err != nil {
		return errors.Wrap(err, "prescribe next week")
	}
	if err = s.repo.mesocycles.InsertWeek(ctx, *m, next, targets, workouts); err != nil {
		return errors.Wrap(err, "persist next week")
	}
	m.CurrentWeek = next

	s.logger.LogAttrs(ctx, slog.LevelInfo, "mesocycle advanced",
		slog.Int("mesocycle_id", m.ID),
		slog.Int("week", next))

	return nil
}

// prescribeWeek computes the targets for every exercise slot of the plan and
// lays out the week's workouts with their pending sets. previous carries the
// finished week's performances keyed by plan exercise slot; slots without
// history, such as exercises added to the plan mid-block, start from their
// baseline.
func (s *Service) prescribeWeek(
	plan Plan,
	m Mesocycle,
	weekNumber int,
	previous map[int]progression.Performance,
) (map[int]progression.WeekTargets, []Workout, error) {
	isDeload := s.deload.IsDeloadWeek(weekNumber, m.DurationWeeks)

	targets := make(map[int]progression.WeekTargets)
	for _, day := range plan.Days {
		for _, slot := range day.Exercises {
			var prev *progression.Performance
			if p, ok := previous[slot.ID]; ok {
				prev = &p
			}
			t, err := progression.ComputeWeekTargets(slotProfile(slot), weekNumber, prev, isDeload)
			if err != nil {
				return nil, nil, errors.Wrap(err, "compute week targets",
					slog.Int("plan_exercise_id", slot.ID),
					slog.Int("week", weekNumber))
			}
			targets[slot.ID] = t
		}
	}

	var workouts []Workout
	for _, day := range plan.Days {
		w := Workout{
			MesocycleID:   m.ID,
			PlanDayID:     day.ID,
			WeekNumber:    weekNumber,
			ScheduledDate: m.StartDate.AddDate(0, 0, (weekNumber-1)*7+day.DayIndex-1),
			Status:        WorkoutPending,
		}
		for _, slot := range day.Exercises {
			t := targets[slot.ID]
			for n := 1; n <= t.TargetSets; n++ {
				w.Sets = append(w.Sets, WorkoutSet{
					ExerciseID:     slot.ExerciseID,
					PlanExerciseID: slot.ID,
					SetNumber:      n,
					TargetWeightKg: t.TargetWeightKg,
					TargetReps:     t.TargetReps,
					Status:         SetPending,
				})
			}
		}
		workouts = append(workouts, w)
	}

	return targets, workouts, nil
}

func slotProfile(slot PlanDayExercise) progression.Profile {
	return progression.Profile{
		ExerciseID:        int64(slot.ExerciseID),
		PlanExerciseID:    int64(slot.ID),
		BaseWeightKg:      slot.BaseWeightKg,
		BaseReps:          slot.BaseReps,
		BaseSets:          slot.BaseSets,
		WeightIncrementKg: slot.WeightIncrementKg,
		MinReps:           slot.MinReps,
		MaxReps:           slot.MaxReps,
	}
}

// GetWorkout returns one of the user's workouts with its sets.
func (s *Service) GetWorkout(ctx context.Context, userID, workoutID int) (Workout, error) {
	return s.repo.workouts.Get(ctx, userID, workoutID)
}

// StartWorkout begins a pending workout.
func (s *Service) StartWorkout(ctx context.Context, userID, workoutID int) (Workout, error) {
	return s.transitionWorkout(ctx, userID, workoutID, WorkoutInProgress)
}

// CompleteWorkout finishes an in-progress workout.
func (s *Service) CompleteWorkout(ctx context.Context, userID, workoutID int) (Workout, error) {
	return s.transitionWorkout(ctx, userID, workoutID, WorkoutCompleted)
}

// SkipWorkout skips a pending or in-progress workout. Skipped is terminal, so
// skipping twice fails with ErrInvalidTransition.
func (s *Service) SkipWorkout(ctx context.Context, userID, workoutID int) (Workout, error) {
	return s.transitionWorkout(ctx, userID, workoutID, WorkoutSkipped)
}

func (s *Service) transitionWorkout(
	ctx context.Context,
	userID, workoutID int,
	to WorkoutStatus,
) (Workout, error) {
	w, err := s.repo.workouts.Get(ctx, userID, workoutID)
	if err != nil {
		return Workout{}, errors.Wrap(err, "get workout")
	}
	if err = checkWorkoutTransition(w.Status, to); err != nil {
		return Workout{}, err
	}
	if err = s.repo.workouts.UpdateStatus(ctx, w.ID, w.Status, to, s.now()); err != nil {
		return Workout{}, errors.Wrap(err, "update workout status")
	}
	return s.repo.workouts.Get(ctx, userID, workoutID)
}

// LogSet records the actual reps and weight of a set, marking it completed.
// Re-logging a completed set overwrites the actuals. The parent workout must
// be in progress.
func (s *Service) LogSet(
	ctx context.Context,
	userID, setID int,
	actualWeightKg float64,
	actualReps int,
) (WorkoutSet, error) {
	if actualWeightKg < 0 || actualReps < 0 {
		return WorkoutSet{}, errors.Wrap(ErrValidation, "actuals must be non-negative",
			slog.Float64("actual_weight_kg", actualWeightKg),
			slog.Int("actual_reps", actualReps))
	}
	return s.transitionSet(ctx, userID, setID, SetCompleted, &actualWeightKg, &actualReps)
}

// SkipSet marks a pending set skipped.
func (s *Service) SkipSet(ctx context.Context, userID, setID int) (WorkoutSet, error) {
	return s.transitionSet(ctx, userID, setID, SetSkipped, nil, nil)
}

// UnlogSet reverts a completed set to pending and clears its actuals.
func (s *Service) UnlogSet(ctx context.Context, userID, setID int) (WorkoutSet, error) {
	return s.transitionSet(ctx, userID, setID, SetPending, nil, nil)
}

func (s *Service) transitionSet(
	ctx context.Context,
	userID, setID int,
	to SetStatus,
	actualWeightKg *float64,
	actualReps *int,
) (WorkoutSet, error) {
	set, w, err := s.repo.workouts.GetSet(ctx, userID, setID)
	if err != nil {
		return WorkoutSet{}, errors.Wrap(err, "get workout set")
	}
	if w.Status != WorkoutInProgress {
		return WorkoutSet{}, errors.Wrap(ErrInvalidTransition, "workout is not in progress",
			slog.String("workout_status", string(w.Status)))
	}
	if err = checkSetTransition(set.Status, to); err != nil {
		return WorkoutSet{}, err
	}
	if err = s.repo.workouts.UpdateSet(ctx, set.ID, set.Status, to, actualWeightKg, actualReps); err != nil {
		return WorkoutSet{}, errors.Wrap(err, "update workout set")
	}
	set.Status = to
	set.ActualWeightKg = actualWeightKg
	set.ActualReps = actualReps
	return set, nil
}

// AddSet appends an extra pending set of the exercise to an in-progress
// workout, using the targets already prescribed for that week. The engine is
// never re-run here.
func (s *Service) AddSet(ctx context.Context, userID, workoutID, exerciseID int) (WorkoutSet, error) {
	w, err := s.repo.workouts.Get(ctx, userID, workoutID)
	if err != nil {
		return WorkoutSet{}, errors.Wrap(err, "get workout")
	}
	if w.Status != WorkoutInProgress {
		return WorkoutSet{}, errors.Wrap(ErrInvalidTransition, "workout is not in progress",
			slog.String("workout_status", string(w.Status)))
	}

	m, err := s.repo.mesocycles.Get(ctx, userID, w.MesocycleID)
	if err != nil {
		return WorkoutSet{}, errors.Wrap(err, "get mesocycle")
	}
	plan, err := s.repo.plans.Get(ctx, m.PlanID)
	if err != nil {
		return WorkoutSet{}, errors.Wrap(err, "get plan")
	}
	slot, err := findSlot(plan, w.PlanDayID, exerciseID)
	if err != nil {
		return WorkoutSet{}, err
	}

	targets, err := s.repo.mesocycles.GetWeekTargets(ctx, w.MesocycleID, w.WeekNumber)
	if err != nil {
		return WorkoutSet{}, errors.Wrap(err, "get week targets")
	}
	t, ok := targets[slot.ID]
	if !ok {
		return WorkoutSet{}, errors.Wrap(ErrNotFound, "no targets prescribed for exercise this week",
			slog.Int("plan_exercise_id", slot.ID),
			slog.Int("week", w.WeekNumber))
	}

	return s.repo.workouts.AddSet(ctx, WorkoutSet{
		WorkoutID:      w.ID,
		ExerciseID:     exerciseID,
		PlanExerciseID: slot.ID,
		TargetWeightKg: t.TargetWeightKg,
		TargetReps:     t.TargetReps,
	})
}

// RemoveSet removes the highest-numbered pending set of the exercise from an
// in-progress workout. ErrValidation when no pending set remains.
func (s *Service) RemoveSet(ctx context.Context, userID, workoutID, exerciseID int) error {
	w, err := s.repo.workouts.Get(ctx, userID, workoutID)
	if err != nil {
		return errors.Wrap(err, "get workout")
	}
	if w.Status != WorkoutInProgress {
		return errors.Wrap(ErrInvalidTransition, "workout is not in progress",
			slog.String("workout_status", string(w.Status)))
	}
	return s.repo.workouts.RemoveHighestPendingSet(ctx, w.ID, exerciseID)
}

func findSlot(plan Plan, planDayID, exerciseID int) (PlanDayExercise, error) {
	for _, day := range plan.Days {
		if day.ID != planDayID {
			continue
		}
		for _, slot := range day.Exercises {
			if slot.ExerciseID == exerciseID {
				return slot, nil
			}
		}
	}
	return PlanDayExercise{}, errors.Wrap(ErrValidation, "exercise is not part of the workout's plan day",
		slog.Int("exercise_id", exerciseID),
		slog.Int("plan_day_id", planDayID))
}

// ListPlans returns the available training plans without their days.
func (s *Service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.plans.List(ctx)
}

// GetPlan returns one plan with its days and exercise slots.
func (s *Service) GetPlan(ctx context.Context, planID int) (Plan, error) {
	return s.repo.plans.Get(ctx, planID)
}

// AddPlanExercise appends an exercise slot to a plan day. The slot's
// progression baseline must be valid; active mesocycles pick the new slot up
// at their next week advancement.
func (s *Service) AddPlanExercise(
	ctx context.Context,
	planDayID int,
	slot PlanDayExercise,
) (PlanDayExercise, error) {
	if err := slotProfile(slot).Validate(); err != nil {
		return PlanDayExercise{}, errors.Wrap(ErrValidation, "invalid progression baseline",
			errors.SlogError(err))
	}
	if _, err := s.repo.exercises.Get(ctx, slot.ExerciseID); err != nil {
		return PlanDayExercise{}, errors.Wrap(err, "get exercise")
	}
	return s.repo.plans.AddDayExercise(ctx, planDayID, slot)
}

// ListExercises returns all exercises with their muscle groups.
func (s *Service) ListExercises(ctx context.Context) ([]Exercise, error) {
	return s.repo.exercises.List(ctx)
}

// GetExercise returns one exercise with its muscle groups.
func (s *Service) GetExercise(ctx context.Context, exerciseID int) (Exercise, error) {
	return s.repo.exercises.Get(ctx, exerciseID)
}

// ListMuscleGroups returns the known muscle group names.
func (s *Service) ListMuscleGroups(ctx context.Context) ([]string, error) {
	return s.repo.exercises.ListMuscleGroups(ctx)
}

// GenerateExercise creates a new exercise from a bare name, filling in the
// category, muscle groups and description via the configured generator. When
// generation is unavailable or fails, a minimal exercise is stored so the
// user is not blocked.
func (s *Service) GenerateExercise(ctx context.Context, name string) (Exercise, error) {
	if name == "" {
		return Exercise{}, errors.Wrap(ErrValidation, "exercise name cannot be empty")
	}

	exercise := Exercise{
		Name:         name,
		Category:     CategoryFullBody,
		ExerciseType: ExerciseTypeWeighted,
	}
	if s.generator != nil {
		muscleGroups, err := s.repo.exercises.ListMuscleGroups(ctx)
		if err != nil {
			return Exercise{}, errors.Wrap(err, "list muscle groups")
		}
		generated, err := s.generator.Generate(ctx, name, muscleGroups)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "exercise generation failed, storing skeleton",
				slog.String("name", name),
				errors.SlogError(err))
		} else {
			exercise = generated
		}
	}

	return s.repo.exercises.Create(ctx, exercise)
}

// UpdateExercise applies fn to the exercise inside a read-modify-write cycle.
// fn returns false to abort without writing.
func (s *Service) UpdateExercise(
	ctx context.Context,
	exerciseID int,
	fn func(*Exercise) (bool, error),
) error {
	return s.repo.exercises.Update(ctx, exerciseID, fn)
}

// MaintenanceMode reports whether the maintenance feature flag is enabled. A
// missing flag means maintenance is off.
func (s *Service) MaintenanceMode(ctx context.Context) (bool, error) {
	flag, err := s.repo.flags.Get(ctx, FlagMaintenanceMode)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "get maintenance flag")
	}
	return flag.Enabled, nil
}

// ListFeatureFlags returns all feature flags.
func (s *Service) ListFeatureFlags(ctx context.Context) ([]FeatureFlag, error) {
	return s.repo.flags.List(ctx)
}

// ToggleFeatureFlag flips a flag's state, creating it enabled when it does not
// exist yet.
func (s *Service) ToggleFeatureFlag(ctx context.Context, name string) (FeatureFlag, error) {
	flag, err := s.repo.flags.Get(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		flag = FeatureFlag{Name: name}
	case err != nil:
		return FeatureFlag{}, errors.Wrap(err, "get feature flag")
	}

	flag.Enabled = !flag.Enabled
	if err := s.repo.flags.Set(ctx, flag); err != nil {
		return FeatureFlag{}, errors.Wrap(err, "set feature flag")
	}
	return flag, nil
}

// ExportUserData dumps everything belonging to the user into a standalone
// SQLite file and returns its path.
func (s *Service) ExportUserData(ctx context.Context, userID int, basePath string) (string, error) {
	return s.db.ExportUserData(ctx, userID, basePath)
}
