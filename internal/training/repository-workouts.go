package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhellman/mesoapp/internal/progression"
)

// sqliteWorkoutRepository persists workouts and their sets.
type sqliteWorkoutRepository struct {
	baseRepository
}

// Get retrieves a workout owned by the user, with its sets.
func (r *sqliteWorkoutRepository) Get(ctx context.Context, userID, workoutID int) (Workout, error) {
	var (
		w              Workout
		scheduledStr   string
		startedAtStr   sql.NullString
		completedAtStr sql.NullString
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT w.id, w.mesocycle_id, w.plan_day_id, w.week_number, w.scheduled_date,
		       w.status, w.started_at, w.completed_at
		FROM workouts w
		JOIN mesocycles m ON m.id = w.mesocycle_id
		WHERE w.id = ? AND m.user_id = ?`,
		workoutID, userID).Scan(
		&w.ID, &w.MesocycleID, &w.PlanDayID, &w.WeekNumber, &scheduledStr,
		&w.Status, &startedAtStr, &completedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Workout{}, fmt.Errorf("workout %d: %w", workoutID, ErrNotFound)
	}
	if err != nil {
		return Workout{}, fmt.Errorf("query workout: %w", err)
	}

	if w.ScheduledDate, err = time.Parse(dateFormat, scheduledStr); err != nil {
		return Workout{}, fmt.Errorf("parse scheduled date: %w", err)
	}
	if w.StartedAt, err = parseTimestamp(startedAtStr); err != nil {
		return Workout{}, fmt.Errorf("parse started_at: %w", err)
	}
	if w.CompletedAt, err = parseTimestamp(completedAtStr); err != nil {
		return Workout{}, fmt.Errorf("parse completed_at: %w", err)
	}

	if w.Sets, err = r.loadSets(ctx, w.ID); err != nil {
		return Workout{}, fmt.Errorf("load workout sets: %w", err)
	}

	return w, nil
}

// ListByWeek retrieves all workouts of one week of a mesocycle, with sets.
func (r *sqliteWorkoutRepository) ListByWeek(ctx context.Context, mesocycleID, weekNumber int) (_ []Workout, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT w.id, w.mesocycle_id, w.plan_day_id, w.week_number, w.scheduled_date,
		       w.status, w.started_at, w.completed_at
		FROM workouts w
		JOIN plan_days pd ON pd.id = w.plan_day_id
		WHERE w.mesocycle_id = ? AND w.week_number = ?
		ORDER BY pd.day_index`,
		mesocycleID, weekNumber)
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var workouts []Workout
	for rows.Next() {
		var (
			w              Workout
			scheduledStr   string
			startedAtStr   sql.NullString
			completedAtStr sql.NullString
		)
		if err = rows.Scan(&w.ID, &w.MesocycleID, &w.PlanDayID, &w.WeekNumber, &scheduledStr,
			&w.Status, &startedAtStr, &completedAtStr); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		if w.ScheduledDate, err = time.Parse(dateFormat, scheduledStr); err != nil {
			return nil, fmt.Errorf("parse scheduled date: %w", err)
		}
		if w.StartedAt, err = parseTimestamp(startedAtStr); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if w.CompletedAt, err = parseTimestamp(completedAtStr); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		workouts = append(workouts, w)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range workouts {
		if workouts[i].Sets, err = r.loadSets(ctx, workouts[i].ID); err != nil {
			return nil, fmt.Errorf("load sets for workout %d: %w", workouts[i].ID, err)
		}
	}

	return workouts, nil
}

// loadSets fetches the sets of a workout ordered by exercise slot and set
// number, so clients see the plan's exercise order.
func (r *sqliteWorkoutRepository) loadSets(ctx context.Context, workoutID int) (_ []WorkoutSet, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, workout_id, exercise_id, plan_exercise_id, set_number,
		       target_weight_kg, target_reps, actual_weight_kg, actual_reps, status
		FROM workout_sets
		WHERE workout_id = ?
		ORDER BY plan_exercise_id, set_number`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("query workout sets: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var sets []WorkoutSet
	for rows.Next() {
		var set WorkoutSet
		if err = rows.Scan(&set.ID, &set.WorkoutID, &set.ExerciseID, &set.PlanExerciseID, &set.SetNumber,
			&set.TargetWeightKg, &set.TargetReps, &set.ActualWeightKg, &set.ActualReps, &set.Status); err != nil {
			return nil, fmt.Errorf("scan workout set: %w", err)
		}
		sets = append(sets, set)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sets, nil
}

// UpdateStatus transitions a workout with an optimistic precondition on the
// status read by the caller, stamping started_at/completed_at as appropriate.
func (r *sqliteWorkoutRepository) UpdateStatus(ctx context.Context, id int, from, to WorkoutStatus, now time.Time) error {
	var (
		result sql.Result
		err    error
	)
	switch to {
	case WorkoutInProgress:
		result, err = r.db.ReadWrite.ExecContext(ctx, `
			UPDATE workouts SET status = ?, started_at = ?
			WHERE id = ? AND status = ?`,
			to, formatTimestamp(&now), id, from)
	case WorkoutCompleted:
		result, err = r.db.ReadWrite.ExecContext(ctx, `
			UPDATE workouts SET status = ?, completed_at = ?
			WHERE id = ? AND status = ?`,
			to, formatTimestamp(&now), id, from)
	default:
		result, err = r.db.ReadWrite.ExecContext(ctx, `
			UPDATE workouts SET status = ?
			WHERE id = ? AND status = ?`,
			to, id, from)
	}
	if err != nil {
		return fmt.Errorf("update workout status: %w", err)
	}
	return r.checkAffected(ctx, result, "workouts", id)
}

// GetSet retrieves a single set and its parent workout, checking ownership.
// The parent is returned without its sibling sets.
func (r *sqliteWorkoutRepository) GetSet(ctx context.Context, userID, setID int) (WorkoutSet, Workout, error) {
	var (
		set          WorkoutSet
		w            Workout
		scheduledStr string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT s.id, s.workout_id, s.exercise_id, s.plan_exercise_id, s.set_number,
		       s.target_weight_kg, s.target_reps, s.actual_weight_kg, s.actual_reps, s.status,
		       w.id, w.mesocycle_id, w.plan_day_id, w.week_number, w.scheduled_date, w.status
		FROM workout_sets s
		JOIN workouts w ON w.id = s.workout_id
		JOIN mesocycles m ON m.id = w.mesocycle_id
		WHERE s.id = ? AND m.user_id = ?`,
		setID, userID).Scan(
		&set.ID, &set.WorkoutID, &set.ExerciseID, &set.PlanExerciseID, &set.SetNumber,
		&set.TargetWeightKg, &set.TargetReps, &set.ActualWeightKg, &set.ActualReps, &set.Status,
		&w.ID, &w.MesocycleID, &w.PlanDayID, &w.WeekNumber, &scheduledStr, &w.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkoutSet{}, Workout{}, fmt.Errorf("workout set %d: %w", setID, ErrNotFound)
	}
	if err != nil {
		return WorkoutSet{}, Workout{}, fmt.Errorf("query workout set: %w", err)
	}
	if w.ScheduledDate, err = time.Parse(dateFormat, scheduledStr); err != nil {
		return WorkoutSet{}, Workout{}, fmt.Errorf("parse scheduled date: %w", err)
	}
	return set, w, nil
}

// UpdateSet transitions a set with an optimistic precondition on the status
// read by the caller, writing or clearing the actuals.
func (r *sqliteWorkoutRepository) UpdateSet(
	ctx context.Context,
	id int,
	from, to SetStatus,
	actualWeightKg *float64,
	actualReps *int,
) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE workout_sets
		SET status = ?, actual_weight_kg = ?, actual_reps = ?
		WHERE id = ? AND status = ?`,
		to, actualWeightKg, actualReps, id, from)
	if err != nil {
		return fmt.Errorf("update workout set: %w", err)
	}
	return r.checkAffected(ctx, result, "workout_sets", id)
}

// AddSet appends a pending set numbered after the exercise's current highest
// set in the workout. The numbering subquery runs inside the insert so two
// concurrent adds cannot produce the same set number.
func (r *sqliteWorkoutRepository) AddSet(ctx context.Context, set WorkoutSet) (WorkoutSet, error) {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO workout_sets (workout_id, exercise_id, plan_exercise_id, set_number,
		                          target_weight_kg, target_reps, status)
		SELECT ?, ?, ?, COALESCE(MAX(set_number), 0) + 1, ?, ?, ?
		FROM workout_sets
		WHERE workout_id = ? AND exercise_id = ?`,
		set.WorkoutID, set.ExerciseID, set.PlanExerciseID,
		set.TargetWeightKg, set.TargetReps, SetPending,
		set.WorkoutID, set.ExerciseID)
	if err != nil {
		return WorkoutSet{}, fmt.Errorf("insert workout set: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return WorkoutSet{}, fmt.Errorf("get last insert ID: %w", err)
	}
	set.ID = int(id)
	set.Status = SetPending

	err = r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT set_number FROM workout_sets WHERE id = ?`, set.ID).Scan(&set.SetNumber)
	if err != nil {
		return WorkoutSet{}, fmt.Errorf("read back set number: %w", err)
	}
	return set, nil
}

// RemoveHighestPendingSet removes the highest-numbered pending set of the
// exercise in the workout. ErrValidation when no pending set remains.
func (r *sqliteWorkoutRepository) RemoveHighestPendingSet(ctx context.Context, workoutID, exerciseID int) error {
	var id int
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id FROM workout_sets
		WHERE workout_id = ? AND exercise_id = ? AND status = 'pending'
		ORDER BY set_number DESC
		LIMIT 1`,
		workoutID, exerciseID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no removable pending set for exercise %d: %w", exerciseID, ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("query removable set: %w", err)
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		DELETE FROM workout_sets WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("delete workout set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set %d changed concurrently: %w", id, ErrConflict)
	}
	return nil
}

// SetResultsByWeek projects the logged sets of one week into the engine's
// input shape, keyed by plan exercise slot. Skipped and pending sets count as
// not completed.
func (r *sqliteWorkoutRepository) SetResultsByWeek(
	ctx context.Context,
	mesocycleID, weekNumber int,
) (_ map[int][]progression.SetResult, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT s.plan_exercise_id, s.status, s.actual_weight_kg, s.actual_reps
		FROM workout_sets s
		JOIN workouts w ON w.id = s.workout_id
		WHERE w.mesocycle_id = ? AND w.week_number = ?
		ORDER BY s.plan_exercise_id, s.set_number`,
		mesocycleID, weekNumber)
	if err != nil {
		return nil, fmt.Errorf("query week set results: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	results := make(map[int][]progression.SetResult)
	for rows.Next() {
		var (
			planExerciseID int
			status         SetStatus
			actualWeightKg sql.NullFloat64
			actualReps     sql.NullInt64
		)
		if err = rows.Scan(&planExerciseID, &status, &actualWeightKg, &actualReps); err != nil {
			return nil, fmt.Errorf("scan set result: %w", err)
		}
		set := progression.SetResult{Completed: status == SetCompleted}
		if set.Completed {
			set.ActualWeightKg = actualWeightKg.Float64
			set.ActualReps = int(actualReps.Int64)
		}
		results[planExerciseID] = append(results[planExerciseID], set)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// checkAffected distinguishes a lost optimistic race from a missing row after
// a conditional update touched nothing.
func (r *sqliteWorkoutRepository) checkAffected(ctx context.Context, result sql.Result, table string, id int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	//nolint:gosec // table is one of two compile-time constants.
	err = r.db.ReadOnly.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s row %d: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check %s existence: %w", table, err)
	}
	return fmt.Errorf("%s row %d transition lost race: %w", table, id, ErrConflict)
}
