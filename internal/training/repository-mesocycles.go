package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhellman/mesoapp/internal/progression"
)

// sqliteMesocycleRepository persists mesocycles and their per-week
// prescriptions.
type sqliteMesocycleRepository struct {
	baseRepository
}

// Create inserts a new active mesocycle. The partial unique index on active
// mesocycles surfaces a concurrent second start as ErrConflict.
func (r *sqliteMesocycleRepository) Create(ctx context.Context, m Mesocycle) (Mesocycle, error) {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO mesocycles (user_id, plan_id, start_date, duration_weeks, current_week, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.UserID, m.PlanID, formatDate(m.StartDate), m.DurationWeeks, m.CurrentWeek, m.Status)
	if isUniqueConstraintErr(err) {
		return Mesocycle{}, fmt.Errorf("user already has an active mesocycle: %w", ErrConflict)
	}
	if err != nil {
		return Mesocycle{}, fmt.Errorf("insert mesocycle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Mesocycle{}, fmt.Errorf("get last insert ID: %w", err)
	}
	m.ID = int(id)
	return m, nil
}

// Get retrieves a mesocycle owned by the user.
func (r *sqliteMesocycleRepository) Get(ctx context.Context, userID, id int) (Mesocycle, error) {
	m, err := r.scanOne(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, start_date, duration_weeks, current_week, status
		FROM mesocycles
		WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Mesocycle{}, fmt.Errorf("mesocycle %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Mesocycle{}, fmt.Errorf("query mesocycle: %w", err)
	}
	return m, nil
}

// GetActive retrieves the user's active mesocycle.
func (r *sqliteMesocycleRepository) GetActive(ctx context.Context, userID int) (Mesocycle, error) {
	m, err := r.scanOne(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, start_date, duration_weeks, current_week, status
		FROM mesocycles
		WHERE user_id = ? AND status = 'active'`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Mesocycle{}, fmt.Errorf("active mesocycle: %w", ErrNotFound)
	}
	if err != nil {
		return Mesocycle{}, fmt.Errorf("query active mesocycle: %w", err)
	}
	return m, nil
}

// ListDue returns active mesocycles whose current week has elapsed by the
// given date, i.e. candidates for week advancement.
func (r *sqliteMesocycleRepository) ListDue(ctx context.Context, date time.Time) (_ []Mesocycle, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, user_id, plan_id, start_date, duration_weeks, current_week, status
		FROM mesocycles
		WHERE status = 'active'
		  AND date(start_date, '+' || (current_week * 7) || ' days') <= date(?)`,
		formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("query due mesocycles: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var due []Mesocycle
	for rows.Next() {
		var m Mesocycle
		if m, err = r.scanRow(rows); err != nil {
			return nil, fmt.Errorf("scan mesocycle: %w", err)
		}
		due = append(due, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return due, nil
}

// UpdateStatus transitions a mesocycle with an optimistic precondition on the
// status read by the caller. A lost race against a concurrent transition is
// surfaced as ErrConflict.
func (r *sqliteMesocycleRepository) UpdateStatus(ctx context.Context, id int, from, to MesocycleStatus) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE mesocycles
		SET status = ?, updated = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("update mesocycle status: %w", err)
	}
	return r.checkAffected(ctx, result, id)
}

// InsertWeek persists a newly prescribed week in one transaction: the week
// targets, the workouts with their sets, and the current week increment. The
// increment carries the optimistic precondition; losing the race rolls the
// whole week back.
func (r *sqliteMesocycleRepository) InsertWeek(
	ctx context.Context,
	m Mesocycle,
	weekNumber int,
	targets map[int]progression.WeekTargets,
	workouts []Workout,
) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	for planExerciseID, t := range targets {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO week_targets (mesocycle_id, plan_exercise_id, week_number,
			                          target_weight_kg, target_reps, target_sets,
			                          is_deload, consecutive_failures)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, planExerciseID, weekNumber,
			t.TargetWeightKg, t.TargetReps, t.TargetSets,
			t.IsDeload, t.ConsecutiveFailures); err != nil {
			return fmt.Errorf("insert week targets for slot %d: %w", planExerciseID, err)
		}
	}

	for _, w := range workouts {
		var result sql.Result
		if result, err = tx.ExecContext(ctx, `
			INSERT INTO workouts (mesocycle_id, plan_day_id, week_number, scheduled_date, status)
			VALUES (?, ?, ?, ?, ?)`,
			m.ID, w.PlanDayID, weekNumber, formatDate(w.ScheduledDate), WorkoutPending); err != nil {
			return fmt.Errorf("insert workout for day %d: %w", w.PlanDayID, err)
		}
		var workoutID int64
		if workoutID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("get last insert ID: %w", err)
		}
		for _, set := range w.Sets {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO workout_sets (workout_id, exercise_id, plan_exercise_id, set_number,
				                          target_weight_kg, target_reps, status)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				workoutID, set.ExerciseID, set.PlanExerciseID, set.SetNumber,
				set.TargetWeightKg, set.TargetReps, SetPending); err != nil {
				return fmt.Errorf("insert workout set %d: %w", set.SetNumber, err)
			}
		}
	}

	if weekNumber > 1 {
		var result sql.Result
		if result, err = tx.ExecContext(ctx, `
			UPDATE mesocycles
			SET current_week = ?, updated = CURRENT_TIMESTAMP
			WHERE id = ? AND current_week = ? AND status = 'active'`,
			weekNumber, m.ID, weekNumber-1); err != nil {
			return fmt.Errorf("advance current week: %w", err)
		}
		var affected int64
		if affected, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("mesocycle %d week advance lost race: %w", m.ID, ErrConflict)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetWeekTargets reads the stored prescriptions for one week of a mesocycle,
// keyed by plan exercise slot.
func (r *sqliteMesocycleRepository) GetWeekTargets(
	ctx context.Context,
	mesocycleID, weekNumber int,
) (_ map[int]progression.WeekTargets, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT plan_exercise_id, target_weight_kg, target_reps, target_sets,
		       is_deload, consecutive_failures
		FROM week_targets
		WHERE mesocycle_id = ? AND week_number = ?`,
		mesocycleID, weekNumber)
	if err != nil {
		return nil, fmt.Errorf("query week targets: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	targets := make(map[int]progression.WeekTargets)
	for rows.Next() {
		var (
			planExerciseID int
			t              progression.WeekTargets
		)
		if err = rows.Scan(&planExerciseID, &t.TargetWeightKg, &t.TargetReps, &t.TargetSets,
			&t.IsDeload, &t.ConsecutiveFailures); err != nil {
			return nil, fmt.Errorf("scan week targets: %w", err)
		}
		t.WeekNumber = weekNumber
		targets[planExerciseID] = t
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return targets, nil
}

// checkAffected distinguishes a lost optimistic race from a missing row after
// a conditional update touched nothing.
func (r *sqliteMesocycleRepository) checkAffected(ctx context.Context, result sql.Result, id int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = r.db.ReadOnly.QueryRowContext(ctx, `SELECT 1 FROM mesocycles WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("mesocycle %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check mesocycle existence: %w", err)
	}
	return fmt.Errorf("mesocycle %d transition lost race: %w", id, ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteMesocycleRepository) scanOne(row *sql.Row) (Mesocycle, error) {
	return r.scanRow(row)
}

func (r *sqliteMesocycleRepository) scanRow(row rowScanner) (Mesocycle, error) {
	var (
		m            Mesocycle
		startDateStr string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.PlanID, &startDateStr,
		&m.DurationWeeks, &m.CurrentWeek, &m.Status); err != nil {
		return Mesocycle{}, err
	}
	startDate, err := time.Parse(dateFormat, startDateStr)
	if err != nil {
		return Mesocycle{}, fmt.Errorf("parse start date: %w", err)
	}
	m.StartDate = startDate
	return m, nil
}
