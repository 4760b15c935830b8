package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sqlitePlanRepository reads the training plan catalog. Plans ship as
// fixtures or are authored by admins, so the repository surface is read-only
// apart from adding exercise slots.
type sqlitePlanRepository struct {
	baseRepository
}

// List retrieves all plans without their day details.
func (r *sqlitePlanRepository) List(ctx context.Context) (_ []Plan, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, name, description
		FROM plans
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var plans []Plan
	for rows.Next() {
		var plan Plan
		if err = rows.Scan(&plan.ID, &plan.Name, &plan.Description); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return plans, nil
}

// Get retrieves a plan with its days and exercise slots.
func (r *sqlitePlanRepository) Get(ctx context.Context, id int) (Plan, error) {
	var plan Plan

	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, name, description
		FROM plans
		WHERE id = ?`, id).Scan(&plan.ID, &plan.Name, &plan.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, fmt.Errorf("plan %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("query plan: %w", err)
	}

	if plan.Days, err = r.loadDays(ctx, plan.ID); err != nil {
		return Plan{}, fmt.Errorf("load plan days: %w", err)
	}

	return plan, nil
}

// loadDays fetches the days and exercise slots of a plan.
func (r *sqlitePlanRepository) loadDays(ctx context.Context, planID int) (_ []PlanDay, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, day_index, name
		FROM plan_days
		WHERE plan_id = ?
		ORDER BY day_index`, planID)
	if err != nil {
		return nil, fmt.Errorf("query plan days: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var days []PlanDay
	for rows.Next() {
		var day PlanDay
		if err = rows.Scan(&day.ID, &day.DayIndex, &day.Name); err != nil {
			return nil, fmt.Errorf("scan plan day: %w", err)
		}
		days = append(days, day)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range days {
		if days[i].Exercises, err = r.loadDayExercises(ctx, days[i].ID); err != nil {
			return nil, fmt.Errorf("load exercises for day %d: %w", days[i].ID, err)
		}
	}

	return days, nil
}

// loadDayExercises fetches the exercise slots of a plan day.
func (r *sqlitePlanRepository) loadDayExercises(ctx context.Context, planDayID int) (_ []PlanDayExercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT pde.id, pde.exercise_id, e.name, pde.position,
		       pde.base_weight_kg, pde.base_reps, pde.base_sets,
		       pde.weight_increment_kg, pde.min_reps, pde.max_reps
		FROM plan_day_exercises pde
		JOIN exercises e ON e.id = pde.exercise_id
		WHERE pde.plan_day_id = ?
		ORDER BY pde.position`, planDayID)
	if err != nil {
		return nil, fmt.Errorf("query plan day exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []PlanDayExercise
	for rows.Next() {
		var slot PlanDayExercise
		if err = rows.Scan(
			&slot.ID,
			&slot.ExerciseID,
			&slot.ExerciseName,
			&slot.Position,
			&slot.BaseWeightKg,
			&slot.BaseReps,
			&slot.BaseSets,
			&slot.WeightIncrementKg,
			&slot.MinReps,
			&slot.MaxReps,
		); err != nil {
			return nil, fmt.Errorf("scan plan day exercise: %w", err)
		}
		exercises = append(exercises, slot)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return exercises, nil
}

// AddDayExercise appends an exercise slot to a plan day, defining its
// progression profile.
func (r *sqlitePlanRepository) AddDayExercise(ctx context.Context, planDayID int, slot PlanDayExercise) (PlanDayExercise, error) {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO plan_day_exercises (plan_day_id, exercise_id, position,
		                                base_weight_kg, base_reps, base_sets,
		                                weight_increment_kg, min_reps, max_reps)
		SELECT ?, ?, COALESCE(MAX(position), 0) + 1, ?, ?, ?, ?, ?, ?
		FROM plan_day_exercises
		WHERE plan_day_id = ?`,
		planDayID, slot.ExerciseID,
		slot.BaseWeightKg, slot.BaseReps, slot.BaseSets,
		slot.WeightIncrementKg, slot.MinReps, slot.MaxReps,
		planDayID)
	if err != nil {
		return PlanDayExercise{}, fmt.Errorf("insert plan day exercise: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return PlanDayExercise{}, fmt.Errorf("get last insert ID: %w", err)
	}
	slot.ID = int(id)
	return slot, nil
}
