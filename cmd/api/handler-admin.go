package main

import (
	"log/slog"
	"net/http"

	"github.com/jhellman/mesoapp/internal/errors"
	"github.com/jhellman/mesoapp/internal/training"
)

type generateExerciseRequest struct {
	Name string `json:"name"`
}

// adminExerciseGeneratePOST creates a new exercise from a bare name, filling
// in the description and muscle groups with the language model when one is
// configured.
func (app *application) adminExerciseGeneratePOST(w http.ResponseWriter, r *http.Request) {
	var req generateExerciseRequest
	if !app.readJSON(w, r, &req) {
		return
	}

	exercise, err := app.trainingService.GenerateExercise(r.Context(), req.Name)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusCreated, exercise)
}

type addPlanExerciseRequest struct {
	ExerciseID        int     `json:"exercise_id"`
	BaseWeightKg      float64 `json:"base_weight_kg"`
	BaseReps          int     `json:"base_reps"`
	BaseSets          int     `json:"base_sets"`
	WeightIncrementKg float64 `json:"weight_increment_kg"`
	MinReps           int     `json:"min_reps"`
	MaxReps           int     `json:"max_reps"`
}

// adminPlanExercisePOST appends an exercise slot with its progression
// baseline to a plan day.
func (app *application) adminPlanExercisePOST(w http.ResponseWriter, r *http.Request) {
	planDayID, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}

	var req addPlanExerciseRequest
	if !app.readJSON(w, r, &req) {
		return
	}

	slot, err := app.trainingService.AddPlanExercise(r.Context(), planDayID, training.PlanDayExercise{
		ExerciseID:        req.ExerciseID,
		BaseWeightKg:      req.BaseWeightKg,
		BaseReps:          req.BaseReps,
		BaseSets:          req.BaseSets,
		WeightIncrementKg: req.WeightIncrementKg,
		MinReps:           req.MinReps,
		MaxReps:           req.MaxReps,
	})
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusCreated, slot)
}

type updateExerciseRequest struct {
	Name                  string   `json:"name"`
	Category              string   `json:"category"`
	DescriptionMarkdown   string   `json:"description_markdown"`
	PrimaryMuscleGroups   []string `json:"primary_muscle_groups"`
	SecondaryMuscleGroups []string `json:"secondary_muscle_groups"`
}

// adminExercisePUT replaces an exercise's editable fields. Generated
// exercises often need a manual pass to fix the description or muscle
// groups.
func (app *application) adminExercisePUT(w http.ResponseWriter, r *http.Request) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateExerciseRequest
	if !app.readJSON(w, r, &req) {
		return
	}

	category := training.Category(req.Category)
	if category != training.CategoryFullBody &&
		category != training.CategoryUpper &&
		category != training.CategoryLower {
		app.writeError(w, r, errors.Wrap(training.ErrValidation, "invalid category"))
		return
	}

	var updated training.Exercise
	err := app.trainingService.UpdateExercise(r.Context(), id, func(ex *training.Exercise) (bool, error) {
		if req.Name == "" {
			return false, errors.Wrap(training.ErrValidation, "exercise name cannot be empty")
		}
		if len(req.PrimaryMuscleGroups) == 0 {
			return false, errors.Wrap(training.ErrValidation, "primary muscle groups are required")
		}
		ex.Name = req.Name
		ex.Category = category
		ex.DescriptionMarkdown = req.DescriptionMarkdown
		ex.PrimaryMuscleGroups = req.PrimaryMuscleGroups
		ex.SecondaryMuscleGroups = req.SecondaryMuscleGroups
		updated = *ex
		return true, nil
	})
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "updated exercise",
		slog.Int("id", id),
		slog.String("name", updated.Name))

	app.writeJSON(w, r, http.StatusOK, updated)
}

func (app *application) adminFeatureFlagsGET(w http.ResponseWriter, r *http.Request) {
	flags, err := app.trainingService.ListFeatureFlags(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if flags == nil {
		flags = []training.FeatureFlag{}
	}
	app.writeJSON(w, r, http.StatusOK, flags)
}

func (app *application) adminFeatureFlagTogglePOST(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	flag, err := app.trainingService.ToggleFeatureFlag(r.Context(), name)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "toggled feature flag",
		slog.String("name", flag.Name),
		slog.Bool("enabled", flag.Enabled))

	app.writeJSON(w, r, http.StatusOK, flag)
}
