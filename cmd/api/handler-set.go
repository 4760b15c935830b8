package main

import (
	"context"
	"net/http"

	"github.com/jhellman/mesoapp/internal/contexthelpers"
	"github.com/jhellman/mesoapp/internal/training"
)

type logSetRequest struct {
	ActualWeightKg float64 `json:"actual_weight_kg"`
	ActualReps     int     `json:"actual_reps"`
}

// setLogPOST records the actual reps and weight of a set.
func (app *application) setLogPOST(w http.ResponseWriter, r *http.Request) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	var req logSetRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	set, err := app.trainingService.LogSet(r.Context(), userID, id, req.ActualWeightKg, req.ActualReps)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, set)
}

func (app *application) setSkipPOST(w http.ResponseWriter, r *http.Request) {
	app.transitionSet(w, r, app.trainingService.SkipSet)
}

func (app *application) setUnlogPOST(w http.ResponseWriter, r *http.Request) {
	app.transitionSet(w, r, app.trainingService.UnlogSet)
}

func (app *application) transitionSet(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, userID, setID int) (training.WorkoutSet, error),
) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	set, err := transition(r.Context(), userID, id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, set)
}
