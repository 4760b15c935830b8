package main

import (
	"context"
	"net/http"

	"github.com/jhellman/mesoapp/internal/contexthelpers"
	"github.com/jhellman/mesoapp/internal/training"
)

// workoutGET returns one workout with its sets.
func (app *application) workoutGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	workout, err := app.trainingService.GetWorkout(r.Context(), userID, id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, workout)
}

func (app *application) workoutStartPOST(w http.ResponseWriter, r *http.Request) {
	app.transitionWorkout(w, r, app.trainingService.StartWorkout)
}

func (app *application) workoutCompletePOST(w http.ResponseWriter, r *http.Request) {
	app.transitionWorkout(w, r, app.trainingService.CompleteWorkout)
}

func (app *application) workoutSkipPOST(w http.ResponseWriter, r *http.Request) {
	app.transitionWorkout(w, r, app.trainingService.SkipWorkout)
}

func (app *application) transitionWorkout(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, userID, workoutID int) (training.Workout, error),
) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	workout, err := transition(r.Context(), userID, id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, workout)
}

// workoutAddSetPOST appends an extra set of the exercise to an in-progress
// workout.
func (app *application) workoutAddSetPOST(w http.ResponseWriter, r *http.Request) {
	workoutID, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	exerciseID, ok := app.pathID(w, r, "exerciseID")
	if !ok {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	set, err := app.trainingService.AddSet(r.Context(), userID, workoutID, exerciseID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, set)
}

// workoutRemoveSetPOST removes the highest-numbered pending set of the
// exercise.
func (app *application) workoutRemoveSetPOST(w http.ResponseWriter, r *http.Request) {
	workoutID, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	exerciseID, ok := app.pathID(w, r, "exerciseID")
	if !ok {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	if err := app.trainingService.RemoveSet(r.Context(), userID, workoutID, exerciseID); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusOK())
}
