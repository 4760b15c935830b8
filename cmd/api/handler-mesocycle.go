package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jhellman/mesoapp/internal/contexthelpers"
	"github.com/jhellman/mesoapp/internal/training"
)

type startMesocycleRequest struct {
	PlanID        int    `json:"plan_id"`
	StartDate     string `json:"start_date"`
	DurationWeeks int    `json:"duration_weeks"`
}

type mesocycleResponse struct {
	Mesocycle training.Mesocycle `json:"mesocycle"`
	Workouts  []training.Workout `json:"workouts,omitempty"`
}

// mesocycleStartPOST starts a new training block for the authenticated user.
func (app *application) mesocycleStartPOST(w http.ResponseWriter, r *http.Request) {
	var req startMesocycleRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	startDate, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "start_date must be YYYY-MM-DD"})
		return
	}

	userID := contexthelpers.AuthenticatedUserID(r.Context())
	m, err := app.trainingService.StartMesocycle(r.Context(), userID, req.PlanID, startDate, req.DurationWeeks)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, mesocycleResponse{Mesocycle: m})
}

// mesocycleCurrentGET returns the active mesocycle with the current week's
// workouts.
func (app *application) mesocycleCurrentGET(w http.ResponseWriter, r *http.Request) {
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	m, workouts, err := app.trainingService.CurrentMesocycle(r.Context(), userID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, mesocycleResponse{Mesocycle: m, Workouts: workouts})
}

func (app *application) mesocycleCompletePOST(w http.ResponseWriter, r *http.Request) {
	app.transitionMesocycle(w, r, app.trainingService.CompleteMesocycle)
}

func (app *application) mesocycleCancelPOST(w http.ResponseWriter, r *http.Request) {
	app.transitionMesocycle(w, r, app.trainingService.CancelMesocycle)
}

// mesocycleAdvancePOST forces a week advancement without waiting for the
// scheduler, e.g. when the user wants to wrap up a week early.
func (app *application) mesocycleAdvancePOST(w http.ResponseWriter, r *http.Request) {
	app.transitionMesocycle(w, r, app.trainingService.AdvanceWeek)
}

func (app *application) transitionMesocycle(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, userID, mesocycleID int) (training.Mesocycle, error),
) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	userID := contexthelpers.AuthenticatedUserID(r.Context())
	m, err := transition(r.Context(), userID, id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, mesocycleResponse{Mesocycle: m})
}
