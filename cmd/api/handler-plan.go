package main

import (
	"net/http"
)

// plansGET lists the available training plans.
func (app *application) plansGET(w http.ResponseWriter, r *http.Request) {
	plans, err := app.trainingService.ListPlans(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, plans)
}

// planGET returns one plan with its days and exercise slots.
func (app *application) planGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	plan, err := app.trainingService.GetPlan(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, plan)
}
