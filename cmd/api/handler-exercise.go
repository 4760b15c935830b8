package main

import (
	"bytes"
	"fmt"
	"html"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/jhellman/mesoapp/internal/errors"
)

// exercisesGET lists the exercise catalog with muscle groups.
func (app *application) exercisesGET(w http.ResponseWriter, r *http.Request) {
	exercises, err := app.trainingService.ListExercises(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, exercises)
}

func (app *application) exerciseGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	exercise, err := app.trainingService.GetExercise(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, exercise)
}

// exerciseInfoGET renders the exercise description markdown as an HTML
// fragment for embedding in clients.
func (app *application) exerciseInfoGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.pathID(w, r, "id")
	if !ok {
		return
	}
	exercise, err := app.trainingService.GetExercise(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	var body bytes.Buffer
	if err = goldmark.Convert([]byte(exercise.DescriptionMarkdown), &body); err != nil {
		app.serverError(w, r, errors.Wrap(err, "render exercise markdown"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<section class=\"exercise-info\"><h1>%s</h1>\n", html.EscapeString(exercise.Name))
	_, _ = w.Write(body.Bytes())
	_, _ = w.Write([]byte("</section>\n"))
}

// muscleGroupsGET lists the known muscle group names.
func (app *application) muscleGroupsGET(w http.ResponseWriter, r *http.Request) {
	groups, err := app.trainingService.ListMuscleGroups(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, groups)
}
