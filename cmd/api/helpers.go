package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jhellman/mesoapp/internal/errors"
	"github.com/jhellman/mesoapp/internal/progression"
	"github.com/jhellman/mesoapp/internal/training"
)

// errorResponse is the JSON error envelope every failure is rendered as.
type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response", errors.SlogError(err))
	}
}

// readJSON decodes the request body into dst, rejecting unknown fields. A
// false return means the 400 response has already been written.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return false
	}
	return true
}

// writeError maps the service error kinds onto HTTP status codes. Anything
// unrecognised is a 500 and gets logged with its annotations.
func (app *application) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, training.ErrValidation),
		errors.Is(err, progression.ErrInvalidProfile),
		errors.Is(err, progression.ErrStalePerformance):
		status = http.StatusBadRequest
	case errors.Is(err, training.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, training.ErrInvalidTransition),
		errors.Is(err, training.ErrConflict):
		status = http.StatusConflict
	default:
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

// pathID parses an integer path parameter. A false return means the 404
// response has already been written.
func (app *application) pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
