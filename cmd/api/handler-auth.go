package main

import (
	"net/http"

	"github.com/jhellman/mesoapp/internal/errors"
)

type statusOKResponse struct {
	Status string `json:"status"`
}

func statusOK() statusOKResponse {
	return statusOKResponse{Status: "ok"}
}

// beginRegistration starts a passkey registration ceremony and returns the
// credential creation options.
func (app *application) beginRegistration(w http.ResponseWriter, r *http.Request) {
	options, err := app.webAuthnHandler.BeginRegistration(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "begin registration"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(options)
}

func (app *application) finishRegistration(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishRegistration(r); err != nil {
		app.serverError(w, r, errors.Wrap(err, "finish registration"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusOK())
}

// beginLogin starts a discoverable-credential login ceremony and returns the
// credential request options.
func (app *application) beginLogin(w http.ResponseWriter, r *http.Request) {
	options, err := app.webAuthnHandler.BeginLogin(w, r)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "begin login"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(options)
}

func (app *application) finishLogin(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishLogin(r); err != nil {
		app.serverError(w, r, errors.Wrap(err, "finish login"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusOK())
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.Logout(r.Context()); err != nil {
		app.serverError(w, r, errors.Wrap(err, "logout"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusOK())
}
