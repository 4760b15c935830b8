package main

import (
	"net/http"
)

func (app *application) routes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	var (
		withoutMaintenanceMode = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(app.crossOriginProtection(app.timeout(next))))
		}
		shared = func(next http.Handler) http.Handler {
			return withoutMaintenanceMode(app.maintenanceMode(next))
		}
		noAuth = func(next http.Handler) http.Handler {
			return app.recoverPanic(withoutMaintenanceMode(next))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
				app.webAuthnHandler.AuthenticateMiddleware(shared(next)))))
		}
		mustSession = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticate(next))
		}
		mustAdmin = func(next http.Handler) http.Handler {
			return mustSession(app.mustAdmin(next))
		}
	)

	mux.Handle("POST /api/registration/start", session(http.HandlerFunc(app.beginRegistration)))
	mux.Handle("POST /api/registration/finish", session(http.HandlerFunc(app.finishRegistration)))
	mux.Handle("POST /api/login/start", session(http.HandlerFunc(app.beginLogin)))
	mux.Handle("POST /api/login/finish", session(http.HandlerFunc(app.finishLogin)))
	mux.Handle("POST /api/logout", session(http.HandlerFunc(app.logout)))
	mux.Handle("GET /api/healthy", session(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", noAuth(http.HandlerFunc(app.testTimeout)))

	mux.Handle("GET /api/plans", mustSession(http.HandlerFunc(app.plansGET)))
	mux.Handle("GET /api/plans/{id}", mustSession(http.HandlerFunc(app.planGET)))

	mux.Handle("POST /api/mesocycles", mustSession(http.HandlerFunc(app.mesocycleStartPOST)))
	mux.Handle("GET /api/mesocycles/current", mustSession(http.HandlerFunc(app.mesocycleCurrentGET)))
	mux.Handle("POST /api/mesocycles/{id}/complete", mustSession(http.HandlerFunc(app.mesocycleCompletePOST)))
	mux.Handle("POST /api/mesocycles/{id}/cancel", mustSession(http.HandlerFunc(app.mesocycleCancelPOST)))
	mux.Handle("POST /api/mesocycles/{id}/advance", mustSession(http.HandlerFunc(app.mesocycleAdvancePOST)))

	mux.Handle("GET /api/workouts/{id}", mustSession(http.HandlerFunc(app.workoutGET)))
	mux.Handle("POST /api/workouts/{id}/start", mustSession(http.HandlerFunc(app.workoutStartPOST)))
	mux.Handle("POST /api/workouts/{id}/complete", mustSession(http.HandlerFunc(app.workoutCompletePOST)))
	mux.Handle("POST /api/workouts/{id}/skip", mustSession(http.HandlerFunc(app.workoutSkipPOST)))
	mux.Handle("POST /api/workouts/{id}/exercises/{exerciseID}/sets/add",
		mustSession(http.HandlerFunc(app.workoutAddSetPOST)))
	mux.Handle("POST /api/workouts/{id}/exercises/{exerciseID}/sets/remove",
		mustSession(http.HandlerFunc(app.workoutRemoveSetPOST)))

	mux.Handle("POST /api/sets/{id}/log", mustSession(http.HandlerFunc(app.setLogPOST)))
	mux.Handle("POST /api/sets/{id}/skip", mustSession(http.HandlerFunc(app.setSkipPOST)))
	mux.Handle("POST /api/sets/{id}/unlog", mustSession(http.HandlerFunc(app.setUnlogPOST)))

	mux.Handle("GET /api/exercises", mustSession(http.HandlerFunc(app.exercisesGET)))
	mux.Handle("GET /api/exercises/{id}", mustSession(http.HandlerFunc(app.exerciseGET)))
	mux.Handle("GET /api/exercises/{id}/info", mustSession(http.HandlerFunc(app.exerciseInfoGET)))
	mux.Handle("GET /api/muscle-groups", mustSession(http.HandlerFunc(app.muscleGroupsGET)))

	mux.Handle("GET /api/me/export", mustSession(http.HandlerFunc(app.exportUserDataGET)))

	mux.Handle("POST /api/admin/exercises/generate", mustAdmin(http.HandlerFunc(app.adminExerciseGeneratePOST)))
	mux.Handle("PUT /api/admin/exercises/{id}", mustAdmin(http.HandlerFunc(app.adminExercisePUT)))
	mux.Handle("POST /api/admin/plan-days/{id}/exercises", mustAdmin(http.HandlerFunc(app.adminPlanExercisePOST)))
	mux.Handle("GET /api/admin/feature-flags", mustAdmin(http.HandlerFunc(app.adminFeatureFlagsGET)))
	mux.Handle("POST /api/admin/feature-flags/{name}/toggle",
		mustAdmin(http.HandlerFunc(app.adminFeatureFlagTogglePOST)))

	return mux, nil
}
