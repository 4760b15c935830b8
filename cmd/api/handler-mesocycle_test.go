package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jhellman/mesoapp/internal/e2etest"
	"github.com/jhellman/mesoapp/internal/testhelpers"
	"github.com/jhellman/mesoapp/internal/training"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "MESOAPP_SQLITE_URL":
		return ":memory:", true
	case "MESOAPP_ADDR":
		return "localhost:0", true
	case "MESOAPP_SCHEDULER_ENABLED":
		// The tests drive week advancement through the API for determinism.
		return "false", true
	default:
		return "", false
	}
}

// findWorkout returns the workout for the given plan day or fails the test.
func findWorkout(t *testing.T, workouts []training.Workout, planDayID int) training.Workout {
	t.Helper()
	for _, w := range workouts {
		if w.PlanDayID == planDayID {
			return w
		}
	}
	t.Fatalf("no workout for plan day %d", planDayID)
	return training.Workout{}
}

func Test_application_mesocycleFlow(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	client := server.Client()

	t.Run("Requires authentication", func(t *testing.T) {
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/mesocycles/current", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get current mesocycle: %v", doErr)
		}
		if status != http.StatusUnauthorized {
			t.Errorf("Expected status 401 before registration, got %d", status)
		}
	})

	if err = client.Register(ctx); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	var mesocycle training.Mesocycle

	t.Run("Start mesocycle", func(t *testing.T) {
		var resp mesocycleResponse
		status, doErr := client.DoJSON(ctx, http.MethodPost, "/api/mesocycles", startMesocycleRequest{
			PlanID:        1,
			StartDate:     "2025-03-03",
			DurationWeeks: 4,
		}, &resp)
		if doErr != nil {
			t.Fatalf("Failed to start mesocycle: %v", doErr)
		}
		if status != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", status)
		}
		if resp.Mesocycle.CurrentWeek != 1 {
			t.Errorf("Expected current week 1, got %d", resp.Mesocycle.CurrentWeek)
		}
		if resp.Mesocycle.Status != training.MesocycleActive {
			t.Errorf("Expected active status, got %s", resp.Mesocycle.Status)
		}
		mesocycle = resp.Mesocycle

		// Only one active mesocycle per user.
		status, doErr = client.DoJSON(ctx, http.MethodPost, "/api/mesocycles", startMesocycleRequest{
			PlanID:        1,
			StartDate:     "2025-03-03",
			DurationWeeks: 4,
		}, nil)
		if doErr != nil {
			t.Fatalf("Failed to start second mesocycle: %v", doErr)
		}
		if status != http.StatusConflict {
			t.Errorf("Expected status 409 for second active mesocycle, got %d", status)
		}

		status, doErr = client.DoJSON(ctx, http.MethodPost, "/api/mesocycles", startMesocycleRequest{
			PlanID:        1,
			StartDate:     "not-a-date",
			DurationWeeks: 4,
		}, nil)
		if doErr != nil {
			t.Fatalf("Failed to post malformed date: %v", doErr)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status 400 for malformed date, got %d", status)
		}
	})

	var dayA, dayB training.Workout

	t.Run("First week is prescribed from the plan baselines", func(t *testing.T) {
		var resp mesocycleResponse
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/mesocycles/current", nil, &resp)
		if doErr != nil {
			t.Fatalf("Failed to get current mesocycle: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if len(resp.Workouts) != 2 {
			t.Fatalf("Expected 2 workouts in week 1, got %d", len(resp.Workouts))
		}
		dayA = findWorkout(t, resp.Workouts, 1)
		dayB = findWorkout(t, resp.Workouts, 2)

		if len(dayA.Sets) != 9 {
			t.Errorf("Expected 9 sets on day A, got %d", len(dayA.Sets))
		}
		squat := dayA.Sets[0]
		if squat.TargetWeightKg != 60 || squat.TargetReps != 8 {
			t.Errorf("Expected squat target 60kg x 8, got %.1fkg x %d", squat.TargetWeightKg, squat.TargetReps)
		}
		if squat.Status != training.SetPending {
			t.Errorf("Expected pending set, got %s", squat.Status)
		}
	})

	t.Run("Workout lifecycle", func(t *testing.T) {
		// Completing before starting is not a legal transition.
		status, doErr := client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/complete", dayA.ID), nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to complete workout: %v", doErr)
		}
		if status != http.StatusConflict {
			t.Errorf("Expected status 409 for completing a pending workout, got %d", status)
		}

		var workout training.Workout
		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/start", dayA.ID), nil, &workout)
		if doErr != nil {
			t.Fatalf("Failed to start workout: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if workout.Status != training.WorkoutInProgress {
			t.Errorf("Expected in_progress workout, got %s", workout.Status)
		}
		if workout.StartedAt == nil {
			t.Error("Expected started_at to be set")
		}

		// Log every set at its prescribed target.
		for _, set := range workout.Sets {
			var logged training.WorkoutSet
			status, doErr = client.DoJSON(ctx, http.MethodPost,
				fmt.Sprintf("/api/sets/%d/log", set.ID), logSetRequest{
					ActualWeightKg: set.TargetWeightKg,
					ActualReps:     set.TargetReps,
				}, &logged)
			if doErr != nil {
				t.Fatalf("Failed to log set %d: %v", set.ID, doErr)
			}
			if status != http.StatusOK {
				t.Fatalf("Expected status 200 logging set, got %d", status)
			}
			if logged.Status != training.SetCompleted {
				t.Errorf("Expected completed set, got %s", logged.Status)
			}
		}

		// Negative actuals are rejected.
		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/sets/%d/log", workout.Sets[0].ID), logSetRequest{
				ActualWeightKg: -5,
				ActualReps:     8,
			}, nil)
		if doErr != nil {
			t.Fatalf("Failed to log invalid set: %v", doErr)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status 400 for negative weight, got %d", status)
		}

		// An extra squat set can be added and removed while in progress.
		var added training.WorkoutSet
		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/exercises/1/sets/add", dayA.ID), nil, &added)
		if doErr != nil {
			t.Fatalf("Failed to add set: %v", doErr)
		}
		if status != http.StatusCreated {
			t.Fatalf("Expected status 201 adding set, got %d", status)
		}
		if added.SetNumber != 4 {
			t.Errorf("Expected set number 4, got %d", added.SetNumber)
		}
		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/exercises/1/sets/remove", dayA.ID), nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to remove set: %v", doErr)
		}
		if status != http.StatusOK {
			t.Errorf("Expected status 200 removing set, got %d", status)
		}

		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/complete", dayA.ID), nil, &workout)
		if doErr != nil {
			t.Fatalf("Failed to complete workout: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if workout.Status != training.WorkoutCompleted {
			t.Errorf("Expected completed workout, got %s", workout.Status)
		}

		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/complete", dayA.ID), nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to complete workout twice: %v", doErr)
		}
		if status != http.StatusConflict {
			t.Errorf("Expected status 409 for double complete, got %d", status)
		}

		// Day B is skipped without being started.
		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/workouts/%d/skip", dayB.ID), nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to skip workout: %v", doErr)
		}
		if status != http.StatusOK {
			t.Errorf("Expected status 200 skipping workout, got %d", status)
		}
	})

	t.Run("Advance to week two", func(t *testing.T) {
		var advanced training.Mesocycle
		status, doErr := client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/mesocycles/%d/advance", mesocycle.ID), nil, &advanced)
		if doErr != nil {
			t.Fatalf("Failed to advance mesocycle: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if advanced.CurrentWeek != 2 {
			t.Errorf("Expected current week 2, got %d", advanced.CurrentWeek)
		}

		var resp mesocycleResponse
		if status, doErr = client.DoJSON(ctx, http.MethodGet, "/api/mesocycles/current", nil, &resp); doErr != nil {
			t.Fatalf("Failed to get current mesocycle: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}

		// Every day A target was hit, so the squat moves up one increment.
		weekTwoDayA := findWorkout(t, resp.Workouts, 1)
		squat := weekTwoDayA.Sets[0]
		if squat.TargetWeightKg != 62.5 || squat.TargetReps != 8 {
			t.Errorf("Expected squat target 62.5kg x 8 in week 2, got %.1fkg x %d",
				squat.TargetWeightKg, squat.TargetReps)
		}

		// The skipped day B has no performance to react to and repeats its baseline.
		weekTwoDayB := findWorkout(t, resp.Workouts, 2)
		deadlift := weekTwoDayB.Sets[0]
		if deadlift.TargetWeightKg != 80 || deadlift.TargetReps != 5 {
			t.Errorf("Expected deadlift target 80kg x 5 in week 2, got %.1fkg x %d",
				deadlift.TargetWeightKg, deadlift.TargetReps)
		}
	})

	t.Run("Cancel mesocycle", func(t *testing.T) {
		var cancelled training.Mesocycle
		status, doErr := client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/mesocycles/%d/cancel", mesocycle.ID), nil, &cancelled)
		if doErr != nil {
			t.Fatalf("Failed to cancel mesocycle: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if cancelled.Status != training.MesocycleCancelled {
			t.Errorf("Expected cancelled status, got %s", cancelled.Status)
		}

		// Completing a cancelled block is a validation error, not a transition conflict.
		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/mesocycles/%d/complete", mesocycle.ID), nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to complete cancelled mesocycle: %v", doErr)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status 400 completing a cancelled mesocycle, got %d", status)
		}

		status, doErr = client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/mesocycles/%d/cancel", mesocycle.ID), nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to cancel mesocycle twice: %v", doErr)
		}
		if status != http.StatusConflict {
			t.Errorf("Expected status 409 for double cancel, got %d", status)
		}

		status, doErr = client.DoJSON(ctx, http.MethodGet, "/api/mesocycles/current", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get current mesocycle: %v", doErr)
		}
		if status != http.StatusNotFound {
			t.Errorf("Expected status 404 after cancelling, got %d", status)
		}
	})
}
