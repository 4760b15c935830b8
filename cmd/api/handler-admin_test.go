package main

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jhellman/mesoapp/internal/e2etest"
	"github.com/jhellman/mesoapp/internal/testhelpers"
	"github.com/jhellman/mesoapp/internal/training"
)

func Test_application_admin(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	client := server.Client()

	if err = client.Register(ctx); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	t.Run("Admin endpoints require admin role", func(t *testing.T) {
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/admin/feature-flags", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get feature flags: %v", doErr)
		}
		if status != http.StatusUnauthorized {
			t.Errorf("Expected status 401 for non-admin request, got %d", status)
		}
	})

	// Promote the only registered user to admin.
	if _, err = server.DB().Exec("UPDATE users SET is_admin = TRUE WHERE TRUE"); err != nil {
		t.Fatalf("Failed to promote user to admin: %v", err)
	}

	t.Run("Feature flags are listed", func(t *testing.T) {
		var flags []training.FeatureFlag
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/admin/feature-flags", nil, &flags)
		if doErr != nil {
			t.Fatalf("Failed to get feature flags: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		found := false
		for _, flag := range flags {
			if flag.Name == training.FlagMaintenanceMode {
				found = true
				if flag.Enabled {
					t.Error("Expected maintenance mode to start disabled")
				}
			}
		}
		if !found {
			t.Error("Expected maintenance_mode flag in the list")
		}
	})

	var generated training.Exercise

	t.Run("Generate exercise without language model falls back to a skeleton", func(t *testing.T) {
		status, doErr := client.DoJSON(ctx, http.MethodPost, "/api/admin/exercises/generate",
			generateExerciseRequest{Name: "Goblet Squat"}, &generated)
		if doErr != nil {
			t.Fatalf("Failed to generate exercise: %v", doErr)
		}
		if status != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", status)
		}
		if generated.ID == 0 {
			t.Error("Expected generated exercise to be persisted with an ID")
		}
		if generated.Name != "Goblet Squat" {
			t.Errorf("Expected name Goblet Squat, got %s", generated.Name)
		}

		status, doErr = client.DoJSON(ctx, http.MethodPost, "/api/admin/exercises/generate",
			generateExerciseRequest{Name: ""}, nil)
		if doErr != nil {
			t.Fatalf("Failed to generate empty exercise: %v", doErr)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status 400 for empty name, got %d", status)
		}
	})

	t.Run("Update exercise fixes a generated skeleton", func(t *testing.T) {
		var updated training.Exercise
		urlPath := fmt.Sprintf("/api/admin/exercises/%d", generated.ID)
		status, doErr := client.DoJSON(ctx, http.MethodPut, urlPath,
			updateExerciseRequest{
				Name:                "Goblet Squat",
				Category:            "lower",
				DescriptionMarkdown: "## Setup\n\nHold a dumbbell at your chest.",
				PrimaryMuscleGroups: []string{"Quadriceps", "Glutes"},
			}, &updated)
		if doErr != nil {
			t.Fatalf("Failed to update exercise: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if updated.Category != training.CategoryLower {
			t.Errorf("Expected category lower, got %s", updated.Category)
		}
		if len(updated.PrimaryMuscleGroups) != 2 {
			t.Errorf("Expected 2 primary muscle groups, got %d", len(updated.PrimaryMuscleGroups))
		}

		status, doErr = client.DoJSON(ctx, http.MethodPut, urlPath,
			updateExerciseRequest{Name: "Goblet Squat", Category: "cardio"}, nil)
		if doErr != nil {
			t.Fatalf("Failed to send invalid category update: %v", doErr)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status 400 for invalid category, got %d", status)
		}
	})

	t.Run("Add plan day exercise with progression baseline", func(t *testing.T) {
		var slot training.PlanDayExercise
		status, doErr := client.DoJSON(ctx, http.MethodPost, "/api/admin/plan-days/1/exercises",
			addPlanExerciseRequest{
				ExerciseID:        generated.ID,
				BaseWeightKg:      20,
				BaseReps:          8,
				BaseSets:          3,
				WeightIncrementKg: 2.5,
				MinReps:           8,
				MaxReps:           12,
			}, &slot)
		if doErr != nil {
			t.Fatalf("Failed to add plan exercise: %v", doErr)
		}
		if status != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", status)
		}
		if slot.ExerciseID != generated.ID {
			t.Errorf("Expected exercise ID %d, got %d", generated.ID, slot.ExerciseID)
		}

		// A baseline whose rep range is inverted never reaches the database.
		status, doErr = client.DoJSON(ctx, http.MethodPost, "/api/admin/plan-days/1/exercises",
			addPlanExerciseRequest{
				ExerciseID:        generated.ID,
				BaseWeightKg:      20,
				BaseReps:          8,
				BaseSets:          3,
				WeightIncrementKg: 2.5,
				MinReps:           12,
				MaxReps:           8,
			}, nil)
		if doErr != nil {
			t.Fatalf("Failed to post invalid baseline: %v", doErr)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status 400 for inverted rep range, got %d", status)
		}
	})

	t.Run("Maintenance mode gates the API", func(t *testing.T) {
		var flag training.FeatureFlag
		status, doErr := client.DoJSON(ctx, http.MethodPost,
			"/api/admin/feature-flags/maintenance_mode/toggle", nil, &flag)
		if doErr != nil {
			t.Fatalf("Failed to toggle maintenance mode: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if !flag.Enabled {
			t.Error("Expected maintenance mode to be enabled after toggle")
		}

		status, doErr = client.DoJSON(ctx, http.MethodGet, "/api/plans", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get plans: %v", doErr)
		}
		if status != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503 during maintenance, got %d", status)
		}

		// The toggle endpoint is behind the same gate, so recovery goes
		// through the database like an operator would.
		if _, err = server.DB().Exec(
			"UPDATE feature_flags SET enabled = FALSE WHERE name = ?", training.FlagMaintenanceMode,
		); err != nil {
			t.Fatalf("Failed to disable maintenance mode: %v", err)
		}

		status, doErr = client.DoJSON(ctx, http.MethodGet, "/api/plans", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get plans: %v", doErr)
		}
		if status != http.StatusOK {
			t.Errorf("Expected status 200 after maintenance, got %d", status)
		}
	})
}

func Test_application_exerciseInfo(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	client := server.Client()

	if err = client.Register(ctx); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	doc, err := client.GetDoc(ctx, "/api/exercises/1/info")
	if err != nil {
		t.Fatalf("Failed to get exercise info: %v", err)
	}

	heading := doc.Find("section.exercise-info h1").First().Text()
	if !strings.Contains(heading, "Barbell Back Squat") {
		t.Errorf("Expected exercise name in heading, got: %s", heading)
	}
	description := doc.Find("section.exercise-info h2").First().Text()
	if !strings.Contains(description, "Barbell Back Squat") {
		t.Errorf("Expected rendered markdown heading, got: %s", description)
	}
}

func Test_application_auth(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	client := server.Client()

	if err = client.Register(ctx); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	t.Run("Registered user can access the API", func(t *testing.T) {
		var plans []training.Plan
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/plans", nil, &plans)
		if doErr != nil {
			t.Fatalf("Failed to get plans: %v", doErr)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", status)
		}
		if len(plans) == 0 {
			t.Error("Expected at least one seeded plan")
		}
	})

	t.Run("Logout ends the session", func(t *testing.T) {
		if logoutErr := client.Logout(ctx); logoutErr != nil {
			t.Fatalf("Failed to logout: %v", logoutErr)
		}
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/plans", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get plans: %v", doErr)
		}
		if status != http.StatusUnauthorized {
			t.Errorf("Expected status 401 after logout, got %d", status)
		}
	})

	t.Run("Login restores access", func(t *testing.T) {
		if loginErr := client.Login(ctx); loginErr != nil {
			t.Fatalf("Failed to login: %v", loginErr)
		}
		status, doErr := client.DoJSON(ctx, http.MethodGet, "/api/plans", nil, nil)
		if doErr != nil {
			t.Fatalf("Failed to get plans: %v", doErr)
		}
		if status != http.StatusOK {
			t.Errorf("Expected status 200 after login, got %d", status)
		}
	})

	t.Run("Export returns a database file", func(t *testing.T) {
		resp, getErr := client.Get(ctx, "/api/me/export")
		if getErr != nil {
			t.Fatalf("Failed to export user data: %v", getErr)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Type"); got != "application/x-sqlite3" {
			t.Errorf("Expected sqlite content type, got %s", got)
		}
		if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "attachment") {
			t.Errorf("Expected attachment disposition, got %s", got)
		}
	})
}
