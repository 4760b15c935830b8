package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhellman/mesoapp/internal/e2etest"
	"github.com/jhellman/mesoapp/internal/logging"
	"github.com/jhellman/mesoapp/internal/testhelpers"
	"github.com/jhellman/mesoapp/internal/training"
)

const (
	testTimeout                = 10 * time.Second
	userRegistrationTimeout    = 30 * time.Second
	scenarioTimeout            = 30 * time.Second
	maxConcurrentRegistrations = 10
	maxConcurrentOperations    = 20
	successRateThreshold       = 95.0
	expectedArgsCount          = 2
	percentageMultiplier       = 100
	historyWeeks               = 4 // seeded mesocycle weeks before the load test proper
	historyTimeout             = 5 * time.Minute
	mesocycleWeeks             = 6
	maxRepsVariation           = 3
)

// AuthenticatedUser holds a client with a valid session.
type AuthenticatedUser struct {
	Client *e2etest.Client
	UserID string
}

func TestAuth(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()
	var err error

	if err = client.Register(ctx); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	if err = client.Logout(ctx); err != nil {
		return fmt.Errorf("logout user: %w", err)
	}
	if err = client.Login(ctx); err != nil {
		return fmt.Errorf("login user: %w", err)
	}
	return nil
}

// RegisterAndAuthenticateUser creates a new user and logs them in.
func RegisterAndAuthenticateUser(
	ctx context.Context,
	url, hostname string,
	userIndex int,
	logger *slog.Logger,
) (*AuthenticatedUser, error) {
	// Each user needs their own session.
	client, err := e2etest.NewClient(url, hostname, url)
	if err != nil {
		return nil, fmt.Errorf("creating client for user %d: %w", userIndex, err)
	}

	if err = client.Register(ctx); err != nil {
		return nil, fmt.Errorf("registering user %d: %w", userIndex, err)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "User registered and authenticated",
		slog.Int("user_index", userIndex))

	return &AuthenticatedUser{
		Client: client,
		UserID: fmt.Sprintf("user_%d", userIndex),
	}, nil
}

// SetupUsers registers and authenticates the specified number of users.
func SetupUsers(
	ctx context.Context,
	url, hostname string,
	numUsers int,
	logger *slog.Logger,
) ([]*AuthenticatedUser, error) {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting user registration", slog.Int("num_users", numUsers))

	var (
		users   = make([]*AuthenticatedUser, 0, numUsers)
		usersMu sync.Mutex
		wg      sync.WaitGroup
		errCh   = make(chan error, numUsers)
		failed  = make([]error, 0, numUsers)
	)

	// Limit concurrency to avoid overwhelming the server.
	semaphore := make(chan struct{}, maxConcurrentRegistrations)

	for i := range numUsers {
		wg.Add(1)
		go func(userIndex int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			userCtx, cancel := context.WithTimeout(ctx, userRegistrationTimeout)
			defer cancel()

			user, err := RegisterAndAuthenticateUser(userCtx, url, hostname, userIndex, logger)
			if err != nil {
				errCh <- fmt.Errorf("user %d: %w", userIndex, err)
				return
			}

			usersMu.Lock()
			users = append(users, user)
			usersMu.Unlock()
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		failed = append(failed, err)
	}

	if len(failed) > 0 {
		logger.LogAttrs(ctx, slog.LevelError, "Some user registrations failed",
			slog.Int("failed_count", len(failed)),
			slog.Int("successful_count", len(users)))

		return users, fmt.Errorf("registration failures: %w", failed[0])
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "All users registered successfully",
		slog.Int("total_users", len(users)))

	return users, nil
}

// startMesocycle begins a training block for the user starting today.
func startMesocycle(ctx context.Context, client *e2etest.Client) (training.Mesocycle, error) {
	var resp struct {
		Mesocycle training.Mesocycle `json:"mesocycle"`
	}
	status, err := client.DoJSON(ctx, http.MethodPost, "/api/mesocycles", map[string]any{
		"plan_id":        1,
		"start_date":     time.Now().Format("2006-01-02"),
		"duration_weeks": mesocycleWeeks,
	}, &resp)
	if err != nil {
		return training.Mesocycle{}, fmt.Errorf("start mesocycle: %w", err)
	}
	if status != http.StatusCreated {
		return training.Mesocycle{}, fmt.Errorf("start mesocycle: unexpected status code: %d", status)
	}
	return resp.Mesocycle, nil
}

// currentWorkouts fetches the active mesocycle's workouts for the current week.
func currentWorkouts(ctx context.Context, client *e2etest.Client) ([]training.Workout, error) {
	var resp struct {
		Mesocycle training.Mesocycle `json:"mesocycle"`
		Workouts  []training.Workout `json:"workouts"`
	}
	status, err := client.DoJSON(ctx, http.MethodGet, "/api/mesocycles/current", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("current mesocycle: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("current mesocycle: unexpected status code: %d", status)
	}
	return resp.Workouts, nil
}

// completeWorkout starts the workout, logs every set near its target and
// completes it.
func completeWorkout(ctx context.Context, client *e2etest.Client, workoutID int) error {
	var workout training.Workout
	status, err := client.DoJSON(ctx, http.MethodPost, fmt.Sprintf("/api/workouts/%d/start", workoutID), nil, &workout)
	if err != nil {
		return fmt.Errorf("start workout: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("start workout: unexpected status code: %d", status)
	}

	for _, set := range workout.Sets {
		// Small rep variation to simulate real usage without failing the target.
		reps := set.TargetReps + int(time.Now().UnixNano()%maxRepsVariation)
		status, err = client.DoJSON(ctx, http.MethodPost, fmt.Sprintf("/api/sets/%d/log", set.ID), map[string]any{
			"actual_weight_kg": set.TargetWeightKg,
			"actual_reps":      reps,
		}, nil)
		if err != nil {
			return fmt.Errorf("log set %d: %w", set.ID, err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("log set %d: unexpected status code: %d", set.ID, status)
		}
	}

	if status, err = client.DoJSON(ctx, http.MethodPost,
		fmt.Sprintf("/api/workouts/%d/complete", workoutID), nil, nil); err != nil {
		return fmt.Errorf("complete workout: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("complete workout: unexpected status code: %d", status)
	}

	return nil
}

// GenerateTrainingHistory seeds a few completed weeks so the load test runs
// against mesocycles with real progression state.
func GenerateTrainingHistory(ctx context.Context, user *AuthenticatedUser, logger *slog.Logger) error {
	client := user.Client

	mesocycle, err := startMesocycle(ctx, client)
	if err != nil {
		return err
	}

	for week := range historyWeeks {
		workouts, workoutsErr := currentWorkouts(ctx, client)
		if workoutsErr != nil {
			return workoutsErr
		}

		for _, workout := range workouts {
			if completeErr := completeWorkout(ctx, client, workout.ID); completeErr != nil {
				logger.LogAttrs(ctx, slog.LevelWarn, "Failed to complete workout",
					slog.String("user_id", user.UserID),
					slog.Int("week", week+1),
					slog.Any("error", completeErr))
				continue
			}
		}

		status, advanceErr := client.DoJSON(ctx, http.MethodPost,
			fmt.Sprintf("/api/mesocycles/%d/advance", mesocycle.ID), nil, nil)
		if advanceErr != nil {
			return fmt.Errorf("advance week: %w", advanceErr)
		}
		if status != http.StatusOK {
			return fmt.Errorf("advance week: unexpected status code: %d", status)
		}

		logger.LogAttrs(ctx, slog.LevelDebug, "Seeded training week",
			slog.String("user_id", user.UserID),
			slog.Int("week", week+1))
	}

	return nil
}

// GenerateTrainingHistoryForUsers seeds history for all users concurrently.
func GenerateTrainingHistoryForUsers(ctx context.Context, users []*AuthenticatedUser, logger *slog.Logger) error {
	var (
		wg     sync.WaitGroup
		errCh  = make(chan error, len(users))
		failed = make([]error, 0, len(users))
	)

	semaphore := make(chan struct{}, maxConcurrentRegistrations)

	for _, user := range users {
		wg.Add(1)
		go func(u *AuthenticatedUser) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			historyCtx, cancel := context.WithTimeout(ctx, historyTimeout)
			defer cancel()

			if err := GenerateTrainingHistory(historyCtx, u, logger); err != nil {
				errCh <- fmt.Errorf("user %s: %w", u.UserID, err)
				return
			}

			logger.LogAttrs(historyCtx, slog.LevelDebug, "Generated training history",
				slog.String("user_id", u.UserID))
		}(user)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		failed = append(failed, err)
	}

	if len(failed) > 0 {
		logger.LogAttrs(ctx, slog.LevelError, "Some training history generations failed",
			slog.Int("failed_count", len(failed)),
			slog.Int("successful_count", len(users)-len(failed)))

		// Return first error, but continue with the load test as some users have history.
		return fmt.Errorf("training history generation failures: %w", failed[0])
	}

	return nil
}

// WorkoutScenario is one user's typical session: check the current week, train
// the first pending workout, read the exercise info page.
func WorkoutScenario(ctx context.Context, user *AuthenticatedUser, logger *slog.Logger) error {
	client := user.Client

	workouts, err := currentWorkouts(ctx, client)
	if err != nil {
		return err
	}

	var target *training.Workout
	for i := range workouts {
		if workouts[i].Status == training.WorkoutPending {
			target = &workouts[i]
			break
		}
	}
	if target == nil {
		return errors.New("no pending workout in current week")
	}

	if err = completeWorkout(ctx, client, target.ID); err != nil {
		return err
	}

	// Reading the exercise description is a common operation mid-workout.
	if len(target.Sets) > 0 {
		resp, getErr := client.Get(ctx, fmt.Sprintf("/api/exercises/%d/info", target.Sets[0].ExerciseID))
		if getErr != nil {
			return fmt.Errorf("get exercise info: %w", getErr)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("get exercise info: unexpected status code: %d", resp.StatusCode)
		}
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "Workout scenario completed",
		slog.String("user_id", user.UserID),
		slog.Int("workout_id", target.ID))

	return nil
}

// RunLoadTest performs the actual load testing with authenticated users.
func RunLoadTest(ctx context.Context, users []*AuthenticatedUser, logger *slog.Logger) error {
	userCount := len(users)
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_users", userCount))

	var successCount, failureCount int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)

	for _, user := range users {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := WorkoutScenario(scenarioCtx, user, logger); err != nil {
				atomic.AddInt64(&failureCount, 1)
				// Log individual failures but don't stop the entire test.
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.String("user_id", user.UserID),
					slog.Any("error", err))
				return nil
			}

			atomic.AddInt64(&successCount, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	successRate := float64(successCount) / float64(userCount) * percentageMultiplier

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount),
		slog.Int64("failed", failureCount),
		slog.Float64("success_rate", successRate))

	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}

	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		numUsers = 10
		start    = time.Now()
	)

	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))

	// First make sure basic functionality works at all.
	logger.LogAttrs(ctx, slog.LevelInfo, "Running smoke test first...")
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
		hostname = "localhost"
	}
	client, err := e2etest.NewClient(url, hostname, url)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}

	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}

	if err = TestAuth(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "smoke test failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test passed")

	setupStart := time.Now()
	users, err := SetupUsers(ctx, url, hostname, numUsers, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to setup users", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "User setup completed",
		slog.Duration("setup_duration", time.Since(setupStart)),
		slog.Int("authenticated_users", len(users)))

	historyStart := time.Now()
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting training history generation",
		slog.Int("num_users", len(users)),
		slog.Int("weeks_per_user", historyWeeks))

	if err = GenerateTrainingHistoryForUsers(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "some training history generation failed, continuing with load test",
			slog.Any("error", err))
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Training history generation completed",
		slog.Duration("history_duration", time.Since(historyStart)),
		slog.Int("users_with_history", len(users)))

	loadTestStart := time.Now()
	if err = RunLoadTest(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)),
		slog.Int("users_tested", len(users)))
}
