package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jhellman/mesoapp/internal/envstruct"
	"github.com/jhellman/mesoapp/internal/errors"
	"github.com/jhellman/mesoapp/internal/logging"
	"github.com/jhellman/mesoapp/internal/passkey"
	"github.com/jhellman/mesoapp/internal/pprofserver"
	"github.com/jhellman/mesoapp/internal/progression"
	"github.com/jhellman/mesoapp/internal/sqlite"
	"github.com/jhellman/mesoapp/internal/training"
)

type application struct {
	logger          *slog.Logger
	webAuthnHandler *passkey.WebAuthnHandler
	sessionManager  *scs.SessionManager
	trainingService *training.Service
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"MESOAPP_ADDR" envDefault:"localhost:8080"`
	// FQDN is the fully qualified domain name of the server used for WebAuthn Relying Party configuration.
	FQDN string `env:"MESOAPP_FQDN" envDefault:"localhost"`
	// FlyAppName is the name of the Fly application. It's used to override the FQDN.
	FlyAppName string `env:"FLY_APP_NAME" envDefault:""`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"MESOAPP_SQLITE_URL" envDefault:"./mesoapp.sqlite3"`
	// PProfAddr is the optional address to listen on for the pprof server.
	PProfAddr string `env:"MESOAPP_PPROF_ADDR" envDefault:""`
	// OpenAIAPIKey enables AI-assisted exercise generation when set.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	// DeloadEveryWeeks marks every Nth week of a mesocycle as a deload week.
	DeloadEveryWeeks int `env:"MESOAPP_DELOAD_EVERY_WEEKS" envDefault:"4"`
	// SchedulerEnabled toggles the background loop that advances mesocycles across week boundaries.
	SchedulerEnabled bool `env:"MESOAPP_SCHEDULER_ENABLED" envDefault:"true"`
	// SchedulerIntervalMinutes is how often the scheduler checks for due mesocycles.
	SchedulerIntervalMinutes int `env:"MESOAPP_SCHEDULER_INTERVAL_MINUTES" envDefault:"60"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if cfg.PProfAddr != "" {
		pprofserver.Launch(ctx, cfg.PProfAddr, logger)
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}

	sessionManager := initializeSessionManager(db)

	fqdn := cfg.FQDN
	if cfg.FlyAppName != "" {
		fqdn = cfg.FlyAppName + ".fly.dev"
	}
	var webAuthnHandler *passkey.WebAuthnHandler
	if webAuthnHandler, err = passkey.New(cfg.Addr, fqdn, logger, sessionManager, db); err != nil {
		return errors.Wrap(err, "new webauthn handler")
	}

	deload := progression.DeloadSchedule{EveryWeeks: cfg.DeloadEveryWeeks}
	var trainingService *training.Service
	if cfg.OpenAIAPIKey != "" {
		trainingService = training.NewService(db, logger, deload, training.NewExerciseGenerator(cfg.OpenAIAPIKey))
	} else {
		trainingService = training.NewService(db, logger, deload, nil)
	}

	app := application{
		logger:          logger,
		webAuthnHandler: webAuthnHandler,
		sessionManager:  sessionManager,
		trainingService: trainingService,
	}

	mux, err := app.routes()
	if err != nil {
		return errors.Wrap(err, "routes")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.configureAndStartServer(gctx, cfg.Addr, mux); err != nil {
			return errors.Wrap(err, "start server")
		}
		return nil
	})
	if cfg.SchedulerEnabled {
		g.Go(func() error {
			app.runWeekScheduler(gctx, time.Duration(cfg.SchedulerIntervalMinutes)*time.Minute)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return errors.Wrap(err, "run application")
	}
	return nil
}

// runWeekScheduler periodically advances mesocycles whose current week has
// elapsed. Failures are logged inside the service; the loop only stops with
// the context.
func (app *application) runWeekScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := app.trainingService.AdvanceDueMesocycles(ctx, time.Now().UTC()); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelError, "week scheduler pass failed", errors.SlogError(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func initializeSessionManager(dbs *sqlite.Database) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = 12 * time.Hour                                                //nolint:mnd // half a day
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
