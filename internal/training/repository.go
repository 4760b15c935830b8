package training

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jhellman/mesoapp/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"
const dateFormat = time.DateOnly

// baseRepository carries the shared dependencies of the SQLite repositories.
type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newBaseRepository(db *sqlite.Database, logger *slog.Logger) baseRepository {
	return baseRepository{
		db:     db,
		logger: logger,
	}
}

// repository groups the per-aggregate repositories behind one handle.
type repository struct {
	exercises  *sqliteExerciseRepository
	plans      *sqlitePlanRepository
	mesocycles *sqliteMesocycleRepository
	workouts   *sqliteWorkoutRepository
	flags      *sqliteFeatureFlagRepository
}

func newRepository(db *sqlite.Database, logger *slog.Logger) *repository {
	base := newBaseRepository(db, logger)
	return &repository{
		exercises:  &sqliteExerciseRepository{baseRepository: base},
		plans:      &sqlitePlanRepository{baseRepository: base},
		mesocycles: &sqliteMesocycleRepository{baseRepository: base},
		workouts:   &sqliteWorkoutRepository{baseRepository: base},
		flags:      &sqliteFeatureFlagRepository{baseRepository: base},
	}
}

// isUniqueConstraintErr reports whether err is a SQLite unique constraint
// violation, as raised by the partial unique index guarding one active
// mesocycle per user.
func isUniqueConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func formatDate(date time.Time) string {
	return date.Format(dateFormat)
}

func formatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil //nolint:nilnil // absent timestamp is not an error
	}
	t, err := time.Parse(timestampFormat, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
