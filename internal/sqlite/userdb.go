package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
)

const usersTableName = "users"

// ExportUserData writes all rows belonging to userID into a standalone SQLite
// database file under basePath and returns the file path. Tables related to the
// user are discovered by walking foreign keys, so the export follows schema
// changes without maintenance.
func (db *Database) ExportUserData(ctx context.Context, userID int, basePath string) (string, error) {
	path, err := db.createUserDB(ctx, userID, basePath)
	if err != nil {
		return "", fmt.Errorf("create user database: %w", err)
	}
	return path, nil
}

// createUserDB exports the data for a specific user into a separate SQLite database file.
//
// This can be used for providing the user with all their data to comply with GDPR.
func (db *Database) createUserDB(ctx context.Context, userID int, basePath string) (_ string, err error) {
	exportPath := filepath.Join(basePath, fmt.Sprintf("user-db-%d.sqlite3", userID))
	exportDsn := fmt.Sprintf("file:%s?mode=rwc", exportPath)

	conn, err := db.setupExportConnection(ctx)
	if err != nil {
		return "", fmt.Errorf("setup export connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close db connection: %w", closeErr)
		}
	}()

	return db.executeExport(ctx, conn, exportDsn, userID, exportPath)
}

// setupExportConnection prepares a database connection for export operations.
func (db *Database) setupExportConnection(ctx context.Context) (*sql.Conn, error) {
	conn, err := db.ReadOnly.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db connection: %w", err)
	}

	if pragmaErr := db.configurePragmas(ctx, conn, false); pragmaErr != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("configure pragmas: %w (close error: %w)", pragmaErr, closeErr)
		}
		return nil, fmt.Errorf("configure pragmas: %w", pragmaErr)
	}

	return conn, nil
}

// configurePragmas sets up the necessary PRAGMA settings for export operations.
func (db *Database) configurePragmas(ctx context.Context, conn *sql.Conn, readOnly bool) error {
	var queryOnlyMode, foreignKeysMode string
	var modeErr, fkErr string

	if readOnly {
		queryOnlyMode = "TRUE"
		foreignKeysMode = "ON"
		modeErr = "enable read only mode"
		fkErr = "enable foreign keys"
	} else {
		queryOnlyMode = "FALSE"
		foreignKeysMode = "OFF"
		modeErr = "disable read only mode"
		fkErr = "disable foreign keys"
	}

	if _, err := conn.ExecContext(ctx, `PRAGMA QUERY_ONLY = `+queryOnlyMode); err != nil {
		return fmt.Errorf("%s: %w", modeErr, err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA FOREIGN_KEYS = `+foreignKeysMode); err != nil {
		return fmt.Errorf("%s: %w", fkErr, err)
	}
	return nil
}

// executeExport performs the main export operation within a transaction.
func (db *Database) executeExport(
	ctx context.Context, conn *sql.Conn, exportDsn string, userID int, exportPath string,
) (string, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback() // Ignore rollback errors to preserve original error
		}
		// Restore original pragmas
		_ = db.configurePragmas(ctx, conn, true) // Ignore pragma restoration errors
	}()

	_, err = tx.ExecContext(ctx, `ATTACH DATABASE ? AS export`, exportDsn)
	if err != nil {
		return "", fmt.Errorf("create export database: %w", err)
	}

	err = db.validateUsersTable(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("validate users table: %w", err)
	}

	userRelatedTables, err := db.findUserRelatedTables(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("find user related tables: %w", err)
	}

	err = db.copyTableSchemas(ctx, tx, userRelatedTables)
	if err != nil {
		return "", fmt.Errorf("copy table schemas: %w", err)
	}

	err = db.copyTableData(ctx, tx, userRelatedTables, userID)
	if err != nil {
		return "", fmt.Errorf("copy table data: %w", err)
	}

	_, err = tx.ExecContext(ctx, `PRAGMA export.foreign_keys = ON`)
	if err != nil {
		return "", fmt.Errorf("re-enable foreign keys in export database: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return "", fmt.Errorf("commit export database: %w", err)
	}
	committed = true

	return exportPath, nil
}

// validateUsersTable checks if the users table exists.
func (db *Database) validateUsersTable(ctx context.Context, tx *sql.Tx) error {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_schema WHERE type = 'table' AND name = ?`
	if err := tx.QueryRowContext(ctx, query, usersTableName).Scan(&count); err != nil {
		return fmt.Errorf("check users table existence: %w", err)
	}
	if count == 0 {
		return errors.New("users table does not exist")
	}
	return nil
}

// copyTableSchemas copies the schemas for all exported tables.
func (db *Database) copyTableSchemas(ctx context.Context, tx *sql.Tx, tables []userTable) error {
	for _, table := range tables {
		if err := db.copyTableSchema(ctx, tx, table.name); err != nil {
			return fmt.Errorf("copy schema for table %s: %w", table.name, err)
		}
	}
	return nil
}

// copyTableData copies data for all exported tables. Shared reference tables
// come first so that the user rows never point at missing parents.
func (db *Database) copyTableData(ctx context.Context, tx *sql.Tx, tables []userTable, userID int) error {
	for _, table := range tables {
		if table.filter == "" {
			if err := db.copyTable(ctx, tx, table, userID); err != nil {
				return fmt.Errorf("copy data for table %s: %w", table.name, err)
			}
		}
	}

	for _, table := range tables {
		if table.filter != "" {
			if err := db.copyTable(ctx, tx, table, userID); err != nil {
				return fmt.Errorf("copy data for table %s: %w", table.name, err)
			}
		}
	}

	return nil
}

// userTable is one table included in the export. filter is a WHERE clause
// with a single userID placeholder selecting the user's rows; tables without
// a filter are shared reference data copied wholesale.
type userTable struct {
	name   string
	filter string
}

// foreignKey is one edge of the schema's foreign key graph.
type foreignKey struct {
	fromColumn string
	toColumn   string
	parent     string
}

// findUserRelatedTables discovers which tables to export and how to filter
// them. A table belongs to the user when a chain of foreign keys leads from it
// to the users table; every table referenced by such a table is exported in
// full so that foreign key constraints hold in the export.
func (db *Database) findUserRelatedTables(ctx context.Context, tx *sql.Tx) ([]userTable, error) {
	tables, err := db.getAllTableNames(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("get all table names: %w", err)
	}

	links, err := db.discoverUserLinks(ctx, tx, tables)
	if err != nil {
		return nil, fmt.Errorf("discover user links: %w", err)
	}

	shared, err := db.findReferencedTables(ctx, tx, links)
	if err != nil {
		return nil, fmt.Errorf("find referenced tables: %w", err)
	}

	result := make([]userTable, 0, len(links)+len(shared))
	for name := range shared {
		result = append(result, userTable{name: name, filter: ""})
	}
	for name := range links {
		result = append(result, userTable{name: name, filter: userFilter(links, name)})
	}
	return result, nil
}

// userFilter builds the WHERE clause selecting the user's rows of a table by
// nesting subqueries along the foreign key chain towards the users table.
func userFilter(links map[string]foreignKey, name string) string {
	if name == usersTableName {
		return "WHERE id = ?"
	}
	link := links[name]
	return fmt.Sprintf("WHERE %s IN (SELECT %s FROM main.%s %s)",
		link.fromColumn, link.toColumn, link.parent, userFilter(links, link.parent))
}

// getAllTableNames retrieves all table names except 'users'.
func (db *Database) getAllTableNames(ctx context.Context, tx *sql.Tx) (_ []string, err error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM sqlite_schema WHERE type = 'table' AND name != ?`, usersTableName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var tables []string
	for rows.Next() {
		var tableName string
		if err = rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over tables: %w", err)
	}

	return tables, nil
}

// discoverUserLinks finds every table with a foreign key chain to the users
// table and records the first hop of that chain. The fixed point iteration
// handles chains of any depth regardless of table order.
func (db *Database) discoverUserLinks(
	ctx context.Context, tx *sql.Tx, tables []string,
) (map[string]foreignKey, error) {
	links := map[string]foreignKey{usersTableName: {}}

	changed := true
	for changed {
		changed = false

		for _, tableName := range tables {
			if _, alreadyLinked := links[tableName]; alreadyLinked {
				continue
			}

			fks, err := db.listForeignKeys(ctx, tx, tableName)
			if err != nil {
				return nil, fmt.Errorf("list foreign keys for table %s: %w", tableName, err)
			}

			for _, fk := range fks {
				if _, parentLinked := links[fk.parent]; parentLinked {
					links[tableName] = fk
					changed = true
					break
				}
			}
		}
	}

	return links, nil
}

// findReferencedTables collects the closure of tables referenced by the
// user-linked tables that are not themselves linked to the user.
func (db *Database) findReferencedTables(
	ctx context.Context, tx *sql.Tx, links map[string]foreignKey,
) (map[string]bool, error) {
	shared := make(map[string]bool)

	queue := make([]string, 0, len(links))
	for name := range links {
		queue = append(queue, name)
	}

	for len(queue) > 0 {
		tableName := queue[0]
		queue = queue[1:]

		fks, err := db.listForeignKeys(ctx, tx, tableName)
		if err != nil {
			return nil, fmt.Errorf("list foreign keys for table %s: %w", tableName, err)
		}

		for _, fk := range fks {
			if _, linked := links[fk.parent]; linked {
				continue
			}
			if shared[fk.parent] {
				continue
			}
			shared[fk.parent] = true
			queue = append(queue, fk.parent)
		}
	}

	return shared, nil
}

// listForeignKeys returns the foreign keys declared on a table.
func (db *Database) listForeignKeys(ctx context.Context, tx *sql.Tx, tableName string) (_ []foreignKey, err error) {
	fkRows, err := tx.QueryContext(ctx, `SELECT "table", "from", "to" FROM pragma_foreign_key_list(?)`, tableName)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer func() {
		if closeErr := fkRows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close foreign key rows: %w", closeErr))
		}
	}()

	var fks []foreignKey
	for fkRows.Next() {
		var fk foreignKey
		if err = fkRows.Scan(&fk.parent, &fk.fromColumn, &fk.toColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err = fkRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

// copyTableSchema copies the schema for a table from the main database to the export database.
func (db *Database) copyTableSchema(ctx context.Context, tx *sql.Tx, tableName string) error {
	// Get the CREATE TABLE statement
	var createSQL string
	schemaQuery := `SELECT sql FROM sqlite_schema WHERE type = 'table' AND name = ?`
	err := tx.QueryRowContext(ctx, schemaQuery, tableName).Scan(&createSQL)
	if err != nil {
		return fmt.Errorf("get schema for table %s: %w", tableName, err)
	}

	// Replace the table name with export.tableName to create it in the export database
	exportSQL := fmt.Sprintf("CREATE TABLE export.%s%s", tableName, createSQL[len("CREATE TABLE "+tableName):])
	_, err = tx.ExecContext(ctx, exportSQL)
	if err != nil {
		return fmt.Errorf("create table schema in export db: %w", err)
	}

	return nil
}

// copyTable copies one table's rows into the export database.
func (db *Database) copyTable(ctx context.Context, tx *sql.Tx, table userTable, userID int) error {
	query := "INSERT INTO export." + table.name + " SELECT * FROM main." + table.name //nolint:gosec // table names come from sqlite_schema
	var args []any
	if table.filter != "" {
		query += " " + table.filter
		args = append(args, userID)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}

	return nil
}
