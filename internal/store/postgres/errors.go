package postgres

import "errors"

var (
	ErrParseConfig     = errors.New("postgres: failed to parse database configuration")
	ErrOpenConnection  = errors.New("postgres: failed to open database connection")
	ErrSetDialect      = errors.New("postgres: failed to set migration dialect")
	ErrApplyMigrations = errors.New("postgres: failed to apply migrations")

	// ErrUnsafeIdentifier indicates a table or column name that failed
	// identifier validation for a dynamically built condition query.
	ErrUnsafeIdentifier = errors.New("postgres: unsafe identifier")
)
