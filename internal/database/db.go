package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB represents the record-store connection with pooling
type DB struct {
	*sql.DB
	driver string
	pool   *ConnectionPool
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// Open connects the record store using the configured driver. SQLite is the
// embedded default; Postgres is for shared deployments.
func Open(driver, dataDir, dsn string) (*DB, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgres(dsn)
	case DriverSQLite, "":
		return NewSQLite(dataDir)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLite opens (or creates) the embedded store under dataDir.
func NewSQLite(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "readiness.db")

	// Configure connection string for better performance
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open(DriverSQLite, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return setup(db, DriverSQLite)
}

// NewPostgres connects to a shared Postgres instance.
func NewPostgres(dsn string) (*DB, error) {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return setup(db, DriverPostgres)
}

func setup(db *sql.DB, driver string) (*DB, error) {
	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pooling for better performance
	pool := NewConnectionPool(db, 25, 5, 5*time.Minute) // 25 max open, 5 idle, 5min lifetime

	database := &DB{
		DB:     db,
		driver: driver,
		pool:   pool,
	}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Record store initialized",
		"driver", driver,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// placeholderFormat selects the bind-variable style for built queries.
func (db *DB) placeholderFormat() squirrel.PlaceholderFormat {
	if db.driver == DriverPostgres {
		return squirrel.Dollar
	}
	return squirrel.Question
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	// TIMESTAMPTZ keeps decision times comparable across writer time zones;
	// the SQLite driver maps DATETIME to time.Time on scan.
	timestamp := "DATETIME"
	if db.driver == DriverPostgres {
		timestamp = "TIMESTAMPTZ"
	}

	queries := []string{
		// Submission-time readiness snapshots
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			bid_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			recommendation TEXT NOT NULL,
			config_version TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at %s NOT NULL
		)`, timestamp),

		// One row per tracked bid: outcome fields stay empty until the
		// decision is reported
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS outcome_records (
			id TEXT PRIMARY KEY,
			bid_id TEXT NOT NULL,
			snapshot_id TEXT,
			outcome TEXT NOT NULL DEFAULT '',
			loss_reasons TEXT,
			risks_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			submitted_at %s NOT NULL,
			decided_at %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL,
			FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
		)`, timestamp, timestamp, timestamp, timestamp),

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_snapshots_bid_id ON snapshots(bid_id)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_score ON snapshots(score)`,
		`CREATE INDEX IF NOT EXISTS idx_outcome_records_bid_id ON outcome_records(bid_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outcome_records_outcome ON outcome_records(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_outcome_records_submitted ON outcome_records(submitted_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
