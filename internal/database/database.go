package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database persists extracted waveform peaks so a restart does not have to
// fetch and decode every track again. It is safe for concurrent use because
// the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	loadPeaksStmt   *sql.Stmt
	savePeaksStmt   *sql.Stmt
	deletePeaksStmt *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures the schema exists. Caller should Close() it when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - adjusted for SQLite
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables is idempotent and safe to call multiple times
func (db *Database) createTables() error {
	waveformsTable := `
	CREATE TABLE IF NOT EXISTS waveforms (
		source TEXT NOT NULL,
		bars INTEGER NOT NULL,
		peaks TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (source, bars)
	);`

	if _, err := db.conn.Exec(waveformsTable); err != nil {
		return err
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run.
func (db *Database) runMigrations() error {
	// Migration 1: track when stored peaks were last served
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('waveforms')
		WHERE name = 'accessed_at'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		if _, err := db.conn.Exec("ALTER TABLE waveforms ADD COLUMN accessed_at DATETIME"); err != nil {
			return err
		}
		if _, err := db.conn.Exec("CREATE INDEX IF NOT EXISTS idx_waveforms_accessed ON waveforms(accessed_at)"); err != nil {
			return err
		}
		db.logger.Info("Added accessed_at column and index to waveforms table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements
func (db *Database) prepareStatements() error {
	var err error

	db.loadPeaksStmt, err = db.conn.Prepare(`
		SELECT peaks FROM waveforms WHERE source = ? AND bars = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare load peaks statement: %w", err)
	}

	db.savePeaksStmt, err = db.conn.Prepare(`
		INSERT INTO waveforms (source, bars, peaks, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, bars) DO UPDATE SET
			peaks=excluded.peaks,
			created_at=excluded.created_at,
			accessed_at=excluded.accessed_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare save peaks statement: %w", err)
	}

	db.deletePeaksStmt, err = db.conn.Prepare(`
		DELETE FROM waveforms WHERE source = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete peaks statement: %w", err)
	}

	return nil
}

// LoadPeaks returns the stored peaks for source at the given resolution.
// found is false when nothing is stored.
func (db *Database) LoadPeaks(ctx context.Context, source string, bars int) ([]float64, bool, error) {
	var encoded string
	err := db.loadPeaksStmt.QueryRowContext(ctx, source, bars).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load peaks: %w", err)
	}

	var peaks []float64
	if err := json.Unmarshal([]byte(encoded), &peaks); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored peaks: %w", err)
	}
	if len(peaks) != bars {
		db.logger.WithFields(logrus.Fields{
			"source":   source,
			"bars":     bars,
			"received": len(peaks),
		}).Warn("Ignoring stored peaks with wrong length")
		return nil, false, nil
	}

	if _, err := db.conn.ExecContext(ctx, "UPDATE waveforms SET accessed_at = ? WHERE source = ? AND bars = ?", time.Now(), source, bars); err != nil {
		db.logger.WithError(err).WithField("source", source).Debug("Failed to touch stored peaks")
	}
	return peaks, true, nil
}

// SavePeaks stores peaks for source, replacing any previous row
func (db *Database) SavePeaks(ctx context.Context, source string, bars int, peaks []float64) error {
	if len(peaks) != bars {
		return fmt.Errorf("expected %d peaks, got %d", bars, len(peaks))
	}
	encoded, err := json.Marshal(peaks)
	if err != nil {
		return fmt.Errorf("failed to encode peaks: %w", err)
	}
	now := time.Now()
	if _, err := db.savePeaksStmt.ExecContext(ctx, source, bars, string(encoded), now, now); err != nil {
		return fmt.Errorf("failed to save peaks: %w", err)
	}
	return nil
}

// DeletePeaks removes every stored resolution for source
func (db *Database) DeletePeaks(ctx context.Context, source string) error {
	result, err := db.deletePeaksStmt.ExecContext(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to delete peaks: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	db.logger.WithField("source", source).WithField("rows_deleted", rowsAffected).Debug("Deleted stored peaks")
	return nil
}

// PruneBefore deletes peaks not served since cutoff and returns how many went
func (db *Database) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM waveforms WHERE COALESCE(accessed_at, created_at) < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune peaks: %w", err)
	}
	return result.RowsAffected()
}

// CountPeaks returns the number of stored waveforms
func (db *Database) CountPeaks(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM waveforms").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping checks the connection is usable
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.loadPeaksStmt,
		db.savePeaksStmt,
		db.deletePeaksStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
