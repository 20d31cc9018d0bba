package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"IPOTracker/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists cycle history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a cycle is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			duration_ms INTEGER,
			listings    INTEGER,
			scored      INTEGER,
			skipped     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(started_at)`,

		`CREATE TABLE IF NOT EXISTS symbol_features (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id     TEXT NOT NULL REFERENCES cycles(id),
			started_at   INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			company      TEXT,
			listing_date TEXT,
			feature      TEXT NOT NULL,
			granularity  TEXT NOT NULL,
			lag          INTEGER NOT NULL,
			value        REAL,
			color        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_features_symbol ON symbol_features(symbol, feature, started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordCycle writes the cycle row and one row per symbol and feature in a single transaction.
// Missing values are stored as NULL.
func (r *SQLiteRecorder) RecordCycle(snap *CycleSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := snap.StartedAt.Unix()
	if _, err := tx.Exec(`INSERT INTO cycles
		(id, started_at, duration_ms, listings, scored, skipped)
		VALUES (?,?,?,?,?,?)`,
		snap.ID, ts, snap.Duration.Milliseconds(), snap.Listings, snap.Table.Len(), snap.Skipped,
	); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO symbol_features
		(cycle_id, started_at, symbol, company, listing_date, feature, granularity, lag, value, color)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare features: %w", err)
	}
	defer stmt.Close()

	keys := model.FeatureKeys()
	for _, rec := range snap.Table.Records {
		var listed sql.NullString
		if !rec.Listing.Date.IsZero() {
			listed = sql.NullString{String: rec.Listing.Date.Format(model.DateLayout), Valid: true}
		}
		for i, k := range keys {
			v := rec.Features[i]
			value := sql.NullFloat64{Float64: v.Val, Valid: v.Defined()}
			if _, err := stmt.Exec(snap.ID, ts, rec.Listing.Symbol, rec.Listing.Company, listed,
				k.ID(), k.Granularity.Slug(), k.Lag, value, rec.Colors[i]); err != nil {
				return fmt.Errorf("insert %s %s: %w", rec.Listing.Symbol, k.ID(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("cycle recorded", zap.String("cycle", snap.ID), zap.Int("symbols", snap.Table.Len()))
	return nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
