// Package persistence provides SQLite-based storage of runs and their
// compartment time series.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Run is one row of the runs table.
type Run struct {
	ID         string `db:"id" json:"id"`
	Seed       int64  `db:"seed" json:"seed"`
	Horizon    uint64 `db:"horizon" json:"horizon"`
	StartedAt  int64  `db:"started_at" json:"started_at"`   // Unix seconds
	FinishedAt int64  `db:"finished_at" json:"finished_at"` // 0 while running
	LastTick   uint64 `db:"last_tick" json:"last_tick"`
	Config     string `db:"config_json" json:"-"`

	engine.SimStats
}

// Finished reports whether FinishRun was recorded for the run.
func (r Run) Finished() bool { return r.FinishedAt != 0 }

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		horizon INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		last_tick INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL,
		births INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		contacts INTEGER NOT NULL DEFAULT 0,
		host_infections INTEGER NOT NULL DEFAULT 0,
		vector_infections INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS series (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		h_s INTEGER NOT NULL,
		h_e INTEGER NOT NULL,
		h_i INTEGER NOT NULL,
		h_r INTEGER NOT NULL,
		v_s INTEGER NOT NULL,
		v_i INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun records the start of a run.
func (db *DB) SaveRun(id string, seed int64, horizon uint64, configJSON string, started time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, horizon, started_at, config_json) VALUES (?, ?, ?, ?, ?)",
		id, seed, horizon, started.Unix(), configJSON,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// FinishRun stamps the final tick and cumulative totals of a run.
func (db *DB) FinishRun(id string, lastTick uint64, stats engine.SimStats, finished time.Time) error {
	res, err := db.conn.Exec(`UPDATE runs SET finished_at = ?, last_tick = ?,
		births = ?, deaths = ?, contacts = ?, host_infections = ?, vector_infections = ?
		WHERE id = ?`,
		finished.Unix(), lastTick,
		stats.Births, stats.Deaths, stats.Contacts, stats.HostInfections, stats.VectorInfections,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendSeries writes time-series entries for a run in one transaction.
// Re-writing a tick replaces it.
func (db *DB) AppendSeries(runID string, entries []engine.Counts) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO series
		(run_id, tick, h_s, h_e, h_i, h_r, v_s, v_i)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range entries {
		if _, err := stmt.Exec(runID, c.Tick, c.HumanS, c.HumanE, c.HumanI, c.HumanR, c.MosquitoS, c.MosquitoI); err != nil {
			return fmt.Errorf("insert tick %d: %w", c.Tick, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("series flushed", "run", runID, "entries", len(entries), "last_tick", entries[len(entries)-1].Tick)
	return nil
}

// LoadSeries returns a run's entries with from <= tick < to, in tick order.
func (db *DB) LoadSeries(runID string, from, to uint64) ([]engine.Counts, error) {
	series := []engine.Counts{}
	err := db.conn.Select(&series,
		`SELECT tick, h_s, h_e, h_i, h_r, v_s, v_i FROM series
		WHERE run_id = ? AND tick >= ? AND tick < ? ORDER BY tick`,
		runID, from, to,
	)
	return series, err
}

// GetRun fetches one run by id.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	runs := []Run{}
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	return runs, err
}
