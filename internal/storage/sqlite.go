// Package storage provides SQLite-based persistence for simulation runs and
// desync diagnostics. Nothing here is authoritative game state.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// RunRecord is the summary of one simulated run.
type RunRecord struct {
	ID           int64
	GameID       string
	Seed         uint64
	Ticks        int
	LatencyMs    int
	JitterMs     int
	Loss         float64
	Reliable     bool
	Bots         int
	Desyncs      int
	Mismatches   int
	MaxLead      int
	MaxError     float64
	MeanError    float64
	AveragePing  int // ticks
	RequestsSent int
	RequestsLost int
	Rewinds      int
	CreatedAt    time.Time
}

// DesyncRecord is one checksum mismatch seen by a client. RunID is zero
// for desyncs seen outside a stored run, such as by a bot.
type DesyncRecord struct {
	ID        int64
	RunID     int64
	GameID    string
	Source    string // "sim", "bot"
	TickID    uint32
	Expected  uint32
	Actual    uint32
	Diff      string
	CreatedAt time.Time
}

// RunStats aggregates stored runs of one game.
type RunStats struct {
	GameID       string
	Runs         int
	Desyncs      int
	WorstError   float64
	AverageError float64
	LastRun      time.Time
}

// NewRunRecord summarizes a report.
func NewRunRecord(gameID string, r *sim.Report) RunRecord {
	return RunRecord{
		GameID:       gameID,
		Seed:         r.Scenario.Seed,
		Ticks:        int(r.Ticks),
		LatencyMs:    int(r.Scenario.Latency / time.Millisecond),
		JitterMs:     int(r.Scenario.Jitter / time.Millisecond),
		Loss:         r.Scenario.Loss,
		Reliable:     r.Scenario.Reliable,
		Bots:         r.Scenario.Bots,
		Desyncs:      r.Desyncs,
		Mismatches:   r.Mismatches,
		MaxLead:      r.MaxLead,
		MaxError:     r.MaxError,
		MeanError:    r.MeanError,
		AveragePing:  r.AveragePing,
		RequestsSent: r.RequestsSent,
		RequestsLost: r.RequestsLost,
		Rewinds:      r.Rewinds,
	}
}

// NewDesyncRecord converts an engine desync.
func NewDesyncRecord(gameID, source string, d lockstep.Desync) DesyncRecord {
	return DesyncRecord{
		GameID:   gameID,
		Source:   source,
		TickID:   d.TickID,
		Expected: d.Expected,
		Actual:   d.Actual,
		Diff:     d.Diff,
	}
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sim_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			jitter_ms INTEGER NOT NULL DEFAULT 0,
			loss REAL NOT NULL DEFAULT 0,
			reliable INTEGER NOT NULL DEFAULT 0,
			bots INTEGER NOT NULL DEFAULT 0,
			desyncs INTEGER NOT NULL DEFAULT 0,
			mismatches INTEGER NOT NULL DEFAULT 0,
			max_lead INTEGER NOT NULL DEFAULT 0,
			max_error REAL NOT NULL DEFAULT 0,
			mean_error REAL NOT NULL DEFAULT 0,
			average_ping INTEGER NOT NULL DEFAULT 0,
			requests_sent INTEGER NOT NULL DEFAULT 0,
			requests_lost INTEGER NOT NULL DEFAULT 0,
			rewinds INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sim_runs_game_id ON sim_runs(game_id);

		CREATE TABLE IF NOT EXISTS desyncs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER REFERENCES sim_runs(id) ON DELETE CASCADE,
			game_id TEXT NOT NULL,
			source TEXT NOT NULL,
			tick_id INTEGER NOT NULL,
			expected INTEGER NOT NULL,
			actual INTEGER NOT NULL,
			diff TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_desyncs_run_id ON desyncs(run_id);
		CREATE INDEX IF NOT EXISTS idx_desyncs_game_id ON desyncs(game_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun records a run summary.
// Returns the ID of the inserted record.
func (s *Store) SaveRun(run RunRecord) (int64, error) {
	return insertRun(s.db, run)
}

// SaveReport stores a run and every desync event it recorded in one
// transaction.
func (s *Store) SaveReport(gameID string, r *sim.Report) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	id, err := insertRun(tx, NewRunRecord(gameID, r))
	if err != nil {
		return 0, err
	}
	for _, d := range r.DesyncEvents {
		rec := NewDesyncRecord(gameID, "sim", d)
		rec.RunID = id
		if _, err := insertDesync(tx, rec); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: cannot commit run: %w", err)
	}
	return id, nil
}

// SaveDesync records a desync.
// Returns the ID of the inserted record.
func (s *Store) SaveDesync(d DesyncRecord) (int64, error) {
	return insertDesync(s.db, d)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRun(db execer, run RunRecord) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO sim_runs
		 (game_id, seed, ticks, latency_ms, jitter_ms, loss, reliable, bots, desyncs, mismatches,
		  max_lead, max_error, mean_error, average_ping, requests_sent, requests_lost, rewinds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.GameID,
		int64(run.Seed), //nolint:gosec // stored bit for bit
		run.Ticks,
		run.LatencyMs,
		run.JitterMs,
		run.Loss,
		run.Reliable,
		run.Bots,
		run.Desyncs,
		run.Mismatches,
		run.MaxLead,
		run.MaxError,
		run.MeanError,
		run.AveragePing,
		run.RequestsSent,
		run.RequestsLost,
		run.Rewinds,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return id, nil
}

func insertDesync(db execer, d DesyncRecord) (int64, error) {
	var runID sql.NullInt64
	if d.RunID != 0 {
		runID = sql.NullInt64{Int64: d.RunID, Valid: true}
	}
	result, err := db.Exec(
		`INSERT INTO desyncs (run_id, game_id, source, tick_id, expected, actual, diff)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, d.GameID, d.Source, d.TickID, d.Expected, d.Actual, d.Diff,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save desync: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return id, nil
}

// RecentRuns retrieves the most recent runs, newest first. An empty gameID
// matches every game.
func (s *Store) RecentRuns(gameID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		runColumns+`
		 WHERE ? = '' OR game_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		gameID, gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return runs, nil
}

// RecentDesyncs retrieves the most recent desyncs, newest first.
func (s *Store) RecentDesyncs(limit int) ([]DesyncRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryDesyncs(
		`SELECT id, run_id, game_id, source, tick_id, expected, actual, diff, created_at
		 FROM desyncs
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
}

// DesyncsForRun retrieves the desyncs of one run in tick order.
func (s *Store) DesyncsForRun(runID int64) ([]DesyncRecord, error) {
	return s.queryDesyncs(
		`SELECT id, run_id, game_id, source, tick_id, expected, actual, diff, created_at
		 FROM desyncs
		 WHERE run_id = ?
		 ORDER BY tick_id, id`,
		runID,
	)
}

func (s *Store) queryDesyncs(query string, args ...any) ([]DesyncRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query desyncs: %w", err)
	}
	defer rows.Close()

	var out []DesyncRecord
	for rows.Next() {
		var d DesyncRecord
		var runID sql.NullInt64
		var createdAt any
		if err := rows.Scan(
			&d.ID,
			&runID,
			&d.GameID,
			&d.Source,
			&d.TickID,
			&d.Expected,
			&d.Actual,
			&d.Diff,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		if runID.Valid {
			d.RunID = runID.Int64
		}
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// RunByID retrieves one run. Returns nil if it does not exist.
func (s *Store) RunByID(id int64) (*RunRecord, error) {
	r, err := scanRun(s.db.QueryRow(runColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const runColumns = `SELECT id, game_id, seed, ticks, latency_ms, jitter_ms, loss, reliable, bots, desyncs,
		        mismatches, max_lead, max_error, mean_error, average_ping, requests_sent,
		        requests_lost, rewinds, created_at
		 FROM sim_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var r RunRecord
	var seed int64
	var createdAt any
	err := row.Scan(
		&r.ID,
		&r.GameID,
		&seed,
		&r.Ticks,
		&r.LatencyMs,
		&r.JitterMs,
		&r.Loss,
		&r.Reliable,
		&r.Bots,
		&r.Desyncs,
		&r.Mismatches,
		&r.MaxLead,
		&r.MaxError,
		&r.MeanError,
		&r.AveragePing,
		&r.RequestsSent,
		&r.RequestsLost,
		&r.Rewinds,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("storage: cannot scan row: %w", err)
	}
	r.Seed = uint64(seed) //nolint:gosec // stored bit for bit
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// GetAllRunStats retrieves statistics for every game with stored runs.
func (s *Store) GetAllRunStats() (map[string]*RunStats, error) {
	rows, err := s.db.Query(
		`SELECT game_id, COUNT(*), SUM(desyncs), MAX(max_error), AVG(mean_error), MAX(created_at)
		 FROM sim_runs
		 GROUP BY game_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]*RunStats)
	for rows.Next() {
		var st RunStats
		var lastRun any
		if err := rows.Scan(&st.GameID, &st.Runs, &st.Desyncs, &st.WorstError, &st.AverageError, &lastRun); err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		st.LastRun = parseTime(lastRun)
		stats[st.GameID] = &st
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return stats, nil
}

// ClearRuns deletes every run of a game and its desyncs.
func (s *Store) ClearRuns(gameID string) error {
	if _, err := s.db.Exec("DELETE FROM desyncs WHERE game_id = ?", gameID); err != nil {
		return fmt.Errorf("storage: cannot clear desyncs: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sim_runs WHERE game_id = ?", gameID); err != nil {
		return fmt.Errorf("storage: cannot clear runs: %w", err)
	}
	return nil
}

// parseTime handles both time.Time and string datetimes.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
