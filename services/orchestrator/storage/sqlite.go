package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("storage")

const (
	memoryPath           = ":memory:"
	defaultRetainedRuns  = 20
	defaultWriteDeadline = 5 * time.Second
)

// ErrRunNotFound signals an unknown run identifier
var ErrRunNotFound = errors.New("run not found")

// IsInMemory returns true when the path selects a database that lives only as long as the process
func IsInMemory(dbPath string) bool {
	return dbPath == "" || dbPath == memoryPath
}

// sqliteStorage keeps the runs and their per-tick samples
type sqliteStorage struct {
	db           *sql.DB
	retainedRuns int
}

// NewSQLiteStorage opens the database and creates the schema. Only the latest retainedRuns runs are kept.
func NewSQLiteStorage(dbPath string, retainedRuns int) (*sqliteStorage, error) {
	if IsInMemory(dbPath) {
		dbPath = memoryPath
	}
	if retainedRuns <= 0 {
		retainedRuns = defaultRetainedRuns
	}

	if dbPath != memoryPath {
		err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
		if err != nil {
			return nil, fmt.Errorf("failed to create the database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		// every connection would see its own empty in-memory database
		db.SetMaxOpenConns(1)
	}

	err = createSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("run store opened", "path", dbPath, "retained runs", retainedRuns)

	return &sqliteStorage{
		db:           db,
		retainedRuns: retainedRuns,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy         TEXT    NOT NULL,
		started_at       INTEGER NOT NULL,
		finished_at      INTEGER,
		stop_reason      INTEGER NOT NULL DEFAULT 0,
		stop_message     TEXT    NOT NULL DEFAULT '',
		max_stable_users INTEGER NOT NULL DEFAULT 0,
		max_stable_rps   REAL    NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id            INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		step              INTEGER NOT NULL,
		recorded_at       INTEGER NOT NULL,
		users             INTEGER NOT NULL,
		rps               REAL    NOT NULL,
		rt_avg            REAL    NOT NULL,
		p50               REAL    NOT NULL,
		p95               REAL    NOT NULL,
		p99               REAL    NOT NULL,
		failed_requests   INTEGER NOT NULL,
		total_requests    INTEGER NOT NULL,
		error_rate        REAL    NOT NULL,
		stability         REAL,
		efficiency        REAL    NOT NULL,
		degradation_index REAL    NOT NULL,
		decision          INTEGER NOT NULL,
		reason            INTEGER NOT NULL,
		violation         INTEGER NOT NULL,
		message           TEXT    NOT NULL DEFAULT '',
		next_users        INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// BeginRun inserts a new run and trims the oldest ones above the retention limit
func (s *sqliteStorage) BeginRun(strategyName string, startedAt time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteDeadline)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "INSERT INTO runs (strategy, started_at) VALUES (?, ?)",
		strategyName, startedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM samples
		WHERE run_id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)
	`, s.retainedRuns)
	if err != nil {
		return 0, fmt.Errorf("failed to trim samples: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)
	`, s.retainedRuns)
	if err != nil {
		return 0, fmt.Errorf("failed to trim runs: %w", err)
	}

	return runID, tx.Commit()
}

// RecordStep stores one monitoring tick. An infinite stability is stored as NULL.
func (s *sqliteStorage) RecordStep(runID int64, step common.Step) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteDeadline)
	defer cancel()

	raw := step.Metrics.Raw
	var stability sql.NullFloat64
	if !math.IsInf(step.Metrics.Stability, 0) && !math.IsNaN(step.Metrics.Stability) {
		stability = sql.NullFloat64{Float64: step.Metrics.Stability, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (run_id, step, recorded_at, users, rps, rt_avg, p50, p95, p99, failed_requests,
			total_requests, error_rate, stability, efficiency, degradation_index, decision, reason, violation,
			message, next_users)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, step.Index, raw.Timestamp.UnixMilli(), raw.Users, raw.RPS, raw.RtAvg, raw.P50, raw.P95, raw.P99,
		raw.FailedRequests, raw.TotalRequests, raw.ErrorRate, stability, step.Metrics.ScalingEfficiency,
		step.Metrics.DegradationIndex, int(step.Verdict.Decision), int(step.Verdict.Reason), step.Verdict.Violation,
		step.Verdict.Message, step.Users)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	return nil
}

// FinishRun stores the outcome of a run
func (s *sqliteStorage) FinishRun(runID int64, result common.TestResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteDeadline)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, stop_reason = ?, stop_message = ?, max_stable_users = ?, max_stable_rps = ?
		WHERE id = ?
	`, result.FinishedAt.UnixMilli(), int(result.StopReason), result.StopMessage, result.MaxStableUsers,
		result.MaxStableRPS, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}

	return nil
}

// ListRuns returns the retained runs, newest first
func (s *sqliteStorage) ListRuns(ctx context.Context) ([]common.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.strategy, r.started_at, r.finished_at, r.stop_reason, r.stop_message,
			r.max_stable_users, r.max_stable_rps, COUNT(sm.step)
		FROM runs r
		LEFT JOIN samples sm ON sm.run_id = r.id
		GROUP BY r.id
		ORDER BY r.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]common.RunSummary, 0)
	for rows.Next() {
		var summary common.RunSummary
		var startedAt int64
		var finishedAt sql.NullInt64
		var reason int

		err = rows.Scan(&summary.ID, &summary.Strategy, &startedAt, &finishedAt, &reason, &summary.StopMessage,
			&summary.MaxStableUsers, &summary.MaxStableRPS, &summary.NumSteps)
		if err != nil {
			return nil, err
		}

		summary.StartedAt = time.UnixMilli(startedAt)
		summary.StopReason = common.StopReason(reason)
		if finishedAt.Valid {
			finished := time.UnixMilli(finishedAt.Int64)
			summary.FinishedAt = &finished
		}
		results = append(results, summary)
	}

	return results, rows.Err()
}

// GetSamples returns the steps of a run in tick order
func (s *sqliteStorage) GetSamples(ctx context.Context, runID int64) ([]common.Step, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, recorded_at, users, rps, rt_avg, p50, p95, p99, failed_requests, total_requests, error_rate,
			stability, efficiency, degradation_index, decision, reason, violation, message, next_users
		FROM samples
		WHERE run_id = ?
		ORDER BY step
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	steps := make([]common.Step, 0)
	for rows.Next() {
		var step common.Step
		var recordedAt int64
		var stability sql.NullFloat64
		var decision, reason int

		raw := &step.Metrics.Raw
		err = rows.Scan(&step.Index, &recordedAt, &raw.Users, &raw.RPS, &raw.RtAvg, &raw.P50, &raw.P95, &raw.P99,
			&raw.FailedRequests, &raw.TotalRequests, &raw.ErrorRate, &stability, &step.Metrics.ScalingEfficiency,
			&step.Metrics.DegradationIndex, &decision, &reason, &step.Verdict.Violation, &step.Verdict.Message,
			&step.Users)
		if err != nil {
			return nil, err
		}

		raw.Timestamp = time.UnixMilli(recordedAt)
		step.Metrics.Stability = math.Inf(1)
		if stability.Valid {
			step.Metrics.Stability = stability.Float64
		}
		step.Verdict.Decision = common.Decision(decision)
		step.Verdict.Reason = common.StopReason(reason)
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// Close closes the database
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *sqliteStorage) IsInterfaceNil() bool {
	return s == nil
}
