// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists a ledger of refinement runs in the project's
// working directory, so repeated invocations on the same project leave
// an inspectable trail.
// Implements: prd008-graphical-abstract (R6);
//
//	docs/ARCHITECTURE § Run Ledger.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/abstract-engine/internal/refine"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

const (
	dbFile     = "history.db"
	exportFile = "history.yaml"
)

// Store manages the run ledger SQLite database.
type Store struct {
	db         *sql.DB
	workDir    string
	maxResults int
}

// NewStore opens or creates the ledger at workDir/history.db, creating
// the schema if it does not exist.
func NewStore(workDir string, cfg types.HistoryConfig) (*Store, error) {
	dbPath := filepath.Join(workDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, workDir: workDir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			model TEXT,
			budget INTEGER,
			accepted INTEGER NOT NULL,
			reason TEXT NOT NULL,
			artifact_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS revisions (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			idx INTEGER NOT NULL,
			source TEXT NOT NULL,
			check_failure TEXT,
			compile_passed INTEGER,
			compile_log TEXT,
			artifact_path TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_run_id ON revisions(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RunMeta carries the invocation parameters recorded alongside an
// outcome.
type RunMeta struct {
	// StartedAt is the wall-clock start of the run. The zero value
	// records the current time.
	StartedAt time.Time

	// Model is the generation model identifier.
	Model string

	// Budget is the revision budget the run was invoked with.
	Budget int
}

// RecordRun appends one refinement outcome to the ledger inside a
// single transaction and returns the new run's ID.
func (s *Store) RecordRun(ctx context.Context, meta RunMeta, out refine.Outcome) (int64, error) {
	started := meta.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	artifact := ""
	if final := out.Final(); final != nil && final.Compile != nil {
		artifact = final.Compile.ArtifactPath
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, model, budget, accepted, reason, artifact_path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		started.UTC().Format(time.RFC3339), meta.Model, meta.Budget,
		boolInt(out.Accepted), string(out.Reason), artifact,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO revisions (run_id, idx, source, check_failure, compile_passed, compile_log, artifact_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rev := range out.Revisions {
		var passed sql.NullInt64
		var log, artifactPath string
		if rev.Compile != nil {
			passed = sql.NullInt64{Int64: int64(boolInt(rev.Compile.Passed)), Valid: true}
			log = rev.Compile.Log
			artifactPath = rev.Compile.ArtifactPath
		}
		_, err := stmt.ExecContext(ctx,
			runID, rev.Index, rev.Draft.Source, rev.CheckFailure, passed, log, artifactPath,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting revision %d: %w", rev.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// RunSummary is one ledger row as listed by Runs.
type RunSummary struct {
	ID           int64  `json:"id" yaml:"id"`
	StartedAt    string `json:"started_at" yaml:"started_at"`
	Model        string `json:"model" yaml:"model"`
	Budget       int    `json:"budget" yaml:"budget"`
	Accepted     bool   `json:"accepted" yaml:"accepted"`
	Reason       string `json:"reason" yaml:"reason"`
	ArtifactPath string `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`
	Revisions    int    `json:"revisions" yaml:"revisions"`
}

// Runs lists the most recent runs, newest first. A limit of 0 uses the
// configured default.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started_at, r.model, r.budget, r.accepted, r.reason, r.artifact_path,
		        (SELECT count(*) FROM revisions v WHERE v.run_id = r.id)
		 FROM runs r ORDER BY r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var sum RunSummary
		var accepted int
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.Model, &sum.Budget,
			&accepted, &sum.Reason, &sum.ArtifactPath, &sum.Revisions); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		sum.Accepted = accepted != 0
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// RunExport is one run with its full revision trail, as written by
// ExportYAML.
type RunExport struct {
	RunSummary `yaml:",inline"`
	Trail      []types.Revision `json:"trail" yaml:"trail"`
}

// ExportYAML writes the complete ledger, including revision sources and
// diagnostics, to workDir/history.yaml.
func (s *Store) ExportYAML(ctx context.Context) error {
	summaries, err := s.Runs(ctx, int(^uint(0)>>1))
	if err != nil {
		return err
	}

	exports := make([]RunExport, len(summaries))
	for i, sum := range summaries {
		trail, err := s.revisions(ctx, sum.ID)
		if err != nil {
			return err
		}
		exports[i] = RunExport{RunSummary: sum, Trail: trail}
	}

	data, err := yaml.Marshal(exports)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(filepath.Join(s.workDir, exportFile), data, 0o644)
}

func (s *Store) revisions(ctx context.Context, runID int64) ([]types.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, source, check_failure, compile_passed, compile_log, artifact_path
		 FROM revisions WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	var trail []types.Revision
	for rows.Next() {
		var rev types.Revision
		var passed sql.NullInt64
		var log, artifact string
		if err := rows.Scan(&rev.Index, &rev.Draft.Source, &rev.CheckFailure,
			&passed, &log, &artifact); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		rev.Draft.Index = rev.Index
		if passed.Valid {
			rev.Compile = &types.CompileResult{
				Passed:       passed.Int64 != 0,
				Log:          log,
				ArtifactPath: artifact,
			}
		}
		trail = append(trail, rev)
	}
	return trail, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
