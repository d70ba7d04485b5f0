// Package storage provides SQLite persistence for analysis runs.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/finsight/stockagent/agent"
)

// RunStore persists completed analysis runs.
type RunStore interface {
	SaveRun(ctx context.Context, provider, model string, result agent.Result) (string, error)
	LoadRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	DeleteRun(ctx context.Context, runID string) error
	Close() error
}

// RunRecord is a stored run with its full step history.
type RunRecord struct {
	RunID     string       `json:"run_id"`
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	CreatedAt int64        `json:"created_at"`
	Result    agent.Result `json:"result"`
}

// RunSummary is the listing view of a run, without step payloads.
type RunSummary struct {
	RunID       string `json:"run_id"`
	Query       string `json:"query"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Completed   bool   `json:"completed"`
	StepsCount  int    `json:"steps_count"`
	TotalTokens uint32 `json:"total_tokens"`
	CreatedAt   int64  `json:"created_at"`
}

// SqliteRunStore implements RunStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteRunStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteRunStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteRunStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteRunStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteRunStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteRunStore) Close() error {
	return s.db.Close()
}

func (s *SqliteRunStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			final_analysis TEXT NOT NULL,
			completed INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			steps_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created
		ON runs(created_at DESC);

		CREATE TABLE IF NOT EXISTS run_steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			llm_response TEXT NOT NULL,
			prompt_tokens INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			tool_call TEXT,
			tool_result TEXT,
			is_final_summary INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, step),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and all of its steps in one transaction and
// returns the generated run ID.
func (s *SqliteRunStore) SaveRun(ctx context.Context, provider, model string, result agent.Result) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, query, provider, model, final_analysis, completed, total_tokens, steps_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		result.Query,
		provider,
		model,
		result.FinalAnalysis,
		result.Completed,
		result.TotalTokensUsed,
		result.StepsCount,
		time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_steps
		(run_id, step, llm_response, prompt_tokens, completion_tokens, total_tokens, tool_call, tool_result, is_final_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()

	for _, step := range result.Steps {
		toolCall, err := marshalNullable(step.ToolCall)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool call: %w", err)
		}
		toolResult, err := marshalNullable(step.ToolResult)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool result: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			runID,
			step.Step,
			step.Response,
			step.TokenUsage.PromptTokens,
			step.TokenUsage.CompletionTokens,
			step.TokenUsage.TotalTokens,
			toolCall,
			toolResult,
			step.IsFinalSummary,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert step %d: %w", step.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return runID, nil
}

// LoadRun loads a run with its full step history.
// Returns nil, nil if not found.
func (s *SqliteRunStore) LoadRun(ctx context.Context, runID string) (*RunRecord, error) {
	rec := RunRecord{RunID: runID}
	err := s.db.QueryRowContext(ctx, `
		SELECT query, provider, model, final_analysis, completed, total_tokens, steps_count, created_at
		FROM runs WHERE run_id = ?`,
		runID).Scan(
		&rec.Result.Query,
		&rec.Provider,
		&rec.Model,
		&rec.Result.FinalAnalysis,
		&rec.Result.Completed,
		&rec.Result.TotalTokensUsed,
		&rec.Result.StepsCount,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, llm_response, prompt_tokens, completion_tokens, total_tokens, tool_call, tool_result, is_final_summary
		FROM run_steps WHERE run_id = ? ORDER BY step ASC`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			step                 agent.StepRecord
			toolCall, toolResult sql.NullString
		)
		err := rows.Scan(
			&step.Step,
			&step.Response,
			&step.TokenUsage.PromptTokens,
			&step.TokenUsage.CompletionTokens,
			&step.TokenUsage.TotalTokens,
			&toolCall,
			&toolResult,
			&step.IsFinalSummary,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if toolCall.Valid {
			var d agent.Directive
			if err := json.Unmarshal([]byte(toolCall.String), &d); err != nil {
				return nil, fmt.Errorf("invalid tool call JSON in database: %w", err)
			}
			step.ToolCall = &d
		}
		if toolResult.Valid {
			var env agent.Envelope
			if err := json.Unmarshal([]byte(toolResult.String), &env); err != nil {
				return nil, fmt.Errorf("invalid tool result JSON in database: %w", err)
			}
			step.ToolResult = &env
		}

		rec.Result.Steps = append(rec.Result.Steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return &rec, nil
}

// ListRuns lists recent runs, newest first.
func (s *SqliteRunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, query, provider, model, completed, steps_count, total_tokens, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{} // Start with empty slice, not nil
	for rows.Next() {
		var s RunSummary
		err := rows.Scan(
			&s.RunID,
			&s.Query,
			&s.Provider,
			&s.Model,
			&s.Completed,
			&s.StepsCount,
			&s.TotalTokens,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}

// DeleteRun removes a run and its steps.
func (s *SqliteRunStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Cascade is not enforced unless foreign_keys is on, so delete both.
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_steps WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete run steps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// marshalNullable encodes v as JSON, mapping a nil pointer to SQL NULL.
func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case *agent.Directive:
		if val == nil {
			return nil, nil
		}
	case *agent.Envelope:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Verify SqliteRunStore implements RunStore
var _ RunStore = (*SqliteRunStore)(nil)
