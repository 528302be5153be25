package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the status of a recorded run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunPartial     RunStatus = "partial"
	RunFailed      RunStatus = "failed"
	RunCanceled    RunStatus = "canceled"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one recorded response generation.
type Run struct {
	ID         string     `json:"id"`
	Request    string     `json:"request"`
	Refine     bool       `json:"refine"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	TokensUsed int64      `json:"tokens_used"`
	Error      string     `json:"error,omitempty"`
	OutputPath string     `json:"output_path,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Outcomes []SubtaskOutcome `json:"outcomes,omitempty"`
}

// SubtaskOutcome is the recorded result of one subtask.
type SubtaskOutcome struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	State  string `json:"state"`
	Prompt string `json:"prompt,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CreateRun records the start of a run.
func (db *DB) CreateRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, request, refine, status, total, completed, tokens_used, error, output_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Request, r.Refine, string(r.Status), r.Total, r.Completed, r.TokensUsed, r.Error, r.OutputPath, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stores the final state of a run and replaces its outcomes.
func (db *DB) FinishRun(r *Run) error {
	if r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}
	return db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE runs SET status = ?, total = ?, completed = ?, tokens_used = ?, error = ?, output_path = ?, finished_at = ?
			WHERE id = ?
		`, string(r.Status), r.Total, r.Completed, r.TokensUsed, r.Error, r.OutputPath, formatTime(*r.FinishedAt), r.ID)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("finish run: run %s not found", r.ID)
		}

		if _, err := tx.Exec(`DELETE FROM subtask_outcomes WHERE run_id = ?`, r.ID); err != nil {
			return fmt.Errorf("clear outcomes: %w", err)
		}
		for _, o := range r.Outcomes {
			if _, err := tx.Exec(`
				INSERT INTO subtask_outcomes (run_id, idx, type, state, prompt, error)
				VALUES (?, ?, ?, ?, ?, ?)
			`, r.ID, o.Index, o.Type, o.State, o.Prompt, o.Error); err != nil {
				return fmt.Errorf("record outcome %d: %w", o.Index, err)
			}
		}
		return nil
	})
}

// RecordRun stores a finished run in one step.
func (db *DB) RecordRun(r *Run) error {
	if err := db.CreateRun(r); err != nil {
		return err
	}
	return db.FinishRun(r)
}

const runColumns = `id, request, refine, status, total, completed, tokens_used, error, output_path, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var errText, outputPath, finishedAt sql.NullString
	var startedAt string
	if err := row.Scan(&r.ID, &r.Request, &r.Refine, &r.Status, &r.Total, &r.Completed, &r.TokensUsed,
		&errText, &outputPath, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Error = errText.String
	r.OutputPath = outputPath.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run and its outcomes by ID. Returns nil if not found.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := db.Query(`
		SELECT idx, type, state, prompt, error FROM subtask_outcomes
		WHERE run_id = ? ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o SubtaskOutcome
		var prompt, errText sql.NullString
		if err := rows.Scan(&o.Index, &o.Type, &o.State, &prompt, &errText); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Prompt = prompt.String
		o.Error = errText.String
		r.Outcomes = append(r.Outcomes, o)
	}
	return r, rows.Err()
}

// ListRuns lists the most recent runs first, without outcomes.
// A limit of zero or less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// MarkInterrupted marks runs still in the running state as interrupted.
// It is called at startup, when no run of this process can be in flight.
func (db *DB) MarkInterrupted() (int64, error) {
	result, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE status = ?
	`, string(RunInterrupted), formatTime(time.Now()), string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}
