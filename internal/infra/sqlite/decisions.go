package sqlite

import (
	"encoding/json"
	"time"

	"github.com/emberline/ember/internal/domain"
)

// ─── Decision Audit Log ─────────────────────────────────────────────────────

// InsertDecision appends a decision row. Sub-check outcomes are stored
// as a JSON column; the log is append-only.
func (d *DB) InsertDecision(dec domain.Decision) error {
	checks, err := json.Marshal(dec.Checks)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		`INSERT INTO decisions (id, task_id, verdict, reason, checks, retry_in_s, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dec.ID, dec.TaskID, string(dec.Verdict), dec.Reason, string(checks),
		int64(dec.RetryIn.Seconds()), dec.CreatedAt.Unix(),
	)
	return err
}

// ListDecisions returns the most recent decisions, newest first.
func (d *DB) ListDecisions(limit int) ([]domain.Decision, error) {
	rows, err := d.db.Query(
		`SELECT id, task_id, verdict, reason, checks, retry_in_s, created_at
		 FROM decisions ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var dec domain.Decision
		var checks string
		var retryS, createdAt int64
		if err := rows.Scan(&dec.ID, &dec.TaskID, &dec.Verdict, &dec.Reason,
			&checks, &retryS, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(checks), &dec.Checks); err != nil {
			return nil, err
		}
		dec.RetryIn = time.Duration(retryS) * time.Second
		dec.CreatedAt = time.Unix(createdAt, 0)
		decisions = append(decisions, dec)
	}
	return decisions, rows.Err()
}

// DecisionsForTask returns a task's decisions, newest first.
func (d *DB) DecisionsForTask(taskID string, limit int) ([]domain.Decision, error) {
	rows, err := d.db.Query(
		`SELECT id, task_id, verdict, reason, checks, retry_in_s, created_at
		 FROM decisions WHERE task_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		taskID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var dec domain.Decision
		var checks string
		var retryS, createdAt int64
		if err := rows.Scan(&dec.ID, &dec.TaskID, &dec.Verdict, &dec.Reason,
			&checks, &retryS, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(checks), &dec.Checks); err != nil {
			return nil, err
		}
		dec.RetryIn = time.Duration(retryS) * time.Second
		dec.CreatedAt = time.Unix(createdAt, 0)
		decisions = append(decisions, dec)
	}
	return decisions, rows.Err()
}
