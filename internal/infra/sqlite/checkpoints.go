package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/emberline/ember/internal/domain"
)

// ─── Checkpoint Log ─────────────────────────────────────────────────────────

// InsertCheckpoint appends a checkpoint row. The UNIQUE(task_id, seq)
// constraint rejects duplicate sequence numbers outright — duplicates
// are never merged.
func (d *DB) InsertCheckpoint(cp domain.Checkpoint) error {
	_, err := d.db.Exec(
		`INSERT INTO checkpoints (id, task_id, seq, progress, state, output, reason, no_producer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.TaskID, cp.Seq, cp.Progress, cp.State, cp.Output,
		string(cp.Reason), cp.NoProducer, cp.CreatedAt.Unix(),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return domain.ErrDuplicateSeq
	}
	return err
}

// LatestCheckpoint returns the maximum-sequence row for a task, or
// ErrNoCheckpoint when none exists.
func (d *DB) LatestCheckpoint(taskID string) (*domain.Checkpoint, error) {
	row := d.db.QueryRow(
		`SELECT id, task_id, seq, progress, state, output, reason, no_producer, created_at
		 FROM checkpoints WHERE task_id = ? ORDER BY seq DESC LIMIT 1`, taskID,
	)
	return scanCheckpoint(row)
}

// MaxCheckpointSeq returns the current maximum sequence number for a
// task, 0 when none exists.
func (d *DB) MaxCheckpointSeq(taskID string) (int64, error) {
	var seq sql.NullInt64
	err := d.db.QueryRow(
		`SELECT MAX(seq) FROM checkpoints WHERE task_id = ?`, taskID,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// DeleteCheckpoints purges all checkpoint rows for a task. Returns the
// number of rows removed.
func (d *DB) DeleteCheckpoints(taskID string) (int64, error) {
	result, err := d.db.Exec(`DELETE FROM checkpoints WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountCheckpoints returns how many rows a task has.
func (d *DB) CountCheckpoints(taskID string) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM checkpoints WHERE task_id = ?`, taskID,
	).Scan(&n)
	return n, err
}

func scanCheckpoint(s scanner) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	var createdAt int64
	err := s.Scan(&cp.ID, &cp.TaskID, &cp.Seq, &cp.Progress, &cp.State,
		&cp.Output, &cp.Reason, &cp.NoProducer, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoCheckpoint
	}
	if err != nil {
		return nil, err
	}
	cp.CreatedAt = time.Unix(createdAt, 0)
	return &cp, nil
}
