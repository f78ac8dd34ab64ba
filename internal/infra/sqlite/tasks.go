package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/emberline/ember/internal/domain"
)

// ─── Task Fact Base ─────────────────────────────────────────────────────────
// The queue itself is an external collaborator; these rows are the
// passive facts ember reads (queue occupancy) and annotates (status
// transitions around decide/abort).

// InsertTask records a new pending task.
func (d *DB) InsertTask(task domain.Task) error {
	_, err := d.db.Exec(
		`INSERT INTO tasks (id, category, power_w, duration_s, segmentable, urgency, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, string(task.Category), task.PowerDraw, int64(task.Duration.Seconds()),
		task.Segmentable, int(task.Urgency), string(task.Status), task.CreatedAt.Unix(),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return domain.ErrTaskExists
	}
	return err
}

// GetTask retrieves a single task by id.
func (d *DB) GetTask(id string) (*domain.Task, error) {
	row := d.db.QueryRow(
		`SELECT id, category, power_w, duration_s, segmentable, urgency, status, created_at
		 FROM tasks WHERE id = ?`, id,
	)
	return scanTask(row)
}

// UpdateTaskStatus records a lifecycle transition.
func (d *DB) UpdateTaskStatus(id string, status domain.TaskStatus) error {
	result, err := d.db.Exec(`UPDATE tasks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// CountPending returns how many tasks are queued, excluding excludeID.
// Feeds the coordinator's queue-occupancy check.
func (d *DB) CountPending(excludeID string) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE status = ? AND id != ?`,
		string(domain.TaskQueued), excludeID,
	).Scan(&n)
	return n, err
}

// ListTasksByStatus returns tasks in the given state, oldest first.
func (d *DB) ListTasksByStatus(status domain.TaskStatus) ([]domain.Task, error) {
	rows, err := d.db.Query(
		`SELECT id, category, power_w, duration_s, segmentable, urgency, status, created_at
		 FROM tasks WHERE status = ? ORDER BY created_at ASC`, string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var durationS, createdAt int64
	var urgency int
	err := s.Scan(&t.ID, &t.Category, &t.PowerDraw, &durationS,
		&t.Segmentable, &urgency, &t.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Duration = time.Duration(durationS) * time.Second
	t.Urgency = domain.Urgency(urgency)
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}
