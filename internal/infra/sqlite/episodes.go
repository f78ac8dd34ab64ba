package sqlite

import (
	"time"

	"github.com/emberline/ember/internal/domain"
)

// ─── Abort Episodes & Thermal Trace ─────────────────────────────────────────

// InsertEpisode records one abort episode. Immutable once written.
func (d *DB) InsertEpisode(ep domain.AbortEpisode) error {
	_, err := d.db.Exec(
		`INSERT INTO abort_episodes (id, task_id, reason, temp_at_trigger, peak_temp, elapsed_s, alert_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.TaskID, string(ep.Reason), ep.TempAtTrigger, ep.PeakTemp,
		ep.Elapsed, ep.AlertCount, ep.CreatedAt.Unix(),
	)
	return err
}

// ListEpisodes returns recent abort episodes, newest first.
func (d *DB) ListEpisodes(limit int) ([]domain.AbortEpisode, error) {
	rows, err := d.db.Query(
		`SELECT id, task_id, reason, temp_at_trigger, peak_temp, elapsed_s, alert_count, created_at
		 FROM abort_episodes ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []domain.AbortEpisode
	for rows.Next() {
		var ep domain.AbortEpisode
		var createdAt int64
		if err := rows.Scan(&ep.ID, &ep.TaskID, &ep.Reason, &ep.TempAtTrigger,
			&ep.PeakTemp, &ep.Elapsed, &ep.AlertCount, &createdAt); err != nil {
			return nil, err
		}
		ep.CreatedAt = time.Unix(createdAt, 0)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// CountEpisodes returns how many episodes a task has recorded.
func (d *DB) CountEpisodes(taskID string) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM abort_episodes WHERE task_id = ?`, taskID,
	).Scan(&n)
	return n, err
}

// AppendTrace records one thermal-trace sample for a monitored task.
func (d *DB) AppendTrace(taskID string, temp float64, at time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO thermal_trace (task_id, temp, created_at) VALUES (?, ?, ?)`,
		taskID, temp, at.Unix(),
	)
	return err
}

// TraceTemps returns a task's recorded temperatures in tick order.
func (d *DB) TraceTemps(taskID string) ([]float64, error) {
	rows, err := d.db.Query(
		`SELECT temp FROM thermal_trace WHERE task_id = ? ORDER BY id ASC`, taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var temps []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		temps = append(temps, t)
	}
	return temps, rows.Err()
}
