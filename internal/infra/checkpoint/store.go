// Package checkpoint implements the durable progress-snapshot store
// that lets an aborted task resume instead of restarting. Rows are
// append-only per task with strictly increasing sequence numbers;
// the latest row is authoritative, and all rows are purged on normal
// completion (never on abort).
package checkpoint

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/metrics"
	"github.com/emberline/ember/internal/infra/sqlite"
)

// Store persists checkpoints and tracks registered producers.
// Safe for concurrent use; sequence allocation is serialized per store.
type Store struct {
	mu        sync.Mutex
	db        *sqlite.DB
	producers map[string]domain.Checkpointable
	now       func() time.Time
}

// NewStore creates a checkpoint store over db.
func NewStore(db *sqlite.DB) *Store {
	return &Store{
		db:        db,
		producers: make(map[string]domain.Checkpointable),
		now:       time.Now,
	}
}

// RegisterProducer installs the snapshot producer for a task,
// replacing any prior registration.
func (s *Store) RegisterProducer(taskID string, producer domain.Checkpointable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.producers[taskID] = producer
}

// HasProducer reports whether a task has a registered producer.
func (s *Store) HasProducer(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.producers[taskID]
	return ok
}

// Save appends the next checkpoint for a task. The sequence number is
// allocated as latest+1 under the store lock; a concurrent writer that
// lands on the same sequence is rejected with ErrDuplicateSeq, never
// merged. Write failures are the caller's to retry (once).
func (s *Store) Save(taskID string, snap domain.Snapshot, reason domain.CheckpointReason) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(taskID, snap, reason, false)
}

func (s *Store) saveLocked(taskID string, snap domain.Snapshot, reason domain.CheckpointReason, noProducer bool) (*domain.Checkpoint, error) {
	maxSeq, err := s.db.MaxCheckpointSeq(taskID)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint seq: %w", err)
	}

	progress := snap.Progress
	if !noProducer {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
	}

	cp := domain.Checkpoint{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		Seq:        maxSeq + 1,
		Progress:   progress,
		State:      snap.State,
		Output:     snap.Output,
		Reason:     reason,
		NoProducer: noProducer,
		CreatedAt:  s.now(),
	}
	if err := s.db.InsertCheckpoint(cp); err != nil {
		return nil, err
	}
	metrics.CheckpointSaves.WithLabelValues(string(reason)).Inc()
	return &cp, nil
}

// EmergencySave synchronously invokes the registered producer and
// persists the result tagged emergency. With no producer registered it
// records an unknown-progress row with a warning flag rather than
// failing: an emergency snapshot with no payload still marks where the
// abort happened. The write is retried once before giving up.
func (s *Store) EmergencySave(taskID string, trigger string) (*domain.Checkpoint, error) {
	s.mu.Lock()
	producer, ok := s.producers[taskID]
	s.mu.Unlock()

	var snap domain.Snapshot
	noProducer := !ok
	if ok {
		var err error
		snap, err = producer.Checkpoint()
		if err != nil {
			log.Printf("[checkpoint] producer failed for task %s (%s): %v — recording unknown progress", taskID, trigger, err)
			snap = domain.Snapshot{}
			noProducer = true
		}
	} else {
		log.Printf("[checkpoint] no producer registered for task %s (%s) — recording unknown progress", taskID, trigger)
	}
	if noProducer {
		snap.Progress = domain.ProgressUnknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.saveLocked(taskID, snap, domain.CheckpointEmergency, noProducer)
	if err != nil {
		log.Printf("[checkpoint] emergency save failed for task %s: %v — retrying once", taskID, err)
		cp, err = s.saveLocked(taskID, snap, domain.CheckpointEmergency, noProducer)
	}
	return cp, err
}

// Latest returns the authoritative (maximum-sequence) checkpoint.
func (s *Store) Latest(taskID string) (*domain.Checkpoint, error) {
	return s.db.LatestCheckpoint(taskID)
}

// ResumePlan packages the latest checkpoint's state and output with
// its sequence number so the runner can skip forward.
func (s *Store) ResumePlan(taskID string) (*domain.ResumePlan, error) {
	cp, err := s.db.LatestCheckpoint(taskID)
	if err != nil {
		return nil, err
	}
	return &domain.ResumePlan{
		TaskID:   cp.TaskID,
		Seq:      cp.Seq,
		Progress: cp.Progress,
		State:    cp.State,
		Output:   cp.Output,
	}, nil
}

// EstimateRemaining projects time left from the latest progress,
// linearly. Unknown progress estimates the full duration.
func (s *Store) EstimateRemaining(taskID string, total time.Duration) (time.Duration, error) {
	cp, err := s.db.LatestCheckpoint(taskID)
	if err != nil {
		return 0, err
	}
	if cp.Progress < 0 {
		return total, nil
	}
	frac := (100 - cp.Progress) / 100
	return time.Duration(frac * float64(total)), nil
}

// Dispose deletes all of a task's checkpoints and unregisters its
// producer. Only called on normal completion, never on abort.
func (s *Store) Dispose(taskID string) error {
	s.mu.Lock()
	delete(s.producers, taskID)
	s.mu.Unlock()

	n, err := s.db.DeleteCheckpoints(taskID)
	if err != nil {
		return fmt.Errorf("dispose checkpoints: %w", err)
	}
	log.Printf("[checkpoint] disposed %d rows for task %s", n, taskID)
	return nil
}
