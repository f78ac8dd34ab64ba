package sensors

import (
	"log"
	"sync"
	"time"
)

// LoggingSleeper is the default DeviceSleeper: it records and logs
// suspend/wake requests without touching the OS. The real sleep
// trigger is an external collaborator; deployments wire their own.
type LoggingSleeper struct {
	mu       sync.Mutex
	suspends []string
	wakeAt   time.Time
}

// NewLoggingSleeper creates a logging device sleeper.
func NewLoggingSleeper() *LoggingSleeper {
	return &LoggingSleeper{}
}

// Suspend records a suspension request.
func (s *LoggingSleeper) Suspend(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspends = append(s.suspends, reason)
	log.Printf("[sleeper] device suspend requested: %s", reason)
	return nil
}

// ScheduleWake records a wake request.
func (s *LoggingSleeper) ScheduleWake(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wakeAt = at
	log.Printf("[sleeper] device wake scheduled: %s", at.Format(time.RFC3339))
	return nil
}

// SuspendCount returns how many suspensions were requested.
func (s *LoggingSleeper) SuspendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.suspends)
}

// LastReason returns the most recent suspension reason.
func (s *LoggingSleeper) LastReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.suspends) == 0 {
		return ""
	}
	return s.suspends[len(s.suspends)-1]
}
