// Package decision implements the coordinator that merges the thermal
// pre-flight forecast with policy, energy, and queue facts into one
// four-way scheduling verdict: Accept, Defer, Sleep, or Idle.
//
// Checks run in a fixed order and short-circuit on the first veto.
// A failing check is never allowed to starve the queue: internal
// errors are logged and treated fail-open. Every decision is appended
// to the audit log with its contributing sub-check outcomes.
package decision

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/metrics"
	"github.com/emberline/ember/internal/infra/sqlite"
	"github.com/emberline/ember/internal/infra/thermal"
)

// DeferralSink collects deferred tasks for later re-offering.
type DeferralSink interface {
	Schedule(taskID, reason string, retryIn time.Duration) bool
	Forget(taskID string)
}

// Coordinator runs the decision pipeline for pending tasks.
type Coordinator struct {
	deviceID  string
	predictor *thermal.Predictor
	profiles  domain.ProfileStore
	policy    domain.PolicyChecker
	energy    domain.EnergyChecker
	queue     domain.QueueOccupancy
	sleeper   domain.DeviceSleeper
	deferrals DeferralSink
	db        *sqlite.DB
	now       func() time.Time
}

// New creates a coordinator. All collaborators are required except
// sleeper, which may be nil (sleep requests are then skipped and the
// verdict degrades to Idle).
func New(deviceID string, predictor *thermal.Predictor, profiles domain.ProfileStore,
	policy domain.PolicyChecker, energy domain.EnergyChecker, queue domain.QueueOccupancy,
	sleeper domain.DeviceSleeper, db *sqlite.DB) *Coordinator {
	return &Coordinator{
		deviceID:  deviceID,
		predictor: predictor,
		profiles:  profiles,
		policy:    policy,
		energy:    energy,
		queue:     queue,
		sleeper:   sleeper,
		db:        db,
		now:       time.Now,
	}
}

// SetDeferrals installs the deferral sink. Optional; without one,
// deferred tasks wait for the broker to re-offer them.
func (c *Coordinator) SetDeferrals(sink DeferralSink) { c.deferrals = sink }

// Decide runs the ordered check pipeline for one pending task and
// returns the logged decision. Short-circuits on the first veto.
func (c *Coordinator) Decide(task domain.Task, userID string) (domain.Decision, error) {
	var checks []domain.CheckOutcome

	// 1. Thermal pre-flight.
	profile, err := c.profiles.Get(c.deviceID)
	if err != nil {
		// Missing or unreadable profile substitutes the generic one.
		log.Printf("[decision] profile lookup failed for %s: %v — using generic", c.deviceID, err)
		profile = domain.GenericProfile()
	}

	forecast := c.predictor.Forecast(task, profile)
	switch forecast.Verdict {
	case domain.VerdictReject:
		checks = append(checks, domain.CheckOutcome{
			Name:   "thermal",
			Detail: fmt.Sprintf("predicted peak %.1f°C exceeds critical %.1f°C", forecast.PeakTemp, profile.Critical),
		})
		return c.record(task, domain.DecisionDefer,
			fmt.Sprintf("thermal forecast predicts device-damage risk (peak %.1f°C)", forecast.PeakTemp),
			checks, 0)
	case domain.VerdictWait:
		wait := time.Duration(forecast.WaitMinutes) * time.Minute
		checks = append(checks, domain.CheckOutcome{
			Name:   "thermal",
			Detail: fmt.Sprintf("device must cool ~%d min before running whole", forecast.WaitMinutes),
		})
		return c.record(task, domain.DecisionDefer,
			fmt.Sprintf("device too warm for unsegmented run — retry in %d min", forecast.WaitMinutes),
			checks, wait)
	case domain.VerdictSegment:
		checks = append(checks, domain.CheckOutcome{
			Name:   "thermal",
			Passed: true,
			Detail: fmt.Sprintf("segmented into %d sub-runs with cooldowns", forecast.SegmentCount()),
		})
	default:
		detail := fmt.Sprintf("predicted peak %.1f°C (%s zone)", forecast.PeakTemp, forecast.Zone)
		if forecast.Degraded {
			detail = "sensor unavailable — proceeding degraded"
		}
		checks = append(checks, domain.CheckOutcome{Name: "thermal", Passed: true, Detail: detail})
	}

	// 2. Delegation-hours / idle-cooldown policy. Top-tier urgency
	// bypasses the window.
	if res, err := c.policy.Check(userID); err != nil {
		log.Printf("[decision] policy check failed: %v — fail-open", err)
		checks = append(checks, domain.CheckOutcome{Name: "policy", Passed: true, Errored: true, Detail: err.Error()})
	} else if !res.Allowed && task.Urgency < domain.UrgencyCritical {
		checks = append(checks, domain.CheckOutcome{Name: "policy", Detail: res.Reason})
		return c.record(task, domain.DecisionDefer,
			"outside delegation window: "+res.Reason,
			checks, retryUntil(c.now(), res.NextWindow))
	} else {
		checks = append(checks, domain.CheckOutcome{Name: "policy", Passed: true, Detail: res.Reason})
	}

	// 3. Energy cleanliness. Only low/normal urgency waits for clean
	// energy.
	if res, err := c.energy.Check(task); err != nil {
		log.Printf("[decision] energy check failed: %v — fail-open", err)
		checks = append(checks, domain.CheckOutcome{Name: "energy", Passed: true, Errored: true, Detail: err.Error()})
	} else if !res.Clean && task.Urgency <= domain.UrgencyNormal {
		checks = append(checks, domain.CheckOutcome{Name: "energy", Detail: res.Reason})
		return c.record(task, domain.DecisionDefer,
			"grid energy not clean: "+res.Reason,
			checks, retryUntil(c.now(), res.NextCleanWindow))
	} else {
		checks = append(checks, domain.CheckOutcome{Name: "energy", Passed: true, Detail: res.Reason})
	}

	// 4. Queue occupancy. An empty queue behind this task means the
	// device can sleep once it is handled.
	pending, err := c.queue.Pending()
	if err != nil {
		// Unknown occupancy never drops work.
		log.Printf("[decision] queue occupancy failed: %v — fail-open", err)
		checks = append(checks, domain.CheckOutcome{Name: "queue", Passed: true, Errored: true, Detail: err.Error()})
		return c.record(task, domain.DecisionAccept, "accepted (queue occupancy unknown, fail-open)", checks, 0)
	}
	checks = append(checks, domain.CheckOutcome{
		Name: "queue", Passed: true, Detail: fmt.Sprintf("%d other task(s) pending", pending),
	})

	if pending == 0 {
		if c.sleeper != nil {
			if err := c.sleeper.Suspend("queue empty after task " + task.ID); err != nil {
				// Could not request sleep; stay alive without taking
				// on new work.
				log.Printf("[decision] sleep request failed: %v — idling", err)
				return c.record(task, domain.DecisionIdle, "queue empty but sleep request failed — idling", checks, 0)
			}
			return c.record(task, domain.DecisionSleep, "nothing else queued — requesting device sleep", checks, 0)
		}
		return c.record(task, domain.DecisionIdle, "nothing else queued — idling (no sleep capability)", checks, 0)
	}

	return c.record(task, domain.DecisionAccept, "all checks passed", checks, 0)
}

// record persists and logs the decision. Persistence failures are
// logged but never change the verdict.
func (c *Coordinator) record(task domain.Task, verdict domain.DecisionVerdict,
	reason string, checks []domain.CheckOutcome, retryIn time.Duration) (domain.Decision, error) {
	dec := domain.Decision{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Verdict:   verdict,
		Reason:    reason,
		Checks:    checks,
		RetryIn:   retryIn,
		CreatedAt: c.now(),
	}

	log.Printf("[decision] task %s: %s — %s", task.ID, verdict, reason)
	metrics.Decisions.WithLabelValues(string(verdict)).Inc()

	if err := c.db.InsertDecision(dec); err != nil {
		log.Printf("[decision] audit log write failed for task %s: %v", task.ID, err)
		return dec, err
	}

	switch verdict {
	case domain.DecisionDefer:
		if err := c.db.UpdateTaskStatus(task.ID, domain.TaskDeferred); err != nil && err != domain.ErrTaskNotFound {
			log.Printf("[decision] status update failed for task %s: %v", task.ID, err)
		}
		if c.deferrals != nil {
			c.deferrals.Schedule(task.ID, reason, retryIn)
		}
	case domain.DecisionAccept:
		if c.deferrals != nil {
			c.deferrals.Forget(task.ID)
		}
	}
	return dec, nil
}

// retryUntil converts an absolute next-window time into a relative
// retry estimate, 0 when the window is unknown or past.
func retryUntil(now, next time.Time) time.Duration {
	if next.IsZero() || !next.After(now) {
		return 0
	}
	return next.Sub(now)
}
