package mds

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"gastrolog/internal/logging"
)

// LivenessChecker wakes on a fixed interval and evicts any chunk server
// whose last heartbeat is older than the membership table's liveness
// window (spec.md §4.1).
type LivenessChecker struct {
	scheduler gocron.Scheduler
	membership *Membership
	logger     *slog.Logger
}

// NewLivenessChecker creates (but does not start) a checker that wakes
// every checkInterval.
func NewLivenessChecker(membership *Membership, checkInterval time.Duration, logger *slog.Logger) (*LivenessChecker, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create liveness scheduler: %w", err)
	}

	logger = logging.Default(logger).With("component", "mds-liveness")
	checker := &LivenessChecker{scheduler: scheduler, membership: membership, logger: logger}

	_, err = scheduler.NewJob(
		gocron.DurationJob(checkInterval),
		gocron.NewTask(checker.tick),
		gocron.WithName("mds-liveness-checker"),
	)
	if err != nil {
		return nil, fmt.Errorf("create liveness job: %w", err)
	}
	return checker, nil
}

// Start begins the periodic eviction loop.
func (c *LivenessChecker) Start() { c.scheduler.Start() }

// Stop shuts the scheduler down, waiting for any in-flight tick.
func (c *LivenessChecker) Stop() error { return c.scheduler.Shutdown() }

func (c *LivenessChecker) tick() {
	evicted := c.membership.EvictStale(time.Now().UTC())
	for _, id := range evicted {
		c.logger.Info("evicted stale chunk server", "server_id", id)
	}
}
