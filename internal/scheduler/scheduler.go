// Package scheduler runs per-instance restart schedules. Each instance with a
// restart cron expression gets one job that issues a non-blocking restart.
package scheduler

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/instance"
)

// Scheduler wraps the shared cron runner. Register and Unregister are called
// from concurrent HTTP handlers, so the job map is mutex-guarded; the cron
// runner itself is safe for concurrent use.
type Scheduler struct {
	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a stopped scheduler. Call Start after registering instances.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]cron.EntryID),
	}
}

// Register adds (or replaces) the restart job for an instance. Instances
// without a restart cron expression are unregistered.
func (s *Scheduler) Register(sup *instance.Supervisor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(sup.ID())

	spec := sup.Settings().RestartCron
	if spec == "" {
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() {
		if sup.State() != instance.StateRunning {
			slog.Debug("skipping scheduled restart, instance not running",
				"instance", sup.Name())
			return
		}
		slog.Info("scheduled restart", "instance", sup.Name())
		if err := sup.Restart(events.System(), false); err != nil {
			slog.Warn("scheduled restart rejected", "instance", sup.Name(), "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.jobs[sup.ID()] = id
	return nil
}

// Unregister drops the restart job for an instance, if any.
func (s *Scheduler) Unregister(instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(instanceID)
}

// remove requires s.mu to be held.
func (s *Scheduler) remove(instanceID string) {
	if id, ok := s.jobs[instanceID]; ok {
		s.cron.Remove(id)
		delete(s.jobs, instanceID)
	}
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
