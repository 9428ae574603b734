package syncqueue

import (
	"context"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/connectivity"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
)

// Scheduler drives drains: one immediately on every offline-to-online
// transition and one per interval while online, for items whose backoff
// has since elapsed. The queue's own drain lock guarantees a connectivity
// signal arriving mid-drain never starts a second concurrent drain.
type Scheduler struct {
	queue    *Queue
	status   *connectivity.Monitor
	interval time.Duration
	log      logging.Logger
}

func NewScheduler(queue *Queue, status *connectivity.Monitor, interval time.Duration, log logging.Logger) *Scheduler {
	return &Scheduler{queue: queue, status: status, interval: interval, log: log}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	transitions := s.status.Watch()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case st := <-transitions:
			if st == connectivity.StatusOnline {
				s.drain(ctx)
			}
		case <-ticker.C:
			if s.status.Now() == connectivity.StatusOnline {
				s.drain(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	outcomes, err := s.queue.Drain(ctx)
	if err != nil {
		s.log.Error(ctx, "drain failed", "error", err)
		return
	}
	if len(outcomes) > 0 {
		counts := map[string]int{}
		for _, o := range outcomes {
			counts[o.Kind.String()]++
		}
		s.log.Info(ctx, "drain finished", "outcomes", counts)
	}
}
