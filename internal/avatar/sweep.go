package avatar

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatwire/chatwire/internal/pipeline"
)

// Lister enumerates contacts whose avatar is stale.
type Lister interface {
	ListStaleAvatars(ctx context.Context, cutoff time.Time, limit int) ([]pipeline.Contact, error)
}

// Scheduler re-enqueues avatar fetches; satisfied by Dispatcher.
type Scheduler interface {
	ScheduleAvatarFetch(ctx context.Context, contactID, identifier string) error
}

// Sweeper periodically re-enqueues avatar fetches for contacts whose
// avatar is older than maxAge.
type Sweeper struct {
	logger    *slog.Logger
	lister    Lister
	scheduler Scheduler
	maxAge    time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

const sweepBatchSize = 100

func NewSweeper(log *slog.Logger, lister Lister, scheduler Scheduler, maxAge time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		logger:    log.With(slog.String("component", "avatar_sweep")),
		lister:    lister,
		scheduler: scheduler,
		maxAge:    maxAge,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start registers the sweep on the given cron schedule and starts the
// cron runner. An empty schedule disables the sweep.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep enqueues one batch of stale contacts.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.maxAge)
	contacts, err := s.lister.ListStaleAvatars(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Warn("stale avatar listing failed", slog.String("error", err.Error()))
		return
	}
	for _, c := range contacts {
		if c.Identifier == "" {
			continue
		}
		if err := s.scheduler.ScheduleAvatarFetch(ctx, c.ID, c.Identifier); err != nil {
			s.logger.Debug("avatar re-enqueue failed",
				slog.String("contact_id", c.ID),
				slog.String("error", err.Error()))
		}
	}
	if len(contacts) > 0 {
		s.logger.Info("avatar sweep enqueued", slog.Int("count", len(contacts)))
	}
}
