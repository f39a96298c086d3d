// Package avatar fetches contact avatars from the gateway in the
// background. Fetches are fire and forget: webhook processing never waits
// on one and never fails because of one.
package avatar

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Fetcher resolves an avatar URL for a contact identifier.
type Fetcher interface {
	AvatarURL(ctx context.Context, identifier string) (string, error)
}

// Store persists fetched avatars.
type Store interface {
	SetAvatar(ctx context.Context, contactID, avatarURL string, fetchedAt time.Time) error
}

type job struct {
	contactID  string
	identifier string
}

// Dispatcher runs a small worker pool draining a bounded queue of avatar
// fetch jobs.
type Dispatcher struct {
	logger  *slog.Logger
	fetcher Fetcher
	store   Store
	workers int
	jobs    chan job
	wg      sync.WaitGroup
	now     func() time.Time

	mu      sync.Mutex
	started bool
	closed  bool
}

const queueSize = 256

func NewDispatcher(log *slog.Logger, fetcher Fetcher, store Store, workers int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		logger:  log.With(slog.String("component", "avatar")),
		fetcher: fetcher,
		store:   store,
		workers: workers,
		jobs:    make(chan job, queueSize),
		now:     time.Now,
	}
}

// Start launches the worker pool. ctx bounds each individual fetch, not the
// pool's lifetime; use Stop to drain and shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop closes the queue and waits for in-flight fetches to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

// ScheduleAvatarFetch enqueues a fetch for the contact. A full queue drops
// the job; a later webhook or the periodic sweep will retry.
func (d *Dispatcher) ScheduleAvatarFetch(_ context.Context, contactID, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	select {
	case d.jobs <- job{contactID: contactID, identifier: identifier}:
	default:
		d.logger.Debug("avatar queue full, dropping fetch",
			slog.String("contact_id", contactID))
	}
	return nil
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.fetch(ctx, j)
	}
}

func (d *Dispatcher) fetch(ctx context.Context, j job) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	avatarURL, err := d.fetcher.AvatarURL(fetchCtx, j.identifier)
	if err != nil {
		d.logger.Debug("avatar fetch failed",
			slog.String("contact_id", j.contactID),
			slog.String("error", err.Error()))
		return
	}
	// An empty URL is still saved: the fetch timestamp makes the sweep
	// back off from contacts that simply have no avatar.
	if err := d.store.SetAvatar(fetchCtx, j.contactID, avatarURL, d.now().UTC()); err != nil {
		d.logger.Warn("avatar save failed",
			slog.String("contact_id", j.contactID),
			slog.String("error", err.Error()))
	}
}
