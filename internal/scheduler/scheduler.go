package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JustADataConstruct/TermRSS/internal/logger"
	"github.com/JustADataConstruct/TermRSS/internal/refresh"
)

// Notifier delivers a desktop-style notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Status is a snapshot of the scheduler's progress.
type Status struct {
	Interval  time.Duration
	LastSweep time.Time
	Sweeps    int
}

// Scheduler periodically refreshes every feed and notifies about changes.
type Scheduler struct {
	engine     *refresh.Engine
	feeds      refresh.FeedStore
	notifier   Notifier
	log        *slog.Logger
	tick       time.Duration
	categories []string
	reload     chan struct{}
	now        func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates a Scheduler ticking at the engine's refresh interval.
func New(engine *refresh.Engine, feeds refresh.FeedStore, notifier Notifier, log *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		feeds:    feeds,
		notifier: notifier,
		log:      log,
		tick:     engine.Interval(),
		reload:   make(chan struct{}, 1),
		now:      time.Now,
	}
}

// SetTickInterval overrides the default check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetCategories restricts sweeps to feeds in any of cats.
func (s *Scheduler) SetCategories(cats []string) {
	s.categories = cats
}

// Reload requests an immediate sweep. Requests made while one is already
// pending are coalesced.
func (s *Scheduler) Reload() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// Status returns the current progress snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Interval = s.tick
	return st
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		case <-s.reload:
			s.log.Info("reload requested")
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	opts := refresh.SweepOptions{Categories: s.categories, Now: s.now}
	err := s.engine.Sweep(ctx, s.feeds, opts, func(name string, out refresh.Outcome, err error) {
		s.processResult(ctx, name, out, err)
	})

	s.mu.Lock()
	s.status.LastSweep = s.now()
	s.status.Sweeps++
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("sweep feeds", "error", err)
	}
}

func (s *Scheduler) processResult(ctx context.Context, name string, out refresh.Outcome, err error) {
	ctx = logger.Ctx(ctx, slog.String("feed", name))

	if err != nil {
		s.log.ErrorContext(ctx, "refresh feed", "outcome", out.Kind, "error", err)
		return
	}

	var body string
	switch out.Kind {
	case refresh.KindUpdated:
		if out.Malformed {
			s.log.WarnContext(ctx, "feed has undated entries")
		}
		if out.Delta == 0 {
			return
		}
		body = fmt.Sprintf("%d update(s)", out.Delta)
	case refresh.KindInvalid:
		s.log.WarnContext(ctx, "skipping feed", "error", out.Err())
		body = "Invalid feed."
	case refresh.KindGone:
		body = "Feed is gone and will no longer be updated."
	case refresh.KindMoved:
		body = "Feed moved to " + out.NewURL
	case refresh.KindNotFound, refresh.KindUnhandled:
		s.log.WarnContext(ctx, "unexpected response", "outcome", out.Kind, "status", out.Status)
		return
	default:
		s.log.DebugContext(ctx, "feed checked", "outcome", out.Kind)
		return
	}

	s.log.InfoContext(ctx, "sending notification", "outcome", out.Kind, "body", body)
	if err := s.notifier.Notify(ctx, name, body); err != nil {
		s.log.ErrorContext(ctx, "send notification", "error", err)
	}
}
