package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustADataConstruct/TermRSS/internal/filter"
	"github.com/JustADataConstruct/TermRSS/internal/model"
	"github.com/JustADataConstruct/TermRSS/internal/storage"
)

// FeedStore is the subset of the feed store a sweep needs.
type FeedStore interface {
	All(ctx context.Context) (map[string]model.Feed, error)
	Update(ctx context.Context, name string, fn func(*model.Feed) error) error
}

// SweepOptions configures a pass over all feeds.
type SweepOptions struct {
	Categories []string
	Force      bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// ReportFunc receives the result of every feed visited by a sweep.
// err is set for per-feed failures, which do not stop the sweep.
type ReportFunc func(name string, out Outcome, err error)

var (
	errUnchanged = errors.New("record unchanged")
	errPanic     = errors.New("check panicked")
)

// Sweep checks every feed in the store sequentially, persisting each record
// right after its check. All feeds of one sweep are checked against the same
// instant, so fetch latency never pushes a later feed past the next tick.
// It stops early only when ctx is done or the store cannot be written.
// A missing store is treated as empty.
func (e *Engine) Sweep(ctx context.Context, feeds FeedStore, opts SweepOptions, report ReportFunc) error {
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	t := clock()

	all, err := feeds.All(ctx)
	if errors.Is(err, storage.ErrStoreNotFound) {
		e.log.WarnContext(ctx, "feed store not found, nothing to refresh", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load feeds: %w", err)
	}

	for _, name := range filter.Select(all, filter.Criteria{Categories: opts.Categories}) {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			out      Outcome
			checkErr error
		)
		err := feeds.Update(ctx, name, func(rec *model.Feed) (err error) {
			defer func() {
				if r := recover(); r != nil {
					out = Outcome{Kind: KindFailed}
					checkErr = fmt.Errorf("%w: %v", errPanic, r)
					err = errUnchanged
				}
			}()

			out, checkErr = e.CheckFeed(ctx, name, rec, t, opts.Force)
			if errors.Is(checkErr, ErrPersistence) {
				return checkErr
			}
			if !out.Attempted() {
				return errUnchanged
			}
			rec.LastCheck = model.NewTimestamp(t)
			return nil
		})

		switch {
		case err == nil, errors.Is(err, errUnchanged):
			report(name, out, checkErr)
		case errors.Is(err, storage.ErrKeyNotFound):
			report(name, Outcome{}, err)
		default:
			return fmt.Errorf("refresh %s: %w", name, err)
		}
	}
	return nil
}
