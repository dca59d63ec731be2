// Package refresh decides when a feed is fetched again, performs the
// conditional fetch and applies the origin's answer to the feed record.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JustADataConstruct/TermRSS/internal/fetcher"
	"github.com/JustADataConstruct/TermRSS/internal/logger"
	"github.com/JustADataConstruct/TermRSS/internal/model"
)

var (
	// ErrInvalidFeed describes a record that is no longer refreshed.
	ErrInvalidFeed = errors.New("feed is no longer valid")
	// ErrPersistence wraps failures to write the cache document.
	ErrPersistence = errors.New("persistence failure")

	errUnknownClass = errors.New("unknown response class")
)

// Fetcher is the feed-fetch collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, url string, v fetcher.Validators) (*fetcher.Response, error)
}

// DocumentSaver persists a fetched document under a feed name.
type DocumentSaver interface {
	Save(ctx context.Context, name string, doc model.Document) error
}

// Engine applies the refresh policy to feed records.
type Engine struct {
	fetcher  Fetcher
	cache    DocumentSaver
	interval time.Duration
	log      *slog.Logger
}

// New creates an Engine that refetches a feed at most once per interval.
func New(f Fetcher, cache DocumentSaver, interval time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		fetcher:  f,
		cache:    cache,
		interval: interval,
		log:      log,
	}
}

// Interval returns the minimum time between two fetches of a feed.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// CheckFeed refreshes rec if it is due (or force is set) and mutates it
// according to the response. It never touches rec.LastCheck; advancing it
// for attempted outcomes is the caller's job.
func (e *Engine) CheckFeed(ctx context.Context, name string, rec *model.Feed, now time.Time, force bool) (Outcome, error) {
	ctx = logger.Ctx(ctx, slog.String("feed", model.Key(name)))

	if !rec.Valid {
		e.log.DebugContext(ctx, "skipping invalid feed")
		return Outcome{Kind: KindInvalid}, nil
	}

	if elapsed := now.Sub(rec.LastCheck.Time); elapsed < e.interval && !force {
		e.log.DebugContext(ctx, "checked recently", "elapsed", elapsed.Round(time.Second))
		return Outcome{Kind: KindTooSoon, Unread: rec.Unread}, nil
	}

	var v fetcher.Validators
	if !force {
		v = fetcher.Validators{ETag: rec.ETag, LastModified: rec.LastModified}
	}

	e.log.DebugContext(ctx, "fetching feed", "url", rec.URL, "conditional", v != fetcher.Validators{})
	resp, err := e.fetcher.Fetch(ctx, rec.URL, v)
	if err != nil {
		return Outcome{Kind: KindFailed}, fmt.Errorf("fetch %s: %w", rec.URL, err)
	}

	out, err := e.apply(ctx, name, rec, resp)
	if err != nil {
		return out, err
	}
	e.log.DebugContext(ctx, "refreshed feed", "outcome", out.Kind, "status", out.Status, "delta", out.Delta)
	return out, nil
}

func (e *Engine) apply(ctx context.Context, name string, rec *model.Feed, resp *fetcher.Response) (Outcome, error) {
	out := Outcome{Status: resp.Status}

	switch class := Classify(resp.Status); class {
	case ClassNotFound:
		out.Kind = KindNotFound

	case ClassGone:
		rec.Valid = false
		out.Kind = KindGone

	case ClassRedirect:
		if resp.Location == "" {
			return Outcome{Kind: KindFailed, Status: resp.Status}, fmt.Errorf("%w: status %d without location", fetcher.ErrParse, resp.Status)
		}
		rec.URL = resp.Location
		out.Kind = KindMoved
		out.NewURL = resp.Location

	case ClassNotModified:
		out.Kind = KindNotModified
		out.Unread = rec.Unread

	case ClassSuccess:
		if resp.Document == nil {
			return Outcome{Kind: KindFailed, Status: resp.Status}, fmt.Errorf("%w: status %d without document", fetcher.ErrParse, resp.Status)
		}
		delta := resp.Document.CountNewer(rec.LastCheck.Time)
		if err := e.cache.Save(ctx, name, *resp.Document); err != nil {
			return Outcome{Kind: KindFailed, Status: resp.Status}, fmt.Errorf("%w: save cache: %w", ErrPersistence, err)
		}
		rec.ETag = resp.ETag
		rec.LastModified = resp.LastModified
		rec.Unread += delta
		out.Kind = KindUpdated
		out.Delta = delta
		out.Malformed = resp.Malformed

	case ClassUnhandled:
		out.Kind = KindUnhandled

	default:
		return Outcome{Kind: KindFailed, Status: resp.Status}, fmt.Errorf("%w %d for status %d", errUnknownClass, class, resp.Status)
	}

	return out, nil
}
