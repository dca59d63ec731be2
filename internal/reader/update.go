package reader

import (
	"context"

	"github.com/JustADataConstruct/TermRSS/internal/refresh"
)

// Update refreshes feeds in the foreground and reports every outcome.
func (r *Reader) Update(ctx context.Context, cats []string, force bool) error {
	r.render.Info(r.out, "Checking for new entries...")

	updated := 0
	opts := refresh.SweepOptions{Categories: cats, Force: force, Now: r.now}
	err := r.engine.Sweep(ctx, r.feeds, opts, func(name string, out refresh.Outcome, err error) {
		if err != nil {
			r.render.Error(r.out, "%s: %v", name, err)
			return
		}
		switch out.Kind {
		case refresh.KindUpdated:
			if out.Delta > 0 {
				updated++
				r.render.OK(r.out, "%s: %d update(s)", name, out.Delta)
			}
			if out.Malformed {
				r.render.Info(r.out, "%s: some entries have no publication date.", name)
			}
		case refresh.KindInvalid:
			r.log.DebugContext(ctx, "skipping feed", "feed", name, "error", out.Err())
			r.render.Error(r.out, "%s is no longer valid and will not be updated. Please remove it from your list.", name)
		case refresh.KindGone:
			r.render.Error(r.out, "%s is gone and will no longer be updated.", name)
		case refresh.KindMoved:
			r.render.Info(r.out, "%s moved to %s", name, out.NewURL)
		case refresh.KindNotFound:
			r.render.Error(r.out, "%s: feed not found (status %d).", name, out.Status)
		case refresh.KindUnhandled:
			r.render.Error(r.out, "%s: unexpected status %d.", name, out.Status)
		}
	})
	if err != nil {
		return err
	}

	if updated == 0 {
		r.render.Info(r.out, "No new entries.")
	}
	return nil
}
