package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JustADataConstruct/TermRSS/internal/filter"
	"github.com/JustADataConstruct/TermRSS/internal/model"
	"github.com/JustADataConstruct/TermRSS/internal/storage"
)

// ReadRequest selects what Read displays.
type ReadRequest struct {
	Name       string
	All        bool
	Categories []string
}

// Read renders cached entries through the pager and marks the shown feeds
// as read. Without All or a Name only feeds with unread entries are shown.
func (r *Reader) Read(ctx context.Context, req ReadRequest) error {
	keys, all, err := r.selectFeeds(ctx, req.Name, filter.Criteria{
		Categories: req.Categories,
		UnreadOnly: !req.All && req.Name == "",
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		r.render.Info(r.out, "No new entries on any feed. Run read -a to see all past entries.")
		return nil
	}

	var (
		b     strings.Builder
		shown []string
	)
	for _, key := range keys {
		feed := all[key]
		doc, err := r.cache.Load(ctx, key)
		if errors.Is(err, storage.ErrKeyNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
			r.log.WarnContext(ctx, "no cached document", "feed", key)
			continue
		}
		if err != nil {
			return fmt.Errorf("load cache %s: %w", key, err)
		}

		b.WriteString(r.render.Header(key, feed.URL))
		for _, e := range doc.Entries {
			b.WriteString(r.render.Entry(e, r.text.ToText(e.Summary), e.NewerThan(feed.LastRead.Time)))
		}
		shown = append(shown, key)
	}
	if len(shown) == 0 {
		r.render.Info(r.out, "No cached entries to show. Run update to fetch them.")
		return nil
	}

	if err := r.markRead(ctx, shown); err != nil {
		return err
	}

	b.WriteString("\n['Q' to exit]\n")
	return r.pager.Page(ctx, b.String())
}

// Clear marks feeds as read without displaying them.
func (r *Reader) Clear(ctx context.Context, name string, cats []string) error {
	keys, _, err := r.selectFeeds(ctx, name, filter.Criteria{Categories: cats})
	if err != nil {
		return err
	}
	if err := r.markRead(ctx, keys); err != nil {
		return err
	}
	r.render.OK(r.out, "Feeds cleared!")
	r.reloadWorker(ctx)
	return nil
}

// selectFeeds loads the store and applies crit, restricted to name when set.
func (r *Reader) selectFeeds(ctx context.Context, name string, crit filter.Criteria) ([]string, map[string]model.Feed, error) {
	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	if name != "" {
		if _, ok := all[model.Key(name)]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrFeedNotFound, model.Key(name))
		}
		crit.Names = []string{name}
	}
	return filter.Select(all, crit), all, nil
}

func (r *Reader) markRead(ctx context.Context, keys []string) error {
	read := model.NewTimestamp(r.now())
	for _, key := range keys {
		err := r.feeds.Update(ctx, key, func(f *model.Feed) error {
			f.LastRead = read
			f.Unread = 0
			return nil
		})
		if err != nil {
			return fmt.Errorf("mark %s read: %w", key, err)
		}
	}
	return nil
}
