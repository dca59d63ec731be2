package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JustADataConstruct/TermRSS/internal/fetcher"
	"github.com/JustADataConstruct/TermRSS/internal/filter"
	"github.com/JustADataConstruct/TermRSS/internal/model"
	"github.com/JustADataConstruct/TermRSS/internal/opml"
	"github.com/JustADataConstruct/TermRSS/internal/refresh"
	"github.com/JustADataConstruct/TermRSS/internal/storage"
)

const importConcurrency = 4

// AddRequest describes a new subscription.
type AddRequest struct {
	Name       string
	URL        string
	Categories []string
	// Force adds the feed even when no entries were found.
	Force bool
	// Yes answers the malformed-feed confirmation.
	Yes bool
}

// Add probes the feed and stores its record and first document.
func (r *Reader) Add(ctx context.Context, req AddRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.URL) == "" {
		return errors.New("add requires a name and a url")
	}

	url, resp, err := r.probe(ctx, req.URL)
	if err != nil {
		return fmt.Errorf("parse feed %s: %w", name, err)
	}
	if resp.Document == nil && !req.Force {
		return fmt.Errorf("parse feed %s: unexpected status %d", name, resp.Status)
	}
	if entryCount(resp) == 0 && !req.Force {
		return fmt.Errorf("%w on feed %s. Please make sure this URL is a valid feed. "+
			"If you are sure the URL is correct, repeat the add command with the '-f' flag to force-add it", ErrNoEntries, name)
	}

	if resp.Malformed && !req.Yes {
		answer, err := r.ask("A problem was detected with your feed: some entries have no publication date. " +
			"You may find problems when reading its entries. Do you want to add it? [Y]es/[N]o")
		if err != nil {
			return err
		}
		if answer == "n" || answer == "no" {
			return ErrAborted
		}
	}

	if err := r.store(ctx, name, url, resp, req.Categories); err != nil {
		return err
	}
	r.render.OK(r.out, "Feed %s added!", name)
	r.reloadWorker(ctx)
	return nil
}

// probe fetches url unconditionally, following one permanent redirect.
func (r *Reader) probe(ctx context.Context, rawURL string) (string, *fetcher.Response, error) {
	url := fetcher.NormalizeURL(rawURL)
	resp, err := r.fetcher.Fetch(ctx, url, fetcher.Validators{})
	if err != nil {
		return url, nil, err
	}
	if refresh.Classify(resp.Status) == refresh.ClassRedirect {
		url = resp.Location
		r.log.DebugContext(ctx, "feed moved permanently", "url", url)
		resp, err = r.fetcher.Fetch(ctx, url, fetcher.Validators{})
		if err != nil {
			return url, nil, err
		}
	}
	return url, resp, nil
}

func (r *Reader) store(ctx context.Context, name, url string, resp *fetcher.Response, cats []string) error {
	var doc model.Document
	if resp.Document != nil {
		doc = *resp.Document
	}
	if cats == nil {
		cats = []string{}
	}
	rec := model.Feed{
		URL:          url,
		LastCheck:    model.Epoch,
		LastRead:     model.Epoch,
		Categories:   cats,
		ETag:         resp.ETag,
		LastModified: resp.LastModified,
		Unread:       len(doc.Entries),
		Valid:        true,
	}
	if err := r.feeds.Save(ctx, name, rec); err != nil {
		return fmt.Errorf("save feed %s: %w", model.Key(name), err)
	}
	if err := r.cache.Save(ctx, name, doc); err != nil {
		return fmt.Errorf("save cache %s: %w", model.Key(name), err)
	}
	return nil
}

func entryCount(resp *fetcher.Response) int {
	if resp.Document == nil {
		return 0
	}
	return len(resp.Document.Entries)
}

// Remove deletes a feed and its cached document.
func (r *Reader) Remove(ctx context.Context, name string) error {
	if _, err := r.lookup(ctx, name); err != nil {
		return err
	}
	if err := r.feeds.Remove(ctx, name); err != nil {
		return fmt.Errorf("remove feed %s: %w", model.Key(name), err)
	}
	if err := r.cache.Remove(ctx, name); err != nil {
		return fmt.Errorf("remove cache %s: %w", model.Key(name), err)
	}
	r.render.OK(r.out, "Feed removed!")
	r.reloadWorker(ctx)
	return nil
}

// lookup loads one feed, mapping missing keys and stores to ErrFeedNotFound.
func (r *Reader) lookup(ctx context.Context, name string) (model.Feed, error) {
	feed, err := r.feeds.Load(ctx, name)
	if errors.Is(err, storage.ErrKeyNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return model.Feed{}, fmt.Errorf("%w: %s", ErrFeedNotFound, model.Key(name))
	}
	if err != nil {
		return model.Feed{}, fmt.Errorf("load feed %s: %w", model.Key(name), err)
	}
	return feed, nil
}

// loadAll returns every feed; a missing store is an empty one.
func (r *Reader) loadAll(ctx context.Context) (map[string]model.Feed, error) {
	all, err := r.feeds.All(ctx)
	if errors.Is(err, storage.ErrStoreNotFound) {
		return map[string]model.Feed{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	return all, nil
}

// Show lists the stored feeds, optionally restricted to categories.
func (r *Reader) Show(ctx context.Context, cats []string) error {
	all, err := r.loadAll(ctx)
	if err != nil {
		return err
	}

	keys := filter.Select(all, filter.Criteria{Categories: cats})
	if len(keys) == 0 {
		r.render.Info(r.out, "No feeds found. Use add -n NAME -u URL to subscribe to one.")
		return nil
	}

	for _, key := range keys {
		f := all[key]
		r.render.Info(r.out, "%s: %s", key, f.URL)
		fmt.Fprintf(r.out, "Last checked: %s. Last read: %s\n", f.LastCheck, f.LastRead)
		fmt.Fprintf(r.out, "Unread entries: %d\n", f.Unread)
		fmt.Fprintf(r.out, "Categories: %s\n", strings.Join(f.Categories, ", "))
		if !f.Valid {
			r.render.Error(r.out, "WARNING: This feed is no longer valid and will not be updated.")
		}
		fmt.Fprintln(r.out)
	}
	return nil
}

type probeResult struct {
	url  string
	resp *fetcher.Response
	err  error
}

// Import subscribes to every feed of an OPML list after confirmation.
func (r *Reader) Import(ctx context.Context, source string, yes bool) error {
	list, err := opml.Load(ctx, r.http, source)
	if err != nil {
		return err
	}
	title := list.Title
	if title == "" {
		title = source
	}

	answer := "y"
	if !yes {
		answer, err = r.ask(fmt.Sprintf("Do you want to import %d feeds from %s? [y]es/[n]o/[v]iew", len(list.Feeds), title))
		if err != nil {
			return err
		}
	}
	switch answer {
	case "v", "view":
		for _, f := range list.Feeds {
			fmt.Fprintf(r.out, "%s : %s\n", f.Title, f.URL)
		}
		return nil
	case "y", "yes":
	default:
		return ErrAborted
	}

	results := make([]probeResult, len(list.Feeds))
	var g errgroup.Group
	g.SetLimit(importConcurrency)
	for i, f := range list.Feeds {
		i, f := i, f
		g.Go(func() error {
			url, resp, err := r.probe(ctx, f.URL)
			results[i] = probeResult{url: url, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	imported := 0
	for i, f := range list.Feeds {
		name := f.Title
		if name == "" {
			name = f.URL
		}
		res := results[i]
		switch {
		case res.err != nil:
			r.render.Error(r.out, "Something went wrong when importing %s!: %v", name, res.err)
			continue
		case entryCount(res.resp) == 0:
			r.render.Error(r.out, "No entries detected on feed %s, skipping.", name)
			continue
		}
		if err := r.store(ctx, name, res.url, res.resp, f.Categories); err != nil {
			return err
		}
		imported++
	}

	r.render.OK(r.out, "%d feed(s) imported successfully.", imported)
	if imported > 0 {
		r.reloadWorker(ctx)
	}
	return nil
}
