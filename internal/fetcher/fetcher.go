// Package fetcher performs conditional feed retrieval and hands the body to
// the feed parser.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"github.com/JustADataConstruct/TermRSS/internal/model"
)

const (
	userAgent    = "TermRSS/1.0"
	maxBodySize  = 5 * 1024 * 1024
	maxRedirects = 5
)

var (
	// ErrNetwork wraps transport failures.
	ErrNetwork = errors.New("network error")
	// ErrParse wraps failures to interpret a successful response.
	ErrParse = errors.New("parse error")
)

// HTTPClient is the interface for performing HTTP requests.
// Implementations must not follow redirects on their own.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client that reports redirects instead of following them.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Validators are the conditional-request tokens echoed back to the origin.
type Validators struct {
	ETag         string
	LastModified string
}

// Response is the outcome of a single fetch.
type Response struct {
	Status       int
	ETag         string
	LastModified string
	// Location is the new address of a permanently moved feed.
	Location string
	// Document is set only for 200 and followed temporary redirects (302).
	Document *model.Document
	// Malformed reports a document whose entries lack usable dates.
	Malformed bool
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client  HTTPClient
	parser  *gofeed.Parser
	retries uint64
	backoff time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRetries sets how many times a transport error is retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(f *Fetcher) {
		if n < 0 {
			n = 0
		}
		f.retries = uint64(n)
		f.backoff = backoff
	}
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  client,
		parser:  gofeed.NewParser(),
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. Non-empty validators make the request conditional.
// Temporary redirects are followed and reported as 302; permanent ones are
// returned with Location set and no document.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, v Validators) (*Response, error) {
	target := rawURL
	redirected := false

	for hops := 0; ; hops++ {
		resp, err := f.get(ctx, target, v)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
			_ = resp.Body.Close()
			next, err := resolve(target, resp.Header.Get("Location"))
			if err != nil {
				return nil, fmt.Errorf("%w: redirect from %s: %w", ErrParse, target, err)
			}
			if hops >= maxRedirects {
				return nil, fmt.Errorf("%w: too many redirects from %s", ErrNetwork, rawURL)
			}
			target = next
			redirected = true
			continue
		}

		return f.finish(resp, target, redirected)
	}
}

func (f *Fetcher) finish(resp *http.Response, target string, redirected bool) (*Response, error) {
	defer func() { _ = resp.Body.Close() }()

	out := &Response{
		Status:       resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusPermanentRedirect:
		loc, err := resolve(target, resp.Header.Get("Location"))
		if err != nil {
			return nil, fmt.Errorf("%w: redirect from %s: %w", ErrParse, target, err)
		}
		out.Location = loc
		return out, nil
	case http.StatusOK:
	default:
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
	doc, malformed, err := f.Parse(body)
	if err != nil {
		return nil, err
	}
	out.Document = doc
	out.Malformed = malformed
	if redirected {
		out.Status = http.StatusFound
	}
	return out, nil
}

func (f *Fetcher) get(ctx context.Context, target string, v Validators) (*http.Response, error) {
	var resp *http.Response
	b := retry.WithMaxRetries(f.retries, retry.NewFibonacci(f.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		if v.ETag != "" {
			req.Header.Set("If-None-Match", v.ETag)
		}
		if v.LastModified != "" {
			req.Header.Set("If-Modified-Since", v.LastModified)
		}

		r, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("http get: %w", err))
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp, nil
}

// Parse converts a raw feed body into a Document.
func (f *Fetcher) Parse(body []byte) (*model.Document, bool, error) {
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrParse, err)
	}
	doc, malformed := Convert(feed)
	return doc, malformed, nil
}

// Convert maps a parsed feed onto the cached document shape. The second
// result reports entries without any usable date.
func Convert(feed *gofeed.Feed) (*model.Document, bool) {
	doc := &model.Document{
		Title:   feed.Title,
		Link:    feed.Link,
		Entries: make([]model.Entry, 0, len(feed.Items)),
	}
	malformed := false
	for _, item := range feed.Items {
		e := model.Entry{
			Title:           item.Title,
			Link:            item.Link,
			Summary:         item.Description,
			Published:       item.Published,
			PublishedParsed: item.PublishedParsed,
		}
		if e.Summary == "" {
			e.Summary = item.Content
		}
		if e.PublishedParsed == nil {
			e.Published = item.Updated
			e.PublishedParsed = item.UpdatedParsed
		}
		if e.PublishedParsed == nil {
			malformed = true
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc, malformed
}

// NormalizeURL prefixes scheme-less addresses with http://.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "http://" + raw
}

func resolve(base, location string) (string, error) {
	if location == "" {
		return "", errors.New("missing Location header")
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	return b.ResolveReference(l).String(), nil
}
