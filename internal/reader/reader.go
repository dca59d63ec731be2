// Package reader implements the interactive commands of the terminal client.
package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JustADataConstruct/TermRSS/internal/control"
	"github.com/JustADataConstruct/TermRSS/internal/htmltext"
	"github.com/JustADataConstruct/TermRSS/internal/refresh"
	"github.com/JustADataConstruct/TermRSS/internal/render"
	"github.com/JustADataConstruct/TermRSS/internal/storage"
)

var (
	// ErrFeedNotFound is returned for commands naming an unknown feed.
	ErrFeedNotFound = errors.New("feed not found")
	// ErrNoEntries is returned by Add when the probed feed is empty.
	ErrNoEntries = errors.New("no entries detected")
	// ErrAborted is returned when the user declines a confirmation.
	ErrAborted = errors.New("aborted")
)

// Worker controls the background updater process.
type Worker interface {
	Start() (int, error)
	Stop() (int, error)
	Running() (int, bool)
}

// Control talks to a running background updater.
type Control interface {
	Reload(ctx context.Context) error
	Status(ctx context.Context) (control.StatusResponse, error)
}

// Deps are the collaborators of a Reader.
type Deps struct {
	Feeds    *storage.FeedStore
	Cache    *storage.CacheStore
	Engine   *refresh.Engine
	Fetcher  refresh.Fetcher
	Render   *render.Renderer
	Text     *htmltext.Converter
	Pager    Pager
	Worker   Worker
	Control  Control
	HTTP     *http.Client
	In       io.Reader
	Out      io.Writer
	Log      *slog.Logger
	Now      func() time.Time
	Interval time.Duration

	// ReadyTimeout bounds how long Start waits for a new worker to answer
	// on the control channel. Defaults to 5s.
	ReadyTimeout time.Duration
}

// Reader runs interactive commands against the stores.
type Reader struct {
	feeds    *storage.FeedStore
	cache    *storage.CacheStore
	engine   *refresh.Engine
	fetcher  refresh.Fetcher
	render   *render.Renderer
	text     *htmltext.Converter
	pager    Pager
	worker   Worker
	control  Control
	http     *http.Client
	in       *bufio.Reader
	out      io.Writer
	log      *slog.Logger
	now      func() time.Time
	interval time.Duration
	ready    time.Duration
}

// New creates a Reader.
func New(d Deps) *Reader {
	r := &Reader{
		feeds:    d.Feeds,
		cache:    d.Cache,
		engine:   d.Engine,
		fetcher:  d.Fetcher,
		render:   d.Render,
		text:     d.Text,
		pager:    d.Pager,
		worker:   d.Worker,
		control:  d.Control,
		http:     d.HTTP,
		in:       bufio.NewReader(d.In),
		out:      d.Out,
		log:      d.Log,
		now:      d.Now,
		interval: d.Interval,
		ready:    d.ReadyTimeout,
	}
	if r.ready <= 0 {
		r.ready = 5 * time.Second
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.text == nil {
		r.text = htmltext.NewConverter(0)
	}
	if r.http == nil {
		r.http = http.DefaultClient
	}
	return r
}

// ask prints question and returns the lower-cased answer.
func (r *Reader) ask(question string) (string, error) {
	r.render.Info(r.out, "%s", question)
	line, err := r.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// reloadWorker asks a running background updater to pick up store changes.
func (r *Reader) reloadWorker(ctx context.Context) {
	if r.worker == nil || r.control == nil {
		return
	}
	if _, ok := r.worker.Running(); !ok {
		return
	}
	if err := r.control.Reload(ctx); err != nil {
		r.log.WarnContext(ctx, "reload background updater", "error", err)
	}
}
