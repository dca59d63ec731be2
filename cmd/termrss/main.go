package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/JustADataConstruct/TermRSS/internal/config"
	"github.com/JustADataConstruct/TermRSS/internal/control"
	"github.com/JustADataConstruct/TermRSS/internal/daemon"
	"github.com/JustADataConstruct/TermRSS/internal/fetcher"
	"github.com/JustADataConstruct/TermRSS/internal/filter"
	"github.com/JustADataConstruct/TermRSS/internal/htmltext"
	"github.com/JustADataConstruct/TermRSS/internal/logger"
	"github.com/JustADataConstruct/TermRSS/internal/reader"
	"github.com/JustADataConstruct/TermRSS/internal/refresh"
	"github.com/JustADataConstruct/TermRSS/internal/render"
	"github.com/JustADataConstruct/TermRSS/internal/storage"
)

const workerBinary = "termrss-worker"

const usage = `Usage: termrss <command> [flags]

Commands:
  add -n NAME -u URL [-c cat1,cat2] [-f] [-y]   Subscribe to a feed
  remove -n NAME                                Unsubscribe from a feed
  show [-c cats]                                List subscriptions
  update [-c cats] [-r]                         Check feeds for new entries
  read [-n NAME] [-a] [-c cats]                 Read cached entries
  clear [-n NAME] [-c cats]                     Mark entries as read
  import -u PATH_OR_URL [-y]                    Import an OPML file
  start                                         Start the background updater
  stop                                          Stop the background updater
  status                                        Show background updater status
  help                                          Show this message
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 1
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(os.Stdout)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir, err := config.Dir()
	if err != nil {
		slog.Error("locate data directory", "error", err)
		return 1
	}
	cfg, err := config.Load(ctx, dir)
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}

	log := logger.New(os.Stderr, cfg.LogLevel)
	rend := render.New(cfg.EnableColorOutput)

	stores, err := storage.Open(cfg.StoreBackend, cfg.DataDir, cfg.DatabasePath)
	if err != nil {
		log.Error("open stores", "backend", cfg.StoreBackend, "error", err)
		return 1
	}
	defer func() { _ = stores.Close() }()

	rd, err := newReader(cfg, stores, rend, log)
	if err != nil {
		log.Error("create reader", "error", err)
		return 1
	}

	if err := dispatch(ctx, rd, args[0], args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		rend.Error(os.Stderr, "%v", err)
		return 1
	}
	return 0
}

func newReader(cfg *config.Config, stores *storage.Stores, rend *render.Renderer, log *slog.Logger) (*reader.Reader, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	worker := daemon.NewManager(cfg.DataDir, filepath.Join(filepath.Dir(exe), workerBinary), "-home", cfg.DataDir)

	client := fetcher.NewHTTPClient(cfg.HTTPTimeout())
	f := fetcher.New(client, fetcher.WithRetries(cfg.FetchRetries, 500*time.Millisecond))

	return reader.New(reader.Deps{
		Feeds:    stores.Feeds,
		Cache:    stores.Cache,
		Engine:   refresh.New(f, stores.Cache, cfg.Interval(), log),
		Fetcher:  f,
		Render:   rend,
		Text:     htmltext.NewConverter(0),
		Pager:    reader.NewLessPager(os.Stdout),
		Worker:   worker,
		Control:  control.NewClient(cfg.ControlAddr),
		HTTP:     &http.Client{Timeout: cfg.HTTPTimeout()},
		In:       os.Stdin,
		Out:      os.Stdout,
		Log:      log,
		Interval: cfg.Interval(),
	}), nil
}

func dispatch(ctx context.Context, rd *reader.Reader, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		name    = fs.String("n", "", "feed name")
		url     = fs.String("u", "", "feed url, or OPML path or url for import")
		cats    = fs.String("c", "", "comma-separated categories")
		force   = fs.Bool("f", false, "add a feed even when no entries are detected")
		yes     = fs.Bool("y", false, "answer yes to confirmations")
		all     = fs.Bool("a", false, "read every cached entry")
		recheck = fs.Bool("r", false, "ignore the refresh interval and cached validators")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	categories := filter.SplitList(*cats)

	switch cmd {
	case "add":
		return rd.Add(ctx, reader.AddRequest{Name: *name, URL: *url, Categories: categories, Force: *force, Yes: *yes})
	case "remove":
		if *name == "" {
			return errors.New("remove requires -n NAME")
		}
		return rd.Remove(ctx, *name)
	case "show":
		return rd.Show(ctx, categories)
	case "update":
		return rd.Update(ctx, categories, *recheck)
	case "read":
		return rd.Read(ctx, reader.ReadRequest{Name: *name, All: *all, Categories: categories})
	case "clear":
		return rd.Clear(ctx, *name, categories)
	case "import":
		if *url == "" {
			return errors.New("import requires -u PATH_OR_URL")
		}
		return rd.Import(ctx, *url, *yes)
	case "start":
		return rd.Start(ctx)
	case "stop":
		return rd.Stop(ctx)
	case "status":
		return rd.Status(ctx)
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, usage)
}
