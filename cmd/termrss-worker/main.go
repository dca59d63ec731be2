package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JustADataConstruct/TermRSS/internal/config"
	"github.com/JustADataConstruct/TermRSS/internal/control"
	"github.com/JustADataConstruct/TermRSS/internal/daemon"
	"github.com/JustADataConstruct/TermRSS/internal/fetcher"
	"github.com/JustADataConstruct/TermRSS/internal/logger"
	"github.com/JustADataConstruct/TermRSS/internal/notify"
	"github.com/JustADataConstruct/TermRSS/internal/refresh"
	"github.com/JustADataConstruct/TermRSS/internal/scheduler"
	"github.com/JustADataConstruct/TermRSS/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	home := flag.String("home", "", "data directory (defaults to $TERMRSS_HOME or the user config directory)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir := *home
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			slog.Error("locate data directory", "error", err)
			return 1
		}
		dir = d
	}

	cfg, err := config.Load(ctx, dir)
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}

	log := logger.New(os.Stderr, cfg.LogLevel)

	ln, err := control.TryListen(cfg.ControlAddr)
	if err != nil {
		log.Error("bind control address", "addr", cfg.ControlAddr, "error", err)
		return 1
	}

	pids := daemon.NewManager(cfg.DataDir, "")
	defer func() {
		if pid, err := pids.ReadPID(); err == nil && pid == os.Getpid() {
			if err := pids.RemovePID(); err != nil {
				log.Warn("remove pid file", "error", err)
			}
		}
	}()

	stores, err := storage.Open(cfg.StoreBackend, cfg.DataDir, cfg.DatabasePath)
	if err != nil {
		_ = ln.Close()
		log.Error("open stores", "backend", cfg.StoreBackend, "error", err)
		return 1
	}
	defer func() { _ = stores.Close() }()

	notifier, err := notify.New(cfg.Notifier, notify.Options{
		TelegramToken:  cfg.TelegramBotToken,
		TelegramChatID: cfg.TelegramChatID,
	}, log)
	if err != nil {
		_ = ln.Close()
		log.Error("create notifier", "kind", cfg.Notifier, "error", err)
		return 1
	}

	f := fetcher.New(fetcher.NewHTTPClient(cfg.HTTPTimeout()), fetcher.WithRetries(cfg.FetchRetries, 500*time.Millisecond))
	engine := refresh.New(f, stores.Cache, cfg.Interval(), log)

	sched := scheduler.New(engine, stores.Feeds, notifier, log)
	sched.SetCategories(cfg.WorkerCategories)
	srv := control.NewServer(sched, log)

	log.Info("starting background updater",
		"pid", os.Getpid(),
		"interval", cfg.Interval(),
		"control_addr", ln.Addr().String(),
		"backend", cfg.StoreBackend,
		"notifier", cfg.Notifier,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("background updater failed", "error", err)
		return 1
	}

	log.Info("background updater stopped")
	return 0
}
