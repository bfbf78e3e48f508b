// Command feedsiftd runs the feed filtering daemon: it polls the configured
// feed sources, classifies item text, hides suppressed items, and serves the
// management HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"feedsift/internal/classify"
	"feedsift/internal/config"
	"feedsift/internal/daemon"
	"feedsift/internal/decision"
	"feedsift/internal/detectcache"
	"feedsift/internal/feed"
	"feedsift/internal/logging"
	"feedsift/internal/metrics"
	"feedsift/internal/oracle"
	"feedsift/internal/scheduler"
	"feedsift/internal/store"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewWithFile(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, cfg.LogPath())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}

	tags, err := classify.NewTagPair(cfg.Classifier.ProtectedLanguage, cfg.Classifier.SuppressedLanguage)
	if err != nil {
		log.Fatalf("language configuration: %v", err)
	}

	m := metrics.New()
	detector := oracle.NewHTTPDetector(cfg.Oracle, logger)
	cache := detectcache.New(st, logger, m)
	classifier := classify.New(cache, detector, tags, logger, m)
	engine := decision.NewEngine(classifier, detector, tags, logger)
	view := feed.NewRSSView(cfg.Feed, logger)
	sched := scheduler.New(cfg.Scheduler, view, view, engine, st, logger, m)

	d, err := daemon.New(cfg, st, view, sched, cache, m, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("feedsiftd shutting down")
}
