package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/cache"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/config"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/event"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/feed"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/fleet"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/server"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/store"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/version"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/ws"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("EIMS server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database.
	dbPath := cfg.GetString("database.path")
	if dbPath == "" {
		dbPath = "eims.db"
	}
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database version check failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Shared event bus: push channel and poller publish invalidation
	// topics, the cache and websocket handler consume them.
	bus := event.NewBus(logger.Named("event"))

	// Status bucket mapping, with optional config overrides.
	buckets, err := fleet.BucketMapFromConfig(cfg.GetStringMapString("fleet.status_buckets"))
	if err != nil {
		logger.Fatal("invalid status bucket configuration", zap.Error(err))
	}
	agg := fleet.NewAggregator(buckets, logger.Named("fleet"))

	fleetStore, err := fleet.NewStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize fleet store", zap.Error(err))
	}

	// Cache coordinator. Refresh notifications fan out on the bus so the
	// websocket layer can push without polling.
	coord := cache.New(cache.Options{
		FetchTimeout: cfg.GetDuration("cache.fetch_timeout"),
		RetryBase:    cfg.GetDuration("cache.retry_base"),
		RetryMax:     cfg.GetDuration("cache.retry_max"),
		OnRefresh: func(key string) {
			if topic := fleet.RefreshTopic(key); topic != "" {
				bus.PublishAsync(ctx, event.Event{
					Topic:     topic,
					Source:    "cache",
					Timestamp: time.Now(),
				})
			}
		},
		Logger: logger.Named("cache"),
	})
	defer coord.Close()

	// Backend feed: REST client for snapshot pulls.
	backend := feed.NewClient(
		cfg.GetString("feed.base_url"),
		cfg.GetDuration("feed.fetch_timeout"),
	)

	svc, err := fleet.NewService(ctx, backend, coord, agg, fleetStore, logger.Named("fleet"))
	if err != nil {
		logger.Fatal("failed to initialize fleet service", zap.Error(err))
	}
	coord.BindBus(bus)
	logger.Info("fleet service initialized", zap.String("component", "fleet"))

	// Live update channel from the backend, with the fixed-interval
	// poller as consistency backstop.
	stream := feed.NewStream(
		cfg.GetString("feed.push_url"),
		bus,
		cfg.GetDuration("feed.reconnect_max_backoff"),
		logger.Named("feed"),
	)
	stream.Start(ctx)
	defer stream.Stop()

	poller := feed.NewPoller(coord, bus, cfg.GetDuration("feed.poll_interval"), logger.Named("poller"))
	poller.Start(ctx)
	defer poller.Stop()

	// WebSocket push to dashboard clients.
	wsHandler := ws.NewHandler(svc, bus, logger.Named("ws"))
	fleetHandler := fleet.NewHandler(svc, logger.Named("fleet"))

	addr := cfg.GetString("server.host") + ":" + cfg.GetString("server.port")
	if addr == ":" {
		addr = "0.0.0.0:8080"
	}
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, logger.Named("server"), readyCheck, fleetHandler, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("EIMS server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	poller.Stop()
	stream.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("EIMS server stopped")
}
