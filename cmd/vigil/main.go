package main

//	@title			Vigil API
//	@version		0.1.0
//	@description	Uptime and heartbeat monitoring with transition alerts.
//	@BasePath		/api/v1

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/vigil/internal/config"
	"github.com/HerbHall/vigil/internal/event"
	"github.com/HerbHall/vigil/internal/monitor"
	"github.com/HerbHall/vigil/internal/notify"
	"github.com/HerbHall/vigil/internal/registry"
	"github.com/HerbHall/vigil/internal/seed"
	"github.com/HerbHall/vigil/internal/server"
	"github.com/HerbHall/vigil/internal/store"
	"github.com/HerbHall/vigil/internal/version"
	"github.com/HerbHall/vigil/internal/ws"
	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds the whole graceful shutdown sequence.
const shutdownGrace = 15 * time.Second

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

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

	logger.Info("Vigil starting", zap.String("version", version.Short()))

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database
	dbPath := viperCfg.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		if errors.Is(err, store.ErrNewerSchema) {
			logger.Fatal("refusing to start: upgrade Vigil to open this database", zap.Error(err))
		}
		logger.Fatal("schema version check failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	bus := event.NewBus(logger.Named("event"))

	notifyDefaults := notify.DefaultDefaults()
	if err := viperCfg.UnmarshalKey("notify", &notifyDefaults); err != nil {
		logger.Fatal("invalid notify configuration", zap.Error(err))
	}

	mon := monitor.New(
		monitor.WithNotifyDefaults(notifyDefaults),
		monitor.WithRegisterer(prometheus.DefaultRegisterer),
	)

	reg := registry.New(logger.Named("registry"))
	if err := reg.Register(mon); err != nil {
		logger.Fatal("failed to register plugin", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config: cfg.Sub(name),
			Logger: logger.Named(name),
			Store:  db,
			Bus:    bus,
		}
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	// Seed before Start so seeded poll targets are scheduled with the rest.
	if path := viperCfg.GetString("seed.file"); path != "" {
		applySeed(ctx, mon, path, logger.Named("seed"))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	wsHandler := ws.NewHandler(bus, logger.Named("ws"))
	defer wsHandler.Close()

	var serverCfg server.Config
	if err := viperCfg.UnmarshalKey("server", &serverCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}
	var limit server.RateLimitConfig
	if err := viperCfg.UnmarshalKey("ratelimit", &limit); err != nil {
		logger.Fatal("invalid ratelimit configuration", zap.Error(err))
	}
	readyCheck := server.ReadinessChecker(db.Ping)
	srv := server.New(serverCfg.Addr(), reg, logger, readyCheck, limit, wsHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("Vigil ready", zap.String("addr", serverCfg.Addr()))

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("server stopped with error", zap.Error(runErr))
	}

	// HTTP is down, so no new heartbeats or manual checks arrive while the
	// scheduler drains.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	reg.StopAll(shutdownCtx)
	bus.Wait()

	logger.Info("Vigil stopped")
	if runErr != nil {
		_ = logger.Sync()
		db.Close()
		os.Exit(1)
	}
}

// applySeed registers the targets from the seed file. Failures are logged;
// a bad seed file never blocks startup.
func applySeed(ctx context.Context, svc seed.Service, path string, logger *zap.Logger) {
	f, err := seed.LoadFile(path)
	if err != nil {
		logger.Error("failed to load seed file", zap.String("path", path), zap.Error(err))
		return
	}
	sum, err := seed.Apply(ctx, svc, f, logger)
	if err != nil {
		logger.Error("seed file partially applied", zap.String("path", path), zap.Error(err))
	}
	for i := range sum.NewPushTargets {
		pt := sum.NewPushTargets[i]
		logger.Info("push target heartbeat URL",
			zap.String("name", pt.Name),
			zap.String("path", "/api/v1/monitor/heartbeat/"+pt.Token),
		)
	}
	logger.Info("seed file applied",
		zap.String("path", path),
		zap.Int("poll_created", sum.PollCreated),
		zap.Int("push_created", sum.PushCreated),
		zap.Int("alerts_created", sum.AlertsCreated),
		zap.Int("skipped", sum.Skipped),
	)
}
