package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/route-beacon/routecache/internal/config"
	"github.com/route-beacon/routecache/internal/deviceadapter"
	"github.com/route-beacon/routecache/internal/diffengine"
	"github.com/route-beacon/routecache/internal/diffpublish"
	httpserver "github.com/route-beacon/routecache/internal/http"
	"github.com/route-beacon/routecache/internal/inventory"
	"github.com/route-beacon/routecache/internal/metrics"
	"github.com/route-beacon/routecache/internal/scheduler"
	"github.com/route-beacon/routecache/internal/snapstore"
	"github.com/route-beacon/routecache/internal/snapstore/fsstore"
	"github.com/route-beacon/routecache/internal/snapstore/pgstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "maintenance":
		runMaintenance(os.Args[2:])
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: routecache <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve         Start the polling service")
	fmt.Println("  migrate       Run database migrations (postgres backend only)")
	fmt.Println("  maintenance   Run partition maintenance (postgres backend only)")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
	fmt.Println("  --once            Run a single collect/diff cycle and print the JSON report to stdout")
}

func parseFlags(args []string) (configPath, logLevel string, once bool) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		case "--once":
			once = true
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger, bool) {
	configPath, logLevelOverride, once := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger, once
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// buildStore opens the backend named by cfg.Store.Backend. It returns a
// non-nil dbChecker only for the postgres backend; the fs backend has
// no database to probe.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (snapstore.Store, httpserver.DBChecker, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return pgstore.New(pool), pool, pool.Close, nil
	default:
		return fsstore.New(cfg.Store.SnapDir), nil, func() {}, nil
	}
}

func buildInventory(cfg *config.Config) scheduler.Inventory {
	if cfg.Inventory.UseNetbox {
		return inventory.NewNetbox(cfg.Inventory, cfg.Device, 10*time.Second)
	}
	return inventory.NewStatic(cfg.Inventory.Static, cfg.Device)
}

func buildCollector(cfg *config.Config, logger *zap.Logger) *deviceadapter.Adapter {
	acfg := deviceadapter.Config{
		UseNXAPI: cfg.Device.UseNXAPI,
		NXAPI: deviceadapter.NXAPIConfig{
			Scheme: cfg.Device.NXAPIScheme,
			Port:   cfg.Device.NXAPIPort,
			Verify: cfg.Device.NXAPIVerify,
		},
	}
	return deviceadapter.NewAdapter(acfg, nil, logger.Named("deviceadapter"))
}

func buildPublisher(cfg *config.Config, sink *metrics.Sink, logger *zap.Logger) (scheduler.Publisher, func(), error) {
	if !cfg.DiffPublish.Enabled {
		return nil, func() {}, nil
	}

	tlsCfg, err := cfg.DiffPublish.BuildTLSConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("building diff_publish TLS config: %w", err)
	}
	saslMech := cfg.DiffPublish.BuildSASLMechanism()

	producer, err := diffpublish.NewProducer(
		cfg.DiffPublish.Brokers, cfg.DiffPublish.Topic, cfg.DiffPublish.ClientID,
		tlsCfg, saslMech, logger.Named("diffpublish"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating diff publisher: %w", err)
	}
	return &observingPublisher{inner: producer, sink: sink}, producer.Close, nil
}

// observingPublisher wraps diffpublish.Producer so every publish
// attempt is also counted by metrics, without diffpublish itself
// depending on the metrics package.
type observingPublisher struct {
	inner *diffpublish.Producer
	sink  *metrics.Sink
}

func (o *observingPublisher) Publish(ctx context.Context, device string, report diffengine.CoordinateReport) error {
	err := o.inner.Publish(ctx, device, report)
	if err != nil {
		o.sink.ObserveDiffPublish(device, "error")
	} else {
		o.sink.ObserveDiffPublish(device, "ok")
	}
	return err
}

func runServe(args []string) {
	cfg, logger, once := loadConfig(args)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, dbChecker, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	sink := metrics.New()
	if err := sink.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	publisher, closePublisher, err := buildPublisher(cfg, sink, logger)
	if err != nil {
		logger.Fatal("failed to build diff publisher", zap.Error(err))
	}
	defer closePublisher()

	logger.Info("starting routecache",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Duration("poll_interval", cfg.PollInterval()),
	)

	inv := buildInventory(cfg)
	collector := buildCollector(cfg, logger)

	sched := scheduler.New(
		scheduler.Config{Interval: cfg.PollInterval(), MaxConcurrency: cfg.Poll.MaxConcurrency},
		inv, collector, store, sink, publisher, logger.Named("scheduler"),
	)

	if once {
		results, err := sched.RunOnce(ctx)
		if err != nil {
			logger.Fatal("cycle failed", zap.Error(err))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			logger.Fatal("failed to encode report", zap.Error(err))
		}
		return
	}

	httpSrv := httpserver.NewServer(cfg.Service.HTTPListen, store, dbChecker, logger.Named("http"))
	if err := httpSrv.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	go sched.Run(ctx)

	logger.Info("routecache running", zap.String("http_listen", cfg.Service.HTTPListen))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("routecache stopped")
}

func runMigrate(args []string) {
	cfg, logger, _ := loadConfig(args)
	defer logger.Sync()

	if cfg.Store.Backend != "postgres" {
		logger.Fatal("migrate is only applicable to the postgres backend")
	}

	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pgstore.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func runMaintenance(args []string) {
	cfg, logger, _ := loadConfig(args)
	defer logger.Sync()

	if cfg.Store.Backend != "postgres" {
		logger.Fatal("maintenance is only applicable to the postgres backend")
	}

	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	pm := pgstore.NewPartitionManager(pool, cfg.Retention.Days, cfg.Retention.Timezone, logger)
	if err := pm.Run(ctx); err != nil {
		logger.Fatal("maintenance failed", zap.Error(err))
	}

	logger.Info("partition maintenance complete")
}

// migrationsDir returns the path to the migrations directory relative
// to the binary.
func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}
