package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/debugreport"
	"registrar/internal/enrollment"
	"registrar/internal/installstate"
	"registrar/internal/platform/config"
	"registrar/internal/platform/kafka"
	"registrar/internal/platform/redis"
	"registrar/internal/registration/fetcher"
	"registrar/internal/registration/metrics"
	"registrar/internal/registration/noise"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/privacy"
	"registrar/internal/registration/runner"
	"registrar/internal/registration/service"
	"registrar/pkg/platform/circuit"
)

// App is the wired process: stores, outbound clients and the registration
// components built on them.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	DB          *sql.DB
	Enrollments *pgxpool.Pool
	Redis       *redis.Client
	Producer    *kgo.Client

	Registry  *prometheus.Registry
	Directory *enrollment.DirectoryStore
	Service   *service.Service
	Runner    *runner.Runner
}

// openStores connects the registration and enrollment databases.
func openStores(ctx context.Context, cfg config.Config) (*sql.DB, *pgxpool.Pool, error) {
	if cfg.Postgres.DSN == "" {
		return nil, nil, errors.New("postgres.dsn is required")
	}
	if cfg.Enrollment.DSN == "" {
		return nil, nil, errors.New("enrollment.dsn is required")
	}
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open registration database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping registration database: %w", err)
	}
	pool, err := enrollment.Connect(ctx, cfg.Enrollment.DSN)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, pool, nil
}

// NewApp connects every configured dependency and wires the service and
// runner. Redis and Kafka are optional.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, newTx TxFactory) (*App, error) {
	app := &App{cfg: cfg, logger: logger, Registry: prometheus.NewRegistry()}
	if err := app.wire(ctx, newTx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context, newTx TxFactory) error {
	cfg, logger := app.cfg, app.logger
	var err error

	app.DB, app.Enrollments, err = openStores(ctx, cfg)
	if err != nil {
		return err
	}
	app.Directory = enrollment.NewDirectoryStore(app.Enrollments)

	app.Redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	app.Producer, err = kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return err
	}
	if app.Producer != nil {
		if err := kafka.EnsureTopic(ctx, app.Producer, cfg.Kafka.DebugReportTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			logger.WarnContext(ctx, "debug report topic not provisioned", "topic", cfg.Kafka.DebugReportTopic, "error", err)
		}
	}

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(app.Registry)

	var lookup ports.EnrollmentLookup = app.Directory
	if app.Redis != nil {
		lookup = enrollment.NewCachedLookup(app.Directory, app.Redis,
			enrollment.WithTTL(cfg.Enrollment.CacheTTL),
			enrollment.WithLogger(logger),
			enrollment.WithBreaker(circuit.New("enrollment-cache")),
		)
	}

	f, err := fetcher.New(
		fetcher.NewHTTPTransport(&http.Client{Timeout: cfg.Fetcher.Timeout}),
		lookup,
		fetcher.WithLogger(logger),
		fetcher.WithMetrics(m),
		fetcher.WithConfig(fetcher.Config{
			MaxWebDestinations: cfg.Fetcher.MaxWebDestinations,
			DebugKeyAllowlist:  cfg.Fetcher.DebugKeyAllowlist,
		}),
	)
	if err != nil {
		return err
	}

	gate := privacy.New(cfg.Privacy, privacy.WithLogger(logger), privacy.WithMetrics(m))

	noiseOpts := []noise.Option{noise.WithEpsilon(cfg.Privacy.Epsilon)}
	if cfg.Noise.Seed != 0 {
		noiseOpts = append(noiseOpts, noise.WithRand(rand.New(rand.NewPCG(cfg.Noise.Seed, cfg.Noise.Seed))))
	}

	tx := newTx(app.DB, cfg.Runner.TxTimeout)
	runnerOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithMetrics(m),
		runner.WithConfig(runner.Config{
			BatchSize:            cfg.Runner.BatchSize,
			MaxRetries:           cfg.Runner.MaxRetries,
			MaxRedirectsPerChain: cfg.Runner.MaxRedirectsPerChain,
			InstallStatePolicy:   cfg.Runner.InstallStatePolicy,
			FetchTimeout:         cfg.Fetcher.Timeout,
		}),
	}
	if app.Redis != nil {
		runnerOpts = append(runnerOpts, runner.WithInstallState(installstate.New(app.Redis, cfg.Redis.InstalledKey)))
	}
	if app.Producer != nil {
		runnerOpts = append(runnerOpts, runner.WithDebugReporter(debugreport.New(app.Producer, cfg.Kafka.DebugReportTopic, debugreport.WithLogger(logger))))
	}
	app.Runner, err = runner.New(tx, f, gate, noise.New(noiseOpts...), runnerOpts...)
	if err != nil {
		return err
	}

	app.Service, err = service.New(tx, service.WithLogger(logger), service.WithMetrics(m))
	if err != nil {
		return err
	}
	return nil
}

// Close flushes pending debug reports and releases every connection.
func (a *App) Close() {
	if a.Producer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		if err := a.Producer.Flush(ctx); err != nil {
			a.logger.Warn("flush debug reports", "error", err)
		}
		cancel()
		a.Producer.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Enrollments != nil {
		a.Enrollments.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
