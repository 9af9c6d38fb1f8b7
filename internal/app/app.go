// Package app wires configuration into a running verdict service.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/newthinker/verdict/internal/api"
	"github.com/newthinker/verdict/internal/api/job"
	"github.com/newthinker/verdict/internal/config"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/engine"
	"github.com/newthinker/verdict/internal/metrics"
	"github.com/newthinker/verdict/internal/oracle"
	"github.com/newthinker/verdict/internal/platform/httpclient"
	"github.com/newthinker/verdict/internal/retention"
	"github.com/newthinker/verdict/internal/scheduler"
	"github.com/newthinker/verdict/internal/storage/archive"
	"github.com/newthinker/verdict/internal/storage/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the components built from one configuration.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
	oracle  *oracle.Oracle
	store   ledger.Store
	engine  *engine.Engine
	jobs    *job.Store

	closers []func() error

	mu      sync.Mutex
	running bool
}

// Option customizes an App.
type Option func(*options)

type options struct {
	providers []oracle.Provider
	store     ledger.Store
}

// WithProviders replaces the configured price providers.
func WithProviders(p ...oracle.Provider) Option {
	return func(o *options) { o.providers = p }
}

// WithStore replaces the configured ledger backend.
func WithStore(s ledger.Store) Option {
	return func(o *options) { o.store = s }
}

// New validates cfg and builds every component.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("config is nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	var err error
	if a.oracle, err = a.buildOracle(o.providers); err != nil {
		return nil, err
	}

	a.store = o.store
	if a.store == nil {
		if a.store, err = a.buildLedger(); err != nil {
			a.Close()
			return nil, err
		}
	}

	cold, err := a.buildArchive()
	if err != nil {
		a.Close()
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger.Named("engine")),
		engine.WithRetention(retention.NewManager(cfg.Engine.RetentionWindow(), cold, logger.Named("retention"))),
	}
	if a.metrics != nil {
		engineOpts = append(engineOpts, engine.WithRecorder(a.metrics))
	}
	a.engine = engine.New(a.store, a.oracle, engine.Config{
		CycleTimeout: cfg.Engine.CycleTimeout,
		MaxRetries:   uint64(cfg.Engine.MaxRetries),
	}, engineOpts...)

	a.jobs = job.NewStore(cfg.Server.MaxRuns, cfg.Server.RunTTL)
	return a, nil
}

func (a *App) buildOracle(providers []oracle.Provider) (*oracle.Oracle, error) {
	oc := a.cfg.Oracle
	if providers == nil {
		client := httpclient.New(httpclient.Options{
			Timeout:        oc.Timeout,
			RequestsPerSec: oc.RequestsPerSec,
			MaxRetries:     oc.MaxRetries,
		})
		var err error
		providers, err = oracle.BuildProviders(oc.Providers, client, oracle.ProviderOptions{
			CoinGeckoAPIKey: oc.CoinGeckoAPIKey,
		})
		if err != nil {
			return nil, err
		}
	}

	opts := []oracle.Option{
		oracle.WithCache(oracle.NewCache(oc.CacheTTL)),
		oracle.WithLogger(a.logger.Named("oracle")),
	}
	if a.metrics != nil {
		opts = append(opts, oracle.WithObserver(a.metrics))
	}
	return oracle.New(oracle.Config{
		Symbol:          oc.Symbol,
		DefaultQuote:    oc.DefaultQuote,
		Interval:        oc.Interval,
		MaxQuoteAge:     oc.MaxQuoteAge,
		BreakerFailures: oc.BreakerFailures,
		BreakerTimeout:  oc.BreakerTimeout,
	}, providers, opts...)
}

func (a *App) buildLedger() (ledger.Store, error) {
	lc := a.cfg.Ledger
	switch lc.Type {
	case "localfs":
		fs, err := archive.NewLocalFS(lc.Path)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ledger path: %w", err))
		}
		return ledger.NewBlobStore(fs, lc.File), nil
	case "s3":
		s3, err := archive.NewS3(s3Config(lc.S3))
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ledger s3: %w", err))
		}
		return ledger.NewBlobStore(s3, lc.File), nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{lc.Redis.Addr},
			Password: lc.Redis.Password,
			DB:       lc.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return ledger.NewRedisStore(client, lc.Redis.Key), nil
	case "memory":
		a.logger.Warn("using in-memory ledger, calls are lost on exit")
		return ledger.NewMemoryStore(), nil
	}
	return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown ledger type %q", lc.Type))
}

func (a *App) buildArchive() (archive.Storage, error) {
	ac := a.cfg.Archive
	switch ac.Type {
	case "", "none":
		return nil, nil
	case "localfs":
		fs, err := archive.NewLocalFS(filepath.Clean(ac.Path))
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("archive path: %w", err))
		}
		return fs, nil
	case "s3":
		s3, err := archive.NewS3(s3Config(ac.S3))
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("archive s3: %w", err))
		}
		return s3, nil
	}
	return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", ac.Type))
}

func s3Config(c config.S3Config) archive.S3Config {
	return archive.S3Config{
		Bucket:    c.Bucket,
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Prefix:    c.Prefix,
	}
}

// Engine returns the resolution engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Store returns the ledger backend.
func (a *App) Store() ledger.Store {
	return a.store
}

// Jobs returns the run history.
func (a *App) Jobs() *job.Store {
	return a.jobs
}

// Metrics returns the metrics registry, nil when metrics are disabled.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// RunOnce executes a single resolution cycle.
func (a *App) RunOnce(ctx context.Context) (*engine.Result, error) {
	return a.engine.Run(ctx)
}

// Stats returns the stored statistics snapshot.
func (a *App) Stats(ctx context.Context) (core.StatsSnapshot, error) {
	return a.engine.Stats(ctx)
}

// Serve runs the HTTP server and, when enabled, the scheduler until ctx is
// cancelled, then shuts both down within shutdownTimeout.
func (a *App) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	server, err := api.NewServer(api.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		APIKey:      a.cfg.Server.APIKey,
		MetricsPath: a.cfg.Metrics.Path,
	}, api.Dependencies{
		Runner:  a.engine,
		Store:   a.store,
		Jobs:    a.jobs,
		Metrics: a.metrics,
	}, a.logger.Named("api"))
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if a.cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			Spec:       a.cfg.Scheduler.Spec,
			RunOnStart: a.cfg.Scheduler.RunOnStart,
		}, a.engine, a.jobs, a.logger)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			errCh <- err
			cancel()
		}
	}()
	if sched != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Start(ctx); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	a.logger.Info("verdict started",
		zap.String("symbol", a.oracle.Symbol()),
		zap.Strings("sources", a.oracle.Sources()),
		zap.String("ledger", a.cfg.Ledger.Type),
		zap.Bool("scheduler", sched != nil),
	)

	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	shutdownErr := server.Shutdown(shutdownCtx)
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if shutdownErr != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", shutdownErr))
	}
	return errors.Join(errs...)
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
