package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/lock"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/persistence/memory"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Store backends selectable with --store
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// App holds the wired ledger services for one command invocation
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Accounts     *appledger.AccountService
	Transactions *appledger.TransactionService
	Periods      *appledger.PeriodService
	Reports      *appledger.ReportService
	Engine       *appledger.LedgerEngine
	Bus          *event.InMemoryEventBus

	db      *persistence.Database
	meter   metric.Meter
	closers []func(context.Context) error
}

// appOptions are the knobs the root command passes to NewApp
type appOptions struct {
	store       string
	eventsOut   io.Writer
	skipMigrate bool
}

// NewApp wires configuration, telemetry, storage, locking, idempotency and
// the event bus into the ledger services.
func NewApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *App, err error) {
	store := opts.store
	if store == "" {
		store = cfg.Database.Driver
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"app": cfg.App.Name, "env": cfg.App.Env, "store": store},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &App{Config: cfg, Logger: log}
	// error returns zero the named result; clean up through the local
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	if err := app.initTelemetry(ctx); err != nil {
		return nil, err
	}

	var (
		scope        appledger.TransactionScope
		accounts     ledger.AccountRepository
		transactions ledger.TransactionRepository
		periods      ledger.FiscalPeriodRepository
	)
	switch store {
	case StoreMemory:
		mem := memory.NewStore()
		scope = mem
		accounts = mem.AccountRepository()
		transactions = mem.TransactionRepository()
		periods = mem.FiscalPeriodRepository()
		app.Logger.Debug("Using in-memory ledger store")
	case StorePostgres, StoreSQLite:
		if err := app.openDatabase(ctx, store, opts.skipMigrate); err != nil {
			return nil, err
		}
		scope = persistence.NewGormTransactionScope(app.db.DB)
		accounts = persistence.NewGormAccountRepository(app.db.DB)
		transactions = persistence.NewGormTransactionRepository(app.db.DB)
		periods = persistence.NewGormFiscalPeriodRepository(app.db.DB)
	default:
		return nil, usageErrorf("unknown store %q (want postgres, sqlite or memory)", store)
	}

	locker, err := app.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	idempotency, err := cache.OpenIdempotencyStore(ctx, cfg.Ledger.IdempotencyBackend, redisConfig(cfg),
		cache.WithLogger(app.Logger),
		cache.WithInMemoryFallback(store != StorePostgres),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create idempotency store: %w", err)
	}
	app.onClose(func(context.Context) error { return idempotency.Close() })

	app.Bus = event.NewInMemoryEventBus(app.Logger)
	app.Bus.Subscribe(appledger.NewAuditHandler(app.Logger))
	if opts.eventsOut != nil {
		sink := event.NewJSONLineSink(opts.eventsOut, event.NewEventSerializer())
		app.Bus.Subscribe(sink)
	}
	if err := app.Bus.Start(ctx); err != nil {
		return nil, err
	}
	app.onClose(app.Bus.Stop)

	metrics, err := telemetry.NewLedgerMetrics(app.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger metrics: %w", err)
	}

	options := appledger.Options{
		RequireSegregationOfDuties: cfg.Ledger.RequireSegregationOfDuties,
		IdempotencyTTL:             cfg.Ledger.IdempotencyTTL,
		LedgerPageSize:             cfg.Ledger.LedgerPageSize,
	}

	app.Engine = appledger.NewLedgerEngine(scope, accounts, transactions, app.Logger)
	app.Engine.SetMetrics(metrics)

	app.Accounts = appledger.NewAccountService(accounts, transactions, app.Logger)
	app.Accounts.SetEventPublisher(app.Bus)

	app.Transactions = appledger.NewTransactionService(scope, accounts, transactions, app.Engine, locker, options, app.Logger)
	app.Transactions.SetEventPublisher(app.Bus)
	app.Transactions.SetIdempotencyStore(idempotency)
	app.Transactions.SetMetrics(metrics)

	app.Periods = appledger.NewPeriodService(scope, periods, app.Engine, locker, app.Logger)
	app.Periods.SetEventPublisher(app.Bus)
	app.Periods.SetMetrics(metrics)

	app.Reports = appledger.NewReportService(accounts, transactions, app.Engine, options, app.Logger)
	app.Reports.SetMetrics(metrics)

	return app, nil
}

// initTelemetry installs the OTLP providers and bridges the logger into
// OpenTelemetry logs. With telemetry disabled every provider is a no-op.
func (a *App) initTelemetry(ctx context.Context) error {
	tcfg := telemetry.Config{
		Enabled:           a.Config.Telemetry.Enabled,
		CollectorEndpoint: a.Config.Telemetry.CollectorEndpoint,
		SamplingRatio:     a.Config.Telemetry.SamplingRatio,
		ServiceName:       a.Config.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          a.Config.Telemetry.Insecure,
		MetricsInterval:   a.Config.Telemetry.MetricsInterval,
	}

	tp, err := telemetry.NewTracerProvider(ctx, tcfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.onClose(tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, tcfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.onClose(mp.Shutdown)
	a.meter = mp.Meter(telemetry.TracerName)

	lp, err := telemetry.NewLoggerProvider(ctx, tcfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize log export: %w", err)
	}
	a.onClose(lp.Shutdown)

	if lp.IsEnabled() {
		level, err := logger.ParseLevel(a.Config.Log.Level)
		if err != nil {
			return err
		}
		a.Logger = telemetry.Bridge(a.Logger, telemetry.NewZapOTELCore(tcfg.ServiceName, lp, level))
	}
	return nil
}

// openDatabase connects to postgres or sqlite and brings the schema up to
// date: versioned migrations on postgres, AutoMigrate on sqlite.
func (a *App) openDatabase(ctx context.Context, driver string, skipMigrate bool) error {
	dbCfg := a.Config.Database
	dbCfg.Driver = driver

	dbOpts := []persistence.DatabaseOption{persistence.WithLogger(a.Logger)}
	if a.Config.Telemetry.DBTraceEnabled {
		system := "postgresql"
		if driver == StoreSQLite {
			system = "sqlite"
		}
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      a.Config.Telemetry.DBLogFullSQL,
			SlowQueryThresh: a.Config.Telemetry.DBSlowQueryThresh,
			DBSystem:        system,
		}, a.Logger)
		dbOpts = append(dbOpts, persistence.WithTracing(plugin))
	}

	db, err := persistence.NewDatabase(&dbCfg, dbOpts...)
	if err != nil {
		return err
	}
	a.db = db
	a.onClose(func(context.Context) error { return db.Close() })
	a.Logger.Debug("Database connected", zap.String("driver", driver))

	if skipMigrate {
		return nil
	}
	if driver == StoreSQLite {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.WithContext(ctx).DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	m, err := migration.New(sqlDB, a.Logger)
	if err != nil {
		return err
	}
	return m.Up()
}

func (a *App) newLocker(ctx context.Context) (appledger.Locker, error) {
	switch a.Config.Ledger.LockBackend {
	case "", "memory":
		return lock.NewMemoryLocker(), nil
	case "redis":
	default:
		return nil, fmt.Errorf("unknown lock backend %q", a.Config.Ledger.LockBackend)
	}

	client, err := cache.NewRedisClient(ctx, redisConfig(a.Config))
	if err != nil {
		return nil, fmt.Errorf("redis required for locking but unavailable: %w", err)
	}
	a.onClose(func(context.Context) error { return client.Close() })

	opts := lock.DefaultOptions()
	if a.Config.Ledger.LockExpiry > 0 {
		opts.Expiry = a.Config.Ledger.LockExpiry
	}
	if a.Config.Ledger.LockTries > 0 {
		opts.Tries = a.Config.Ledger.LockTries
	}
	if a.Config.Ledger.LockRetryDelay > 0 {
		opts.RetryDelay = a.Config.Ledger.LockRetryDelay
	}
	locker, err := lock.NewRedisLocker(client, opts, a.Logger)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

// Database returns the open SQL connection, or nil for the memory store
func (a *App) Database() *persistence.Database {
	return a.db
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything NewApp opened, in reverse order
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Logger != nil {
		_ = logger.Sync(a.Logger)
	}
	return errors.Join(errs...)
}

func redisConfig(cfg *config.Config) cache.RedisConfig {
	return cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// openEventsOutput resolves the --events flag. "-" writes to stderr.
func openEventsOutput(path string, stderr io.Writer) (io.Writer, func() error, error) {
	switch path {
	case "":
		return nil, func() error { return nil }, nil
	case "-":
		return stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open events file: %w", err)
	}
	return f, f.Close, nil
}
