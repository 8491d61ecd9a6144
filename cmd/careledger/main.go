package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/careledger/careledger/pkg/api"
	"github.com/careledger/careledger/pkg/async"
	"github.com/careledger/careledger/pkg/audit"
	"github.com/careledger/careledger/pkg/config"
	"github.com/careledger/careledger/pkg/directory"
	"github.com/careledger/careledger/pkg/middleware"
	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/policy"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
	"github.com/careledger/careledger/pkg/tenant"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("mode", string(cfg.Mode)).Info("starting careledger")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(ctx, db, cfg, logger); err != nil {
		logger.WithError(err).Error("migrations failed")
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	dir := directory.NewService(db)
	resolver := tenant.NewResolver(dir, cfg.Mode, cfg.ReservedSubdomains)
	scopes := tenant.NewScopeManager(resolver, dir, logger, metrics)

	rules := rbac.NewStore(db)
	decider := rbac.NewDecider(rules,
		cfg.Authorization.DecisionCacheSize,
		cfg.Authorization.DecisionCacheTTL,
		logger, metrics)
	invalidator := rbac.NewInvalidator(rdb, logger)
	async.Forever(ctx, logger, 5*time.Second, "rbac invalidation subscriber", func(ctx context.Context) {
		invalidator.Subscribe(ctx, decider)
	})

	auditStore := audit.NewStore(db)
	registry := policy.DefaultRegistry(decider)

	cleanup := directory.StartInvitationCleanup(dir, logger)
	defer cleanup.Stop()

	server := api.NewServer(api.Deps{
		DB:           db,
		Registry:     registry,
		Rules:        rules,
		Decider:      decider,
		Directory:    dir,
		Scopes:       scopes,
		Identity:     middleware.NewTokenIdentity(dir),
		AuditLogger:  auditStore,
		Logger:       logger,
		Metrics:      metrics,
		Invalidation: invalidator,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(db, rdb, metrics),
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancel()
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB, cfg *config.Config, logger *observability.Logger) error {
	if err := directory.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := records.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := rbac.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := audit.NewStore(db).Migrate(ctx); err != nil {
		return err
	}
	if cfg.Authorization.SeedDefaultRules {
		if err := rbac.NewStore(db).SeedDefaultRules(ctx); err != nil {
			return err
		}
		logger.Info("default permission rules seeded")
	}
	return nil
}

func healthMux(db *sql.DB, rdb *redis.Client, metrics *observability.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, rdb)
	observability.RegisterHealthRoutes(mux, checker)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}
