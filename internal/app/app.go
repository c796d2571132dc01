// Package app wires every component of the planning server together:
// configuration, storage, the domain services, and the HTTP surface. It is
// the single place that knows how all the pieces fit; cmd/planningserver
// just calls into it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/authapi"
	"github.com/freightplan/planningserver/internal/config"
	"github.com/freightplan/planningserver/internal/httpserver"
	"github.com/freightplan/planningserver/internal/livesync"
	"github.com/freightplan/planningserver/internal/platform"
	"github.com/freightplan/planningserver/internal/reqlog"
	"github.com/freightplan/planningserver/internal/scheduler"
	"github.com/freightplan/planningserver/internal/snapshot"
	"github.com/freightplan/planningserver/internal/telemetry"
	"github.com/freightplan/planningserver/pkg/admin"
	"github.com/freightplan/planningserver/pkg/driver"
	"github.com/freightplan/planningserver/pkg/finance"
	"github.com/freightplan/planningserver/pkg/mission"
	"github.com/freightplan/planningserver/pkg/route"
	"github.com/freightplan/planningserver/pkg/stats"
	"github.com/freightplan/planningserver/pkg/subcontractor"
	"github.com/freightplan/planningserver/pkg/user"
)

// Version is the build version reported by /server-info. Overridden at
// build time via -ldflags where the build pipeline sets it.
var Version = "dev"

// App holds every long-lived dependency the server needs, so main can start
// and stop them in a well-defined order.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	authService *auth.Service

	auditWriter  *audit.Writer
	reqlogWriter *reqlog.Writer
	hub          *livesync.Hub
	scheduler    *scheduler.Scheduler

	server     *httpserver.Server
	httpServer *http.Server
}

// New loads configuration, opens storage connections, runs migrations, and
// wires every domain package into an HTTP server. It does not start
// listening; call Run for that.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	// Ambient writers: audit trail and per-request traffic log, both
	// buffered and flushed asynchronously so the request path never blocks
	// on a write to Postgres.
	auditStore := audit.NewStore(db)
	auditWriter := audit.NewWriter(db, logger)

	reqlogStore := reqlog.NewStore(db)
	reqlogWriter := reqlog.NewWriter(db, logger)

	sessions, err := auth.NewSessionManager(cfg.SessionSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building session manager: %w", err)
	}
	authStore := auth.NewStore(db)
	authService := auth.NewService(authStore, sessions, logger, auth.Config{
		TokenTTL:         cfg.SessionTokenTTL,
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutDuration:  cfg.LockoutDuration,
	})
	rateLimiter := auth.NewRateLimiter(rdb, cfg.LockoutThreshold, cfg.LockoutDuration)

	hub := livesync.NewHub(logger)

	snapshots, err := snapshot.NewService(cfg.BackupDir, cfg.DatabaseURL, cfg.BackupRetentionDays)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building snapshot service: %w", err)
	}

	sched, err := scheduler.New(authService, snapshots, cfg.AutoBackupHour, cfg.BackupRetentionDays, cfg.SessionSweepEvery, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building scheduler: %w", err)
	}

	// Domain packages: route, driver, subcontractor, finance, and mission
	// share the Store/Service/Handler shape; mission additionally composes
	// route and driver stores for its assignment-conflict checks.
	routeStore := route.NewStore(db)
	routeService := route.NewService(routeStore)
	routeHandler := route.NewHandler(routeService, auditWriter)

	driverStore := driver.NewStore(db)
	driverService := driver.NewService(driverStore)
	driverHandler := driver.NewHandler(driverService, auditWriter)

	subcontractorStore := subcontractor.NewStore(db)
	subcontractorService := subcontractor.NewService(subcontractorStore)
	subcontractorHandler := subcontractor.NewHandler(subcontractorService, auditWriter)

	financeStore := finance.NewStore(db)
	financeService := finance.NewService(financeStore)
	financeHandler := finance.NewHandler(financeService, auditWriter)

	missionStore := mission.NewStore(db)
	missionService := mission.NewService(db, missionStore, routeStore, driverStore)
	missionHandler := mission.NewHandler(missionService, auditWriter)

	userHandler := user.NewHandler(authStore, authService, auditWriter)

	statsStore := stats.NewStore(db, reqlogStore)
	statsHandler := stats.NewHandler(statsStore, reqlogStore)

	auditHandler := audit.NewHandler(auditStore)

	adminHandler := admin.NewHandler(authStore, authService, auditWriter, hub, snapshots, cfg)

	authAPIHandler := authapi.NewHandler(authService, rateLimiter, auditWriter)

	livesyncHandler := livesync.NewHandler(hub, authService, logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsPath:        cfg.MetricsPath,
		Version:            Version,
	}, logger, db, rdb, metricsReg, auth.Middleware(authService, logger))

	// /auth/login and /ws authenticate themselves (request body credentials,
	// query-param session token) rather than via the bearer middleware the
	// rest of /api/v1 sits behind, so they mount at the top level instead.
	server.Router.Mount("/auth", authAPIHandler.Routes())
	server.Router.Mount("/ws", livesyncHandler.Routes())

	api := server.APIRouter
	api.With(httpserver.LegacyFieldAliases).Mount("/routes", routeHandler.Routes())
	api.With(httpserver.LegacyFieldAliases).Mount("/drivers", driverHandler.Routes())
	api.With(httpserver.LegacyFieldAliases).Mount("/subcontractors", subcontractorHandler.Routes())
	api.Mount("/finance", financeHandler.Routes())
	api.With(httpserver.LegacyFieldAliases, httpserver.LegacyMissionKindAlias).Mount("/missions", missionHandler.Routes())
	api.Mount("/stats", statsHandler.Routes())
	api.Route("/admin", func(r chi.Router) {
		r.Mount("/users", userHandler.Routes())
		r.With(auth.RequireCapability(auth.ManageRights)).Mount("/logs", auditHandler.Routes())
		r.Mount("/", adminHandler.Routes())
	})

	return &App{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		rdb:          rdb,
		authService:  authService,
		auditWriter:  auditWriter,
		reqlogWriter: reqlogWriter,
		hub:          hub,
		scheduler:    sched,
		server:       server,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           httpserver.RecordRequests(reqlogWriter)(server),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the app according to cfg.Mode:
//   - "api" (default): serves HTTP, runs the scheduler and ambient writers.
//   - "worker": runs the scheduler and ambient writers only, no HTTP listener.
//     Useful for running backups/session-sweeps on a separate box from the
//     API tier.
//   - "seed": bootstraps the initial admin account and exits, for first-run
//     provisioning in automated deploys.
//
// In all modes it shuts everything down cleanly when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.db.Close()
	defer a.rdb.Close()

	if a.cfg.Mode == "seed" {
		created, err := a.authService.BootstrapAdmin(ctx)
		if err != nil {
			return fmt.Errorf("bootstrapping admin account: %w", err)
		}
		if created {
			a.logger.Info("bootstrapped initial admin account")
		} else {
			a.logger.Info("admin account already present, nothing to seed")
		}
		return nil
	}

	a.auditWriter.Start(ctx)
	a.reqlogWriter.Start(ctx)
	a.scheduler.Start()

	if created, err := a.authService.BootstrapAdmin(ctx); err != nil {
		a.logger.Error("bootstrapping admin account failed", "error", err)
	} else if created {
		a.logger.Info("bootstrapped initial admin account")
	}

	if a.cfg.Mode == "worker" {
		<-ctx.Done()
		a.shutdown()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.ListenAddr())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.shutdown()
		return err
	case <-ctx.Done():
		a.shutdown()
		return nil
	}
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown", "error", err)
	}
	a.scheduler.Stop(shutdownCtx)
	a.auditWriter.Close()
	a.reqlogWriter.Close()
}
