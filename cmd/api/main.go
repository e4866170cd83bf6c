// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bibliotech/internal/admin"
	"github.com/carterperez-dev/bibliotech/internal/auth"
	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/chat"
	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/health"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/lifecycle"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
	"github.com/carterperez-dev/bibliotech/internal/server"
	"github.com/carterperez-dev/bibliotech/internal/storage"
	"github.com/carterperez-dev/bibliotech/internal/store"
	"github.com/carterperez-dev/bibliotech/migrations"
)

const drainDelay = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := core.NewLogger(cfg.Log, os.Stdout, cfg.IsDevelopment())
	slog.SetDefault(logger)
	logger.Info("starting bibliotech",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	b, err := openBackends(ctx, cfg, logger)
	if b != nil {
		defer b.close(logger)
	}
	if err != nil {
		return err
	}

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: b.db},
		health.Dependency{Name: "redis", Checker: b.redis},
		health.Dependency{Name: "storage", Checker: b.files},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})
	router := srv.Router()
	healthHandler.RegisterRoutes(router)
	mount(router, cfg, b, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := b.telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// backends are the long-lived connections the API serves from. Fields
// opened before a failure are still closed.
type backends struct {
	telemetry  *core.Telemetry
	db         *core.Database
	redis      *core.Redis
	jwt        *auth.JWTManager
	files      *storage.Files
	closeFiles func() error
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Otel.Enabled {
		tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			b.telemetry = tel
			logger.Info("tracing enabled", "endpoint", cfg.Otel.Endpoint)
		}
	}

	var err error
	if b.db, err = core.NewDatabase(ctx, cfg.Database); err != nil {
		return b, err
	}
	logger.Info("database connected", "max_open_conns", cfg.Database.MaxOpenConns)

	if cfg.Database.AutoMigrate {
		applied, err := core.Migrate(ctx, b.db.DB, migrations.FS)
		if err != nil {
			return b, err
		}
		logger.Info("migrations applied", "count", len(applied))
	}

	if b.redis, err = core.NewRedis(ctx, cfg.Redis); err != nil {
		return b, err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	if b.jwt, err = auth.NewJWTManager(cfg.JWT); err != nil {
		return b, err
	}
	logger.Info("access token signing ready", "algorithm", "ES256", "key_id", b.jwt.KeyID())

	if b.files, b.closeFiles, err = storage.FromConfig(ctx, cfg.Storage); err != nil {
		return b, err
	}
	logger.Info("file storage ready", "backend", cfg.Storage.Backend)

	return b, nil
}

func (b *backends) close(logger *slog.Logger) {
	if b.closeFiles != nil {
		if err := b.closeFiles(); err != nil {
			logger.Error("file storage close error", "error", err)
		}
	}
	if err := b.redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if err := b.db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
}

// mount wires every service onto router under /v1. State changes go
// through the lifecycle engine; the other handlers are read-only views.
func mount(router chi.Router, cfg *config.Config, b *backends, logger *slog.Logger) {
	st := store.NewSQL(b.db)
	repos := st.Repos()

	engine := lifecycle.New(st, b.files,
		lifecycle.WithLogger(logger),
		lifecycle.WithLendingConfig(cfg.Lending),
	)

	membershipSvc := membership.NewService(repos.Users)
	authSvc := auth.NewService(
		auth.NewRepository(b.db.DB),
		b.jwt,
		membershipSvc,
		auth.NewRedisRevocations(b.redis.Client),
	)

	if !cfg.Chat.Enabled() {
		logger.Warn("chat assistant disabled, no API key configured")
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.NewRateLimiter(b.redis.Client, middleware.RateLimitConfig{
		Limit: middleware.Per(cfg.RateLimit.Requests, cfg.RateLimit.Burst, cfg.RateLimit.Window),
	}).Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, core.MetricsHandler())
	}
	router.Get("/.well-known/jwks.json", b.jwt.JWKSHandler())

	verify := middleware.Authenticator(authSvc)
	roleLimiter := middleware.RoleRateLimiter(b.redis.Client, middleware.DefaultRoleLimits)
	authenticator := func(next http.Handler) http.Handler {
		return verify(roleLimiter(next))
	}
	chatLimiter := middleware.NewRateLimiter(b.redis.Client, middleware.RateLimitConfig{
		Limit:   middleware.PerMinute(cfg.Chat.Requests, cfg.Chat.Burst),
		KeyFunc: middleware.KeyByUserAndEndpoint,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		auth.NewHandler(authSvc).RegisterRoutes(r, authenticator)

		catalogue.NewHandler(catalogue.NewService(repos.Documents, b.files)).
			RegisterRoutes(r)
		lifecycle.NewHandler(engine, cfg.Storage.MaxUploadBytes).
			RegisterRoutes(r, authenticator)
		lending.NewHandler(lending.NewService(repos.Loans, repos.Reservations, repos.Documents)).
			RegisterRoutes(r, authenticator, middleware.RequireMember)

		membershipHandler := membership.NewHandler(membershipSvc)
		membershipHandler.RegisterRoutes(r, authenticator)
		membershipHandler.RegisterManagerRoutes(r, authenticator, middleware.RequireManager)

		admin.NewHandler(admin.HandlerConfig{
			Database: b.db,
			Redis:    b.redis,
			Storage:  b.files,
			Store:    st,
		}).RegisterRoutes(r, authenticator, middleware.RequireManager)

		chat.NewHandler(chat.NewService(cfg.Chat)).
			RegisterRoutes(r, authenticator, chatLimiter)
	})
}
