// Command funlabs serves the gamification engine over HTTP and runs its
// maintenance jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/api/dashboard"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/cache"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/mattermost"
	prommetrics "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/metrics"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/achievements"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/engine"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/leaderboard"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/prizes"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/scheduler"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/setup"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// Version is the build version reported by /health and startup logs.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	switch cfg.Database.Migrate {
	case "auto":
		if err := db.AutoMigrate(); err != nil {
			return err
		}
	case "sql":
		if err := repository.Migrate(cfg.Database.Postgres.URL(), log); err != nil {
			return err
		}
	}

	store := repository.NewStore(db)

	if cfg.Catalog.Seed {
		catalog, err := setup.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		report, err := setup.NewService(store, log).Seed(ctx, catalog)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		log.Info().
			Str("path", cfg.Catalog.Path).
			Int("created", report.Created).
			Int("skipped", report.Skipped).
			Msg("Catalog seeded")
	}

	var redisCache *cache.Cache
	if cfg.Database.Redis.Enabled {
		redisCache, err = cache.New(&cfg.Database.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = redisCache.Close() }()
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Connected to Redis")
	}

	board := leaderboard.NewService(redisCache, store.Profiles, cfg.Leaderboard, log)

	notifier := events.NewDispatcher(
		events.NewLogNotifier(log),
		prommetrics.NewNotifier(),
		board,
		mattermost.NewClient(&cfg.Mattermost, log),
	)

	achievementSvc := achievements.NewService(store, notifier, log)
	prizeSvc := prizes.NewService(store, notifier, log)
	eng := engine.New(store, achievementSvc, prizeSvc, notifier, log, engine.WithValidators(validators(cfg.Engine)...))

	jobs := scheduler.NewService(&cfg.Scheduler, board, eng, log)
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router(cfg, db, eng, board, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("version", Version).
			Str("environment", cfg.Server.Environment).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Server shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}

// validators builds the engine's award and grant checks from configuration.
func validators(cfg config.EngineConfig) []engine.Validator {
	var out []engine.Validator
	if cfg.MaxAwardAmount > 0 {
		out = append(out, engine.MaxAmount(cfg.MaxAwardAmount))
	}
	if cfg.RejectOptedOutAwards {
		out = append(out, engine.RejectOptedOut())
	}
	if len(cfg.AwardableTypes) > 0 {
		out = append(out, engine.AllowedTypes(cfg.AwardableTypes...))
	}
	return out
}

func router(
	cfg *config.Config,
	db *repository.DB,
	eng *engine.Engine,
	board *leaderboard.Service,
	log *logger.Logger,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": Version})
	})

	if cfg.Metrics.Prometheus.Enabled {
		r.GET(cfg.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	dashboard.NewHandler(eng, board, log).RegisterRoutes(r.Group("/api/v1"))
	return r
}
