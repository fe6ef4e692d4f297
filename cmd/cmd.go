package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-voucher-backend/internal/config"
	"meal-voucher-backend/internal/handlers"
	"meal-voucher-backend/internal/metrics"
	"meal-voucher-backend/internal/qr"
	"meal-voucher-backend/internal/repository"
	"meal-voucher-backend/internal/services"
	"meal-voucher-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "config.yaml"

func Run() {
	configPath := flag.String("config", configPathFromEnv(), "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := repository.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database schema")
		}
		log.Info().Msg("Database schema up to date")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	mealRepo := repository.NewMealRepository(db)

	// Scan archive is optional
	var archive services.ScanArchive
	if cfg.Archive.ArchiveEnabled() {
		s3Archive, err := storage.NewS3Archive(context.Background(), storage.S3Config{
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Endpoint:  cfg.Archive.Endpoint,
			PathStyle: cfg.Archive.PathStyle,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create scan archive")
		}
		archive = s3Archive
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Scan archive enabled")
	}

	// Initialize services
	mealHub := services.NewMealHub()
	appMetrics := metrics.New()
	userService := services.NewUserService(userRepo)
	ticketService := services.NewTicketService(ticketRepo)
	codeService := services.NewCodeService(ticketService, qr.NewRenderer(cfg.QR.ModuleSize))
	mealService := services.NewMealService(mealRepo, ticketService, archive, services.Notifiers{mealHub, appMetrics}, cfg.Meals.Limit)

	// Initialize handlers and routes
	router := handlers.NewRouter(handlers.Handlers{
		Users:    handlers.NewUserHandler(userService),
		Tickets:  handlers.NewTicketHandler(ticketService, mealService),
		Codes:    handlers.NewCodeHandler(codeService),
		Meals:    handlers.NewMealHandler(mealService),
		MealFeed: handlers.NewMealFeedHandler(mealHub),
		Metrics:  appMetrics,
	}, cfg.Server.MaxUploadBytes())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Int("meal_limit", cfg.Meals.Limit).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked feed connections are not tracked by Shutdown
	mealHub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func configPathFromEnv() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return defaultConfigPath
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
