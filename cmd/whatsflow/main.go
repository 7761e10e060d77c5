package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsflow/internal/config"
	"whatsflow/internal/constants"
	"whatsflow/internal/database"
	"whatsflow/internal/features"
	"whatsflow/internal/inbox"
	"whatsflow/internal/models"
	"whatsflow/internal/retry"
	"whatsflow/internal/service"
	"whatsflow/internal/tracing"
	"whatsflow/internal/versioning"
	"whatsflow/pkg/ai"
	"whatsflow/pkg/whatsapp"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	envFile    = flag.String("env-file", ".env", "Optional dotenv file loaded before the configuration")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println(versioning.Info().String())
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Failed to load %s: %v", *envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	build := versioning.Info()
	logger.WithFields(logrus.Fields{
		"version": build.Version,
		"build":   build.BuildTime,
		"commit":  build.GitCommit,
	}).Info("Starting whatsflow")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg.LogLevel)

	flags := features.Global()
	if unknown := flags.Apply(cfg.Features); len(unknown) > 0 {
		logger.WithField("flags", unknown).Warn("Ignoring unknown feature flags in config")
	}
	flags.LoadFromEnvironment()

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	waClient := whatsapp.NewClient(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.APIVersion, time.Duration(cfg.WhatsApp.TimeoutMs)*time.Millisecond)

	aiTimeout := time.Duration(cfg.AI.TimeoutMs) * time.Millisecond
	responder := service.NewResponder(db, cfg.AI, logger,
		ai.NewOpenAIProvider(cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIModel, aiTimeout),
		ai.NewGeminiProvider(cfg.AI.GeminiBaseURL, cfg.AI.GeminiModel, aiTimeout),
	)

	hub := inbox.NewHub(logger)
	sender := service.NewSender(waClient, db, db, hub, time.Duration(cfg.WhatsApp.TimeoutMs)*time.Millisecond, logger)
	router := service.NewRouter(db, waClient, sender, responder, hub, cfg.Replies, logger)
	messageService := service.NewMessageService(db, sender, responder, logger)

	watcher := config.NewConfigWatcher(*configPath, logger)
	watcher.OnConfigChange(func(next *models.Config) {
		responder.UpdateConfig(next.AI)
		router.UpdateReplies(next.Replies)
		logger.Info("Applied reloaded AI and reply settings")
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Config hot reload disabled")
		}
	}()

	scheduler := service.NewScheduler(db, cfg.RetentionDays, cfg.Server.CleanupIntervalHours, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	server := NewServer(cfg, router, messageService, db, hub, flags, logger, *verbose)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// configureLogLevel applies --verbose or the configured level. Without
// --verbose the level is capped at info so contact data stays out of logs.
func configureLogLevel(logger *logrus.Logger, configured string) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}

	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		level = logrus.InfoLevel
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	var db *database.Database
	backoff := retry.NewBackoff(retry.FromRetryConfig(cfg.Retry, constants.DefaultDatabaseRetryAttempts)).
		OnRetry(func(attempt int, delay time.Duration, err error) {
			logger.WithFields(logrus.Fields{
				service.LogFieldAttempt: attempt,
				"delay":                 delay.String(),
			}).WithError(err).Warn("Database initialization failed, retrying")
		})

	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}
