package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"whatsflow/internal/config"
	"whatsflow/internal/database"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (database path is read from it)")
	dbPath := flag.String("db", "./whatsflow.db", "Path to the database file; ignored when -config is set")
	seedPath := flag.String("seed", "", "Optional JSON seed file of accounts, flows and rules to import")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *dbPath
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
		path = cfg.Database.Path
	}

	if err := migrate(ctx, path, *seedPath, logger); err != nil {
		logger.Fatal(err)
	}
}

// migrate brings the schema up to date and optionally imports a seed file.
func migrate(ctx context.Context, dbPath, seedPath string, logger *logrus.Logger) error {
	db, err := database.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.WithField("path", dbPath).Info("Database schema is up to date")

	if seedPath == "" {
		return nil
	}

	seed, err := loadSeed(seedPath)
	if err != nil {
		return err
	}

	report, err := importSeed(ctx, db, seed, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"accounts_created": report.AccountsCreated,
		"accounts_skipped": report.AccountsSkipped,
		"tokens_rotated":   report.TokensRotated,
		"flows":            report.Flows,
		"rules":            report.Rules,
	}).Info("Seed imported")
	return nil
}
