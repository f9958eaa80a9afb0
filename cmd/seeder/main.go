//cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/config"
	"github.com/unclebandit/spinwin-backend/internal/db"
	"github.com/unclebandit/spinwin-backend/internal/logging"
)

// The seeder applies the replica store schema to postgres.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	dir := flag.String("dir", "migrations", "directory holding *.sql files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	files, err := migrationFiles(*dir)
	if err != nil {
		logger.Fatal("failed to list migrations", zap.Error(err))
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer conn.Close()

	if err := apply(ctx, conn, files, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("database schema is up to date", zap.Int("files", len(files)))
}

// migrationFiles returns the *.sql files in dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func apply(ctx context.Context, conn *sql.DB, files []string, logger *zap.Logger) error {
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", file, err)
		}
		logger.Info("applied migration", zap.String("file", file))
	}
	return nil
}
