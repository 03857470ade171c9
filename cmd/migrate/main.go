// Package main applies the embedded goose migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/config"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo|reset|version|to")
	version := flag.String("version", "", "target version for -cmd=to")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	// Only the database settings matter here, so other validation errors
	// (JWT secret, storage) are ignored.
	cfg, _ := config.Load(*configPath)
	if cfg == nil || cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, config.ErrMissingDatabaseURL)
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env).With("cmd", *cmd)
	ctx := context.Background()

	dbClient, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		logger.Error("failed to get sql handle", "error", err)
		os.Exit(1)
	}

	if *cmd == "to" {
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for -cmd=to")
			os.Exit(1)
		}
		err = db.MigrateTo(ctx, sqlDB, *version)
	} else {
		err = db.Migrate(ctx, sqlDB, *cmd, flag.Args()...)
	}
	if err != nil {
		logger.Error("migration failed", "error", err)
		dbClient.Close()
		os.Exit(1)
	}
	logger.Info("migration finished")
}
