// Command backfill-budgets creates the default disabled budget for events that
// were stored without one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/eventnest/eventnest/internal/app"
	"github.com/eventnest/eventnest/internal/database"
	"github.com/eventnest/eventnest/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("backfill-budgets", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		configPath string
		dryRun     bool
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	fs.BoolVar(&dryRun, "dry-run", false, "List events without a budget and change nothing")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrate database: %w", err)
	}

	access, err := services.NewAccessService(db)
	if err != nil {
		return err
	}
	budgets, err := services.NewBudgetService(db, access)
	if err != nil {
		return err
	}

	result, err := budgets.CreateMissing(ctx, dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "%d event(s) without a budget\n", len(result.EventIDs))
	} else {
		fmt.Fprintf(out, "created %d budget(s)\n", result.Created)
	}
	for _, id := range result.EventIDs {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

func loadConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return app.LoadConfig(path)
}
