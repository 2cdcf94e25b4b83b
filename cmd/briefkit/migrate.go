package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	if subcommand == "help" || subcommand == "-h" || subcommand == "--help" {
		printMigrateUsage()
		return
	}

	// goto / force / steps 的版本号在 flag 之前
	positional, flagArgs := splitPositional(args[1:])

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	all := fs.Bool("all", false, "Rollback all migrations (down only)")
	_ = fs.Parse(flagArgs)
	positional = append(positional, fs.Args()...)

	if subcommand == "down" && *all {
		subcommand = "down-all"
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}

	cli := migration.NewCLI(migrator)
	runErr := cli.Run(context.Background(), subcommand, positional)
	_ = migrator.Close()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", subcommand, runErr)
		if strings.HasPrefix(runErr.Error(), "unknown migrate subcommand") {
			printMigrateUsage()
		}
		os.Exit(1)
	}
}

// splitPositional separates leading positional arguments from flags.
func splitPositional(args []string) (positional, rest []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") && !isNumber(a) {
			return positional, args[i:]
		}
		positional = append(positional, a)
	}
	return positional, nil
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// createMigrator builds a migrator from --db-type/--db-url or the config file.
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, zap.NewNop())
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}

	return migration.NewMigratorFromConfig(cfg, initLogger(cfg.Log))
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  briefkit migrate <subcommand> [version] [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration (--all to rollback everything)
  status    Show migration status
  version   Show current migration version
  info      Show current version and pending count
  goto      Migrate to a specific version
  steps     Apply (n > 0) or rollback (n < 0) n migrations
  force     Force set migration version (use with caution)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  briefkit migrate up
  briefkit migrate up --config /etc/briefkit/config.yaml
  briefkit migrate down
  briefkit migrate status
  briefkit migrate goto 1
  briefkit migrate force 0
  briefkit migrate up --db-type sqlite --db-url "file:./data/briefkit.db?mode=rwc"`)
}
