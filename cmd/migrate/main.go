package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/logging"
	"github.com/padhloyaar/padhloyaar-api/migrations"
)

type settings struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Env         string `envconfig:"ENV" default:"dev"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

var (
	downSteps int
	log       *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply the PadhLoYaar database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("schema already up to date")
				return nil
			}
			if err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations (one step by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downSteps <= 0 {
			return fmt.Errorf("--steps must be positive")
		}
		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Steps(-downSteps)
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("nothing to roll back")
				return nil
			}
			if err != nil {
				return err
			}
			log.Info("rolled back", zap.Int("steps", downSteps))
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
			return nil
		})
	},
}

func init() {
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

// driverURL points golang-migrate at its pgx v5 driver.
func driverURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func withMigrator(fn func(m *migrate.Migrate) error) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	var s settings
	if err := envconfig.Process("", &s); err != nil {
		return err
	}

	l, err := logging.New(s.Env, s.LogLevel)
	if err != nil {
		return err
	}
	log = l
	defer log.Sync()

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, driverURL(s.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn("close migrator", zap.NamedError("source", srcErr), zap.NamedError("db", dbErr))
		}
	}()

	return fn(m)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
