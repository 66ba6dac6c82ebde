package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fintrack/internal/aggregator"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// env is how commands obtain their configuration and logger. Tests replace
// it to run against a temporary data directory.
type env struct {
	loadConfig func() (*config.Config, error)
	newLogger  func(*config.Config) *log.Logger
	now        func() time.Time
}

func defaultEnv() env {
	return env{
		loadConfig: func() (*config.Config, error) {
			cli.LoadEnvFile()
			return cli.LoadAndValidateConfig()
		},
		newLogger: cli.SetupLogger,
		now:       time.Now,
	}
}

// session holds the application wired for the running command.
type session struct {
	env env
	app *cli.App
}

// execute runs one fintrack invocation and always releases what it opened,
// including when the command failed.
func execute(ctx context.Context, e env, args []string, stdout, stderr io.Writer) error {
	s := &session{env: e}
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, s.close())
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Track personal expenses and incomes",
		Long:          `fintrack records expenses and incomes, summarizes them per month and moves the whole ledger in and out of JSON backups.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
	}

	root.AddCommand(
		newExpenseCmd(s),
		newIncomeCmd(s),
		newCategoryCmd(s),
		newSummaryCmd(s),
		newExportCmd(s),
		newImportCmd(s),
		newBackupsCmd(s),
		newRestoreLatestCmd(s),
		newWatchCmd(s),
	)
	return root
}

func (s *session) open(cmd *cobra.Command) error {
	cfg, err := s.env.loadConfig()
	if err != nil {
		return err
	}
	logger := s.env.newLogger(cfg)

	app, err := cli.Bootstrap(cmd.Context(), cfg, logger, aggregator.WithClock(s.env.now))
	if err != nil {
		return fmt.Errorf("start fintrack: %w", err)
	}
	s.app = app
	cmd.SetContext(log.WithContext(cmd.Context(), logger))
	return nil
}

func (s *session) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	// Records entered by day are stamped at local noon.
	return t.Add(12 * time.Hour), nil
}
