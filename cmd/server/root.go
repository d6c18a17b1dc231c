package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/skyhub/internal/config"
	sqliteRepo "github.com/sakif/skyhub/internal/repository/sqlite"
	"github.com/sakif/skyhub/internal/server"
	"github.com/sakif/skyhub/internal/service"
)

// rootOptions are flags shared by every command. Set flags win over the
// environment.
type rootOptions struct {
	dbPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "SkyHub academic social network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	return cmd
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	return cfg, logger, nil
}

// fail logs err and returns it so cobra exits non-zero.
func fail(logger *slog.Logger, msg string, err error) error {
	logger.Error(msg, slog.String("error", err.Error()))
	return fmt.Errorf("%s: %w", msg, err)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cfg.SessionSecret == "" {
				return fail(logger, "refusing to start", fmt.Errorf("SESSION_SECRET is not set"))
			}

			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fail(logger, "failed to create server", err)
			}
			if err := srv.Start(cmd.Context()); err != nil {
				return fail(logger, "server error", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides PORT)")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}

			// Opening the database applies the schema.
			db, err := sqliteRepo.New(cfg.DBPath)
			if err != nil {
				return fail(logger, "migration failed", err)
			}
			defer db.Close()

			logger.Info("database schema up to date", slog.String("database", cfg.DBPath))
			return nil
		},
	}
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-likes",
		Short: "Reset every post's like counter to its true number of likes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			return reconcileLikes(cmd.Context(), cfg.DBPath, logger, cmd)
		},
	}
}

func reconcileLikes(ctx context.Context, dbPath string, logger *slog.Logger, cmd *cobra.Command) error {
	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return fail(logger, "opening database", err)
	}
	defer db.Close()

	fixed, err := service.NewInteractionService(db, logger).ReconcileLikeCounts(ctx)
	if err != nil {
		return fail(logger, "reconciliation failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "corrected %d post(s)\n", fixed)
	return nil
}
