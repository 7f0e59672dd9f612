package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mailmart/internal/config"
	"mailmart/internal/infrastructure"
	"mailmart/internal/repository"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "marketctl",
		Short:        "Operational tooling for the mailmart marketplace",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), sweepCmd())
	return root
}

func migrateCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:       "migrate <up|down|status|redo> [args]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "redo"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := repository.RunMigrations(ctx, cfg.DSN(), args[0], args[1:]...); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration finished successfully")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall migration timeout")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation sweep and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat)

			core, cleanup, err := infrastructure.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, runErr := core.Sweeper.RunNow(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			return runErr
		},
	}
}
