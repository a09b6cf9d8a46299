package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"immo/internal/cli"
	"immo/internal/config"
	"immo/internal/log"
)

// session is loaded once per invocation by the root command.
type session struct {
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:           "immo",
		Short:         "Service charge statements for rental properties",
		Long:          "immo apportions a property's annual operating costs to its tenants and manages the resulting statements.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := cli.SetupLogger(cfg.LogLevel, log.ComponentCLI)
			if err != nil {
				return err
			}
			s.cfg, s.logger = cfg, logger
			return nil
		},
	}

	root.AddCommand(newServeCmd(s))
	root.AddCommand(newBillCmd(s))
	root.AddCommand(newStatementsCmd(s))
	root.AddCommand(newBackupCmd(s))
	root.AddCommand(newRestoreCmd(s))
	root.AddCommand(newBookAnnualCostsCmd(s))
	return root
}

// withApp bootstraps the services, runs fn and releases the backend.
func (s *session) withApp(ctx context.Context, fn func(app *cli.App) error) error {
	app, err := cli.Bootstrap(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			s.logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()
	return fn(app)
}
