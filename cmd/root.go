// Package cmd implements the content-studio command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/bootstrap"
	"github.com/jonesrussell/content-studio/internal/config"
)

// version can be set at build time via -ldflags.
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           "content-studio",
		Short:         "Draft, queue and publish blog and LinkedIn content",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command until SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $CONFIG_PATH or ./"+bootstrap.DefaultConfigPath+")")

	rootCmd.AddCommand(
		newServeCmd(),
		newPublishCmd(),
		newIngestCmd(),
		newSchedulerCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
}

// setup loads config and a logger for one command.
func setup(name string, serve bool) (*config.Config, infralogger.Logger, error) {
	cfg, err := bootstrap.LoadConfig(cfgFile, serve)
	if err != nil {
		return nil, nil, err
	}
	if version != "dev" {
		cfg.Service.Version = version
	}
	log, err := bootstrap.CreateLogger(cfg, name)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// withApp runs fn against a fully wired App and closes it afterwards.
func withApp(cmd *cobra.Command, name string, serve bool, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, log, err := setup(name, serve)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(cmd.Context(), cfg, log)
	if err != nil {
		log.Error("Startup failed", infralogger.Error(err))
		return err
	}
	defer app.Close()

	return fn(cmd.Context(), app)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "content-studio version %s\n", version)
		},
	}
}
