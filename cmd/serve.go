package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/content-studio/internal/bootstrap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the operator API, the public blog feed and the cron trigger
endpoints. When scheduler.enabled is set the publish and ingest jobs also run
in-process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "serve", true, func(ctx context.Context, app *bootstrap.App) error {
				return app.Serve(ctx)
			})
		},
	}
}
