package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/content-studio/internal/bootstrap"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Turn unread idea emails into ideas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "ingest", false, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Ingest.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}
