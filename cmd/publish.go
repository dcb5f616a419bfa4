package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/content-studio/internal/bootstrap"
	"github.com/jonesrussell/content-studio/internal/domain"
)

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <type>",
		Short: "Run one publish cycle",
		Long: `Run one publish cycle for a content type (blog or linkedin) and print
the result as JSON. This is the same cycle the cron endpoint runs.`,
		Example: `  # Publish the head of the LinkedIn queue
  content-studio publish linkedin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseContentType(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, "publish", false, func(ctx context.Context, app *bootstrap.App) error {
				res, runErr := app.Publish.Run(ctx, t)
				if res != nil {
					if printErr := printJSON(cmd, res); printErr != nil {
						return printErr
					}
				}
				return runErr
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
