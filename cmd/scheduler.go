package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/bootstrap"
)

const schedulerStopTimeout = 30 * time.Second

func newSchedulerCmd() *cobra.Command {
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the publish and ingest jobs without the HTTP API",
		Long: `Run the cron schedules from the scheduler section of the config until
interrupted. Use --list to print each job's next run and exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "scheduler", false, func(ctx context.Context, app *bootstrap.App) error {
				sched, err := app.NewScheduler()
				if err != nil {
					return err
				}

				if listOnly {
					now := time.Now()
					for _, name := range sched.Jobs() {
						next, ok := sched.Next(name, now)
						if !ok {
							fmt.Fprintf(cmd.OutOrStdout(), "%-18s manual only\n", name)
							continue
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", name, next.Format(time.RFC3339))
					}
					return nil
				}

				sched.Start()
				app.Log.Info("Scheduler running", infralogger.Strings("jobs", sched.Jobs()))
				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schedulerStopTimeout)
				defer cancel()
				return sched.Stop(stopCtx)
			})
		},
	}

	cmd.Flags().BoolVar(&listOnly, "list", false, "print the next run of each job and exit")
	return cmd
}
