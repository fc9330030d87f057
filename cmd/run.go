package cmd

import (
	"context"

	"github.com/six502/emuctl/internal/application"
	"github.com/six502/emuctl/internal/domain"
	"github.com/spf13/cobra"
)

func newRunCmd(app *app) *cobra.Command {
	var (
		skipEnterprise bool
		sessions       int
		steps          int
		asJSON         bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full verification suite against the service",
		Long:  "run probes the enterprise surface, verifies execution semantics with the sample program catalogue, drives several instances in parallel, cleans up every instance it created, and appends the outcome to the run journal.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := app.newRunner()

			var report *domain.Report
			runErr := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Running verification suite...", func(ctx context.Context) error {
				var err error
				report, err = runner.Run(ctx, application.RunOptions{
					SkipEnterprise: skipEnterprise,
					Stress: application.StressOptions{
						Sessions: sessions,
						Steps:    steps,
					},
				})
				return err
			})

			if report != nil {
				if err := writeReportOutput(cmd, app, report, verbose, asJSON); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}

			return reportErr(report)
		},
	}

	cmd.Flags().BoolVar(&skipEnterprise, "skip-enterprise", false, "Skip the enterprise capability probes")
	cmd.Flags().IntVar(&sessions, "sessions", 0, "Parallel sessions for the stress phase (default 3)")
	cmd.Flags().IntVar(&steps, "steps", 0, "Execution steps per stressed session (default 20)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include detail lines for passing checks")

	return cmd
}
