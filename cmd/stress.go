package cmd

import (
	"github.com/six502/emuctl/internal/application"
	"github.com/spf13/cobra"
)

func newStressCmd(app *app) *cobra.Command {
	var (
		sessions int
		steps    int
		asJSON   bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Drive several emulator instances in parallel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.newRunner().StressOnly(cmd.Context(), application.StressOptions{
				Sessions: sessions,
				Steps:    steps,
			})

			if report != nil {
				if writeErr := writeReportOutput(cmd, app, report, verbose, asJSON); writeErr != nil {
					return writeErr
				}
			}
			if err != nil {
				return err
			}

			return reportErr(report)
		},
	}

	cmd.Flags().IntVar(&sessions, "sessions", 0, "Parallel sessions (default 3)")
	cmd.Flags().IntVar(&steps, "steps", 0, "Execution steps per session (default 20)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include detail lines for passing checks")

	return cmd
}
