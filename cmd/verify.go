package cmd

import (
	"github.com/spf13/cobra"
)

func newVerifyCmd(app *app) *cobra.Command {
	var (
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify execution semantics with the sample program catalogue",
		Long:  "verify loads each catalogue program into a fresh instance, runs it to the BRK halt, and compares registers, flags, and memory against the known-good results. Any divergence is a failure.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.newRunner().Verify(cmd.Context())

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

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include detail lines for passing checks")

	return cmd
}
