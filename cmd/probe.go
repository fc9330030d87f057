package cmd

import (
	"github.com/spf13/cobra"
)

func newProbeCmd(app *app) *cobra.Command {
	var (
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe which enterprise endpoints the deployment ships",
		Long:  "probe sweeps the auth, API key, instance management, snapshot, and metrics endpoints. An absent endpoint is an expected outcome on the open-source build, not a failure.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.newRunner().Probe(cmd.Context())

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
