package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past verification runs from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := app.journal.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
				return err
			}

			for _, record := range records {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  pass=%d expected-absent=%d fail=%d\n",
					record.StartedAt.Format(time.RFC3339),
					record.BaseURL,
					record.Duration.Round(time.Millisecond),
					record.Pass,
					record.ExpectedAbsent,
					record.Fail,
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the run history as JSON")

	return cmd
}
