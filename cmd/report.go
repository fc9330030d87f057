package cmd

import (
	"encoding/json"
	"fmt"

	reportadapter "github.com/six502/emuctl/internal/adapters/render/report"
	"github.com/six502/emuctl/internal/domain"
	"github.com/spf13/cobra"
)

func writeReportOutput(cmd *cobra.Command, app *app, report *domain.Report, verbose, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	rendered, err := app.reportRenderer(report, reportadapter.RenderOptions{
		Now:     app.clock.Now(),
		Verbose: verbose,
	})
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// reportErr converts failed checks into a non-zero exit.
func reportErr(report *domain.Report) error {
	pass, absent, fail := report.Counts()
	if fail == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d checks failed", fail, pass+absent+fail)
}
