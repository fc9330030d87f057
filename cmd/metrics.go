package cmd

import (
	"errors"
	"fmt"

	"github.com/six502/emuctl/internal/domain"
	"github.com/spf13/cobra"
)

func newMetricsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Fetch the service's Prometheus metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, outcome := app.transport.Text(cmd.Context(), "/metrics")
			switch outcome.Kind {
			case domain.OutcomeNotImplemented:
				return errors.New("metrics endpoint not built on this deployment")
			case domain.OutcomeError:
				return fmt.Errorf("fetch metrics: %w", outcome.Err)
			}

			_, err := fmt.Fprint(cmd.OutOrStdout(), body)
			return err
		},
	}
}
