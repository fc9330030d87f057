package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "emuctl",
		Short:         "emuctl: drive and verify a remote 6502 emulation service",
		Long:          "emuctl talks to a stateful 6502 CPU emulation service over HTTP: it creates emulator instances, loads and runs sample programs, verifies execution semantics against known-good results, and probes which enterprise endpoints the deployment actually ships.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	var serverURL string
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Base URL of the emulation service (overrides the config file and EMUCTL_BASE_URL)")
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if serverURL == "" {
			return nil
		}
		return app.setServer(serverURL)
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newProbeCmd(app),
		newVerifyCmd(app),
		newStressCmd(app),
		newSessionCmd(app),
		newMetricsCmd(app),
		newRunsCmd(app),
	)

	return rootCmd
}
