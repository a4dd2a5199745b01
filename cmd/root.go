package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mcrt",
		Short:         "Monte Carlo radiative transfer for supernova ejecta",
		Long:          "mcrt iterates the plasma state of a homologously expanding ejecta model with Monte Carlo packets until it converges, then synthesises the emergent spectrum.",
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

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newValidateCmd(app),
		newHistoryCmd(app),
		newAtomsCmd(app),
	)

	return rootCmd
}
