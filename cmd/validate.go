package cmd

import (
	"fmt"

	"github.com/bnema/mcrt/internal/adapters/atomdata"
	"github.com/bnema/mcrt/internal/application"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/spf13/cobra"
)

func newValidateCmd(app *app) *cobra.Command {
	var (
		configPath string
		atomPath   string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration against the atom data without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.configs.Load(configPath)
			if err != nil {
				return reportConfigurationErrors(cmd, err)
			}

			atoms, err := app.atoms.Resolve(atomdata.Input{Path: atomPath})
			if err != nil {
				return err
			}

			sim, err := application.NewSimulation(cfg, atoms)
			if err != nil {
				return reportConfigurationErrors(cmd, err)
			}

			geometry := sim.Geometry()
			out := cmd.OutOrStdout()
			_, err = fmt.Fprintf(out,
				"configuration %q is valid\nshells: %d\nr_inner: %.4e cm\nr_outer: %.4e cm\nt_inner: %.0f K\nfingerprint: %s\n",
				cfg.Name,
				geometry.NumShells(),
				geometry.InnerRadius(),
				geometry.OuterRadius(),
				sim.InitialInnerTemperature(),
				cfg.Fingerprint(),
			)
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Configuration file (TOML, YAML or JSON)")
	cmd.Flags().StringVar(&atomPath, "atom-data", "", "Atom data file (defaults to the bundled H/He table)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// reportConfigurationErrors lists every configuration problem on stdout
// before returning err.
func reportConfigurationErrors(cmd *cobra.Command, err error) error {
	problems := configurationErrors(err)
	if len(problems) == 0 {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "configuration is invalid (%d problems)\n", len(problems))
	for _, problem := range problems {
		fmt.Fprintf(out, "  %s: %s\n", problem.Field, problem.Reason)
	}
	return err
}

// configurationErrors walks wrapped and joined errors for every
// ConfigurationError.
func configurationErrors(err error) []*domain.ConfigurationError {
	switch e := err.(type) {
	case *domain.ConfigurationError:
		return []*domain.ConfigurationError{e}
	case interface{ Unwrap() []error }:
		var out []*domain.ConfigurationError
		for _, inner := range e.Unwrap() {
			out = append(out, configurationErrors(inner)...)
		}
		return out
	case interface{ Unwrap() error }:
		return configurationErrors(e.Unwrap())
	default:
		return nil
	}
}
