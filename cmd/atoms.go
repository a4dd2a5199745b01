package cmd

import (
	"fmt"

	"github.com/bnema/mcrt/internal/adapters/atomdata"
	"github.com/spf13/cobra"
)

func newAtomsCmd(app *app) *cobra.Command {
	var (
		atomPath string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "atoms",
		Short: "Summarise an atom data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			atoms, err := app.atoms.Resolve(atomdata.Input{Path: atomPath})
			if err != nil {
				return err
			}

			summary := atomdata.Summarize(atoms)
			if asJSON {
				return writeJSON(cmd, summary)
			}

			source := atomPath
			if source == "" {
				source = "bundled"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "atom data: %s\n", source)
			fmt.Fprintf(out, "elements: %d  ions: %d  lines: %d\n", summary.Elements, len(summary.Ions), summary.Lines)
			if summary.Lines > 0 {
				fmt.Fprintf(out, "wavelengths: %.2f - %.2f angstrom\n", summary.MinWavelength, summary.MaxWavelength)
			}
			for _, ion := range summary.Ions {
				if _, err := fmt.Fprintf(out, "  %-2s %-3s levels %3d  lines %4d  chi %7.3f eV\n",
					ion.Symbol, romanCharge(ion.Charge), ion.Levels, ion.Lines, ion.IonizationEnergy); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&atomPath, "atom-data", "", "Atom data file (defaults to the bundled H/He table)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

// romanCharge writes an ionization stage in spectroscopic notation, so a
// neutral atom is I.
func romanCharge(charge int) string {
	numerals := []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"}
	if charge >= 0 && charge < len(numerals) {
		return numerals[charge]
	}
	return fmt.Sprintf("+%d", charge)
}
