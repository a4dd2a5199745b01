package cmd

import (
	"fmt"

	summaryadapter "github.com/bnema/mcrt/internal/adapters/render/summary"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	var (
		file      string
		runID     string
		list      bool
		asJSON    bool
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long:  "history renders the newest recorded run, a run picked with --run, or lists every run in the run file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, repo, err := app.runService(file)
			if err != nil {
				return err
			}

			if list {
				all, err := runs.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					out := make([]runOutput, 0, len(all))
					for _, run := range all {
						out = append(out, newRunOutput(run, repo.Path(), 0))
					}
					return writeJSON(cmd, out)
				}
				return writeRunList(cmd, all)
			}

			var run domain.Run
			if runID != "" {
				run, err = runs.Get(cmd.Context(), domain.RunID(runID))
			} else {
				run, err = runs.Latest(cmd.Context())
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, newRunOutput(run, repo.Path(), 0))
			}

			rendered, err := app.runRenderer(run, summaryadapter.RenderOptions{Threshold: threshold})
			if err != nil {
				return fmt.Errorf("render run: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Run file (defaults to the run history)")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (defaults to the newest run)")
	cmd.Flags().BoolVar(&list, "list", false, "List every recorded run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	cmd.Flags().Float64Var(&threshold, "threshold", domain.DefaultConfiguration().Convergence.Threshold, "Metric colour threshold")
	cmd.MarkFlagsMutuallyExclusive("list", "run")

	return cmd
}

func writeRunList(cmd *cobra.Command, runs []domain.Run) error {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "no runs recorded")
		return err
	}

	for _, run := range runs {
		iterations := 0
		for _, record := range run.History {
			if !record.Final {
				iterations++
			}
		}
		luminosity := 0.0
		if run.Spectrum != nil {
			luminosity = run.Spectrum.Total()
		}
		if _, err := fmt.Fprintf(out, "%s  %-16s  %2d iterations  L %.3e erg/s\n", run.ID, run.State, iterations, luminosity); err != nil {
			return err
		}
	}
	return nil
}
