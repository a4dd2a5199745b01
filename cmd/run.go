package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/mcrt/internal/adapters/atomdata"
	"github.com/bnema/mcrt/internal/adapters/metrics"
	summaryadapter "github.com/bnema/mcrt/internal/adapters/render/summary"
	filesource "github.com/bnema/mcrt/internal/adapters/source/file"
	"github.com/bnema/mcrt/internal/application"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath   string
	atomPath     string
	virtual      bool
	outPath      string
	savePackets  string
	packetSource string
	seed         uint64
	asJSON       bool
	metricsAddr  string
	timeout      time.Duration
	quiet        bool
}

func newRunCmd(app *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and record it in the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Configuration file (TOML, YAML or JSON)")
	cmd.Flags().StringVar(&opts.atomPath, "atom-data", "", "Atom data file (defaults to the bundled H/He table)")
	cmd.Flags().BoolVar(&opts.virtual, "virtual", false, "Enable virtual packets in the final pass")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "Run file to record into (defaults to the run history)")
	cmd.Flags().StringVar(&opts.savePackets, "save-packets", "", "Write escaped final-pass packets to this file")
	cmd.Flags().StringVar(&opts.packetSource, "packet-source", "blackbody", "Packet source: blackbody or file:<path>")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Override the configured random seed")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Render JSON output")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port while running")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Override the configured run timeout")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Only log warnings and errors")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSimulation(cmd *cobra.Command, app *app, opts runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := app.logger(cmd.ErrOrStderr(), opts.quiet || opts.asJSON)

	cfg, err := app.configs.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.seed
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Convergence.Timeout = opts.timeout
	}

	atoms, err := app.atoms.Resolve(atomdata.Input{Path: opts.atomPath})
	if err != nil {
		return err
	}

	simOpts := []application.Option{
		application.WithLogger(logger),
		application.WithClock(app.clock),
		application.WithVirtualPackets(opts.virtual),
	}
	src, err := openPacketSource(app, opts.packetSource)
	if err != nil {
		return err
	}
	if src != nil {
		simOpts = append(simOpts, application.WithPacketSource(src))
	}

	sim, err := application.NewSimulation(cfg, atoms, simOpts...)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		recorder := metrics.NewRecorder(cfg.Name)
		if err := recorder.Register(sim); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsCtx, stop := context.WithCancel(ctx)
		defer stop()
		addr, err := recorder.Serve(metricsCtx, opts.metricsAddr, logger)
		if err != nil {
			return err
		}
		logger.Info().Str("addr", addr.String()).Msg("serving metrics")
	}

	var result *application.Result
	execute := func(ctx context.Context, progress func(string)) error {
		if progress != nil {
			if err := sim.AddCallback(application.TriggerIteration, func(_ context.Context, ev application.CallbackEvent) error {
				progress(fmt.Sprintf("iteration %d: metric %.4f", ev.Iteration, ev.Record.Metric))
				return nil
			}); err != nil {
				return err
			}
		}
		var err error
		result, err = sim.Run(ctx)
		return err
	}

	if opts.asJSON || opts.quiet {
		err = execute(ctx, nil)
	} else {
		err = runSimulationSpinner(ctx, cmd.ErrOrStderr(), "Transporting packets...", execute)
	}
	if err != nil {
		var runErr *domain.RunError
		if errors.As(err, &runErr) {
			logger.Error().Int("iteration", runErr.Iteration).Str("phase", runErr.Phase).Int("records", len(runErr.History)).Msg("run aborted")
		}
		return err
	}

	runs, repo, err := app.runService(opts.outPath)
	if err != nil {
		return err
	}
	run, err := runs.Record(ctx, cfg, result)
	if err != nil {
		return err
	}
	logger.Info().Str("run", string(run.ID)).Str("file", repo.Path()).Msg("recorded run")

	saved := 0
	if opts.savePackets != "" {
		saved, err = filesource.Save(app.fs, opts.savePackets, result.FinalPackets)
		if err != nil {
			return err
		}
		logger.Info().Int("packets", saved).Str("file", opts.savePackets).Msg("saved packets")
	}

	if opts.asJSON {
		return writeJSON(cmd, newRunOutput(run, repo.Path(), saved))
	}

	rendered, err := app.runRenderer(run, summaryadapter.RenderOptions{Threshold: cfg.Convergence.Threshold})
	if err != nil {
		return fmt.Errorf("render run: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// openPacketSource returns nil for the built-in blackbody source.
func openPacketSource(app *app, raw string) (ports.PacketSource, error) {
	kind, path, _ := strings.Cut(strings.TrimSpace(raw), ":")
	switch kind {
	case "", "blackbody":
		return nil, nil
	case "file":
		if path == "" {
			return nil, errors.New("packet source file: missing path")
		}
		src, err := filesource.Open(app.fs, path)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown packet source %q", raw)
	}
}

type runOutput struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	File          string            `json:"file"`
	State         string            `json:"state"`
	Iterations    int               `json:"iterations"`
	Metric        float64           `json:"metric"`
	InnerTemp     float64           `json:"inner_temperature"`
	Luminosity    float64           `json:"luminosity"`
	MeanAngstrom  float64           `json:"mean_wavelength_angstrom,omitempty"`
	Virtual       float64           `json:"virtual_luminosity,omitempty"`
	SavedPackets  int               `json:"saved_packets,omitempty"`
	History       []iterationOutput `json:"history"`
	CreatedAtUnix int64             `json:"created_at"`
}

type iterationOutput struct {
	Iteration     int     `json:"iteration"`
	Final         bool    `json:"final,omitempty"`
	State         string  `json:"state"`
	Metric        float64 `json:"metric"`
	TInner        float64 `json:"t_inner"`
	Luminosity    float64 `json:"luminosity"`
	Escaped       float64 `json:"escaped_fraction"`
	StepLimitHits int     `json:"step_limit_hits,omitempty"`
}

func newRunOutput(run domain.Run, file string, saved int) runOutput {
	out := runOutput{
		ID:            string(run.ID),
		Name:          run.Name,
		File:          file,
		State:         run.State.String(),
		SavedPackets:  saved,
		History:       make([]iterationOutput, 0, len(run.History)),
		CreatedAtUnix: run.CreatedAt.Unix(),
	}
	for _, record := range run.History {
		escaped := 0.0
		if record.Energy.Emitted > 0 {
			escaped = record.Energy.Escaped / record.Energy.Emitted
		}
		out.History = append(out.History, iterationOutput{
			Iteration:     record.Iteration,
			Final:         record.Final,
			State:         record.State.String(),
			Metric:        record.Metric,
			TInner:        record.TInner,
			Luminosity:    record.LuminosityEmitted,
			Escaped:       escaped,
			StepLimitHits: record.StepLimitHits,
		})
		if !record.Final {
			out.Iterations++
			out.Metric = record.Metric
			out.InnerTemp = record.TInnerNext
		}
	}
	if run.Spectrum != nil {
		moments := run.Spectrum.Moments()
		out.Luminosity = moments.Luminosity
		if moments.MeanNu > 0 {
			out.MeanAngstrom = physics.FrequencyToWavelength(moments.MeanNu)
		}
	}
	if run.Virtual != nil {
		out.Virtual = run.Virtual.Total()
	}
	return out
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}
