package transport

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"time"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/bnema/mcrt/internal/random"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// batchesPerWorker splits a pass finer than the worker count so uneven
// trajectories balance out.
const batchesPerWorker = 4

type Options struct {
	Workers               int
	MaxSteps              int
	ReemissionProbability float64
	StepLimitWarnRate     float64
	Spectrum              domain.SpectrumConfig
	// Virtual enables virtual packets for the pass when Virtual.Enabled.
	Virtual domain.VirtualConfig
}

// Pass is the outcome of one transport pass.
type Pass struct {
	Iteration int
	TimeStep  float64
	Packets   []domain.Packet
	// Events are in canonical (packet, sequence) order.
	Events        []domain.InteractionEvent
	Energy        domain.EnergyBudget
	Spectrum      *domain.Spectrum
	Reabsorbed    *domain.Spectrum
	Virtual       *domain.Spectrum
	VirtualLog    []VirtualPacket
	Interactions  map[domain.InteractionType]int
	StepLimitHits int
	Duration      time.Duration
}

// EscapedLuminosity is the luminosity leaving the outer boundary.
func (p *Pass) EscapedLuminosity() float64 {
	return p.Energy.Escaped / p.TimeStep
}

type Runner struct {
	opacity ports.OpacityModel
	opts    Options
	seed    uint64
	logger  zerolog.Logger
}

func NewRunner(opacity ports.OpacityModel, opts Options, seed uint64, logger zerolog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		opacity: opacity,
		opts:    opts,
		seed:    seed,
		logger:  logger.With().Str("component", "transport").Logger(),
	}
}

// Run propagates every packet over the frozen plasma state. External
// cancellation is ignored once a pass has started so that the pass always
// conserves energy; a geometry error stops the remaining workers.
func (r *Runner) Run(ctx context.Context, plasma *domain.PlasmaState, packets []domain.Packet, iteration int, timeStep float64, virtual bool) (*Pass, error) {
	start := time.Now()

	var tracer *VirtualTracer
	if virtual && r.opts.Virtual.Enabled {
		tracer = NewVirtualTracer(r.opacity, plasma, r.opts.Virtual.PerInteraction)
	}
	engine := NewEngine(r.opacity, plasma, r.opts.ReemissionProbability, r.opts.MaxSteps, tracer)

	trajectories := make([]Trajectory, len(packets))
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.opts.Workers)

	batch := max(1, (len(packets)+r.opts.Workers*batchesPerWorker-1)/(r.opts.Workers*batchesPerWorker))
	for lo := 0; lo < len(packets); lo += batch {
		hi := min(lo+batch, len(packets))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if gctx.Err() != nil {
					return nil
				}
				p := packets[i]
				rng := random.NewStream(r.seed, random.PurposeTransport, iteration, p.ID)
				var vrng ports.Random
				if tracer != nil {
					vrng = random.NewStream(r.seed, random.PurposeVirtual, iteration, p.ID)
				}
				tr, err := engine.Propagate(p, rng, vrng)
				if err != nil {
					return fmt.Errorf("propagate packet %d: %w", p.ID, err)
				}
				trajectories[i] = tr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pass := r.collect(trajectories, iteration, timeStep, tracer != nil)
	pass.Duration = time.Since(start)

	r.logger.Debug().
		Int("iteration", iteration).
		Int("packets", len(packets)).
		Int("events", len(pass.Events)).
		Float64("escaped", pass.Energy.Escaped).
		Float64("absorbed", pass.Energy.Absorbed).
		Float64("reabsorbed", pass.Energy.Reabsorbed).
		Dur("duration", pass.Duration).
		Msg("transport pass finished")

	if residual := pass.Energy.Residual(); math.Abs(residual) > 1e-9*pass.Energy.Emitted {
		r.logger.Error().Float64("residual", residual).Int("iteration", iteration).Msg("pass energy budget does not balance")
	}

	if pass.StepLimitHits > 0 {
		rate := float64(pass.StepLimitHits) / float64(len(packets))
		r.logger.Warn().
			Int("iteration", iteration).
			Int("hits", pass.StepLimitHits).
			Float64("rate", rate).
			Msg("packets hit the step limit")
		if rate > r.opts.StepLimitWarnRate {
			return pass, &domain.StepLimitError{Hits: pass.StepLimitHits, Packets: len(packets), MaxRate: r.opts.StepLimitWarnRate}
		}
	}

	return pass, nil
}

// collect reduces the trajectories sequentially in packet order.
func (r *Runner) collect(trajectories []Trajectory, iteration int, timeStep float64, virtual bool) *Pass {
	sc := r.opts.Spectrum
	pass := &Pass{
		Iteration:    iteration,
		TimeStep:     timeStep,
		Packets:      make([]domain.Packet, len(trajectories)),
		Spectrum:     domain.NewSpectrum(sc.NuMin, sc.NuMax, sc.Bins),
		Reabsorbed:   domain.NewSpectrum(sc.NuMin, sc.NuMax, sc.Bins),
		Interactions: make(map[domain.InteractionType]int),
	}
	if virtual {
		pass.Virtual = domain.NewSpectrum(sc.NuMin, sc.NuMax, r.opts.Virtual.Bins)
	}

	total := 0
	for _, tr := range trajectories {
		total += len(tr.Events)
	}
	pass.Events = make([]domain.InteractionEvent, 0, total)

	for i, tr := range trajectories {
		p := tr.Packet
		pass.Packets[i] = p
		pass.Events = append(pass.Events, tr.Events...)
		for _, ev := range tr.Events {
			pass.Interactions[ev.Type]++
		}
		if tr.StepLimited {
			pass.StepLimitHits++
		}

		pass.Energy.Emitted += p.Energy
		switch p.Status {
		case domain.StatusEscaped:
			pass.Energy.Escaped += p.Energy
			pass.Spectrum.Add(p.Nu, p.Energy/timeStep)
		case domain.StatusReabsorbed:
			pass.Energy.Reabsorbed += p.Energy
			pass.Reabsorbed.Add(p.Nu, p.Energy/timeStep)
		case domain.StatusAbsorbed:
			pass.Energy.Absorbed += p.Energy
		}

		for _, vp := range tr.Virtual {
			pass.Virtual.Add(vp.Nu, vp.Escaped()/timeStep)
			if len(pass.VirtualLog) < r.opts.Virtual.LogLimit {
				pass.VirtualLog = append(pass.VirtualLog, vp)
			}
		}
	}

	slices.SortFunc(pass.Events, func(a, b domain.InteractionEvent) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})

	return pass
}
