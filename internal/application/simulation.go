package application

import (
	"context"
	"fmt"
	"maps"
	"math"

	"github.com/bnema/mcrt/internal/convergence"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/estimator"
	"github.com/bnema/mcrt/internal/opacity"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/bnema/mcrt/internal/plasma"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/bnema/mcrt/internal/source"
	"github.com/bnema/mcrt/internal/transport"
	"github.com/rs/zerolog"
)

// Run phases reported in RunError.
const (
	PhaseTransport   = "transport"
	PhaseCallback    = "callback"
	PhaseConvergence = "convergence"
	PhaseCancelled   = "cancelled"
	PhaseFinal       = "final"
)

// Result is the outcome of a completed run.
type Result struct {
	State      domain.ConvergenceState
	Spectrum   *domain.Spectrum
	Reabsorbed *domain.Spectrum
	Virtual    *domain.Spectrum
	VirtualLog []transport.VirtualPacket
	History    []domain.IterationRecord
	Plasma     *domain.PlasmaState
	// FinalPackets are the terminal packets of the final pass.
	FinalPackets []domain.Packet
}

type Option func(*Simulation)

func WithPacketSource(src ports.PacketSource) Option {
	return func(s *Simulation) { s.source = src }
}

func WithOpacityModel(model ports.OpacityModel) Option {
	return func(s *Simulation) { s.opacity = model }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Simulation) { s.logger = logger }
}

func WithClock(clock ports.Clock) Option {
	return func(s *Simulation) { s.clock = clock }
}

// WithVirtualPackets turns on virtual packets for the final pass regardless
// of the configuration.
func WithVirtualPackets(enabled bool) Option {
	return func(s *Simulation) { s.virtual = enabled }
}

// Simulation wires plasma, opacity, source, transport, estimator and
// convergence control for one configuration. It is not safe for concurrent
// use; build one per run.
type Simulation struct {
	cfg       domain.Configuration
	atoms     *domain.AtomData
	geometry  domain.Geometry
	solver    *plasma.Solver
	source    ports.PacketSource
	opacity   ports.OpacityModel
	estimator *estimator.Estimator
	clock     ports.Clock
	logger    zerolog.Logger
	virtual   bool
	callbacks *callbacks
}

// NewSimulation validates its inputs; every rejection is a configuration or
// atom data error raised before any packet is transported.
func NewSimulation(cfg domain.Configuration, atoms *domain.AtomData, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}
	if atoms == nil {
		return nil, fmt.Errorf("%w: no atom data", domain.ErrAtomData)
	}
	if err := atoms.Validate(); err != nil {
		return nil, fmt.Errorf("validate atom data: %w", err)
	}

	geometry, err := domain.NewGeometry(cfg.Supernova.TimeExplosion, cfg.Model.Velocities)
	if err != nil {
		return nil, fmt.Errorf("build geometry: %w", err)
	}
	solver, err := plasma.NewSolver(cfg, atoms, geometry)
	if err != nil {
		return nil, fmt.Errorf("build plasma solver: %w", err)
	}

	s := &Simulation{
		cfg:       cfg,
		atoms:     atoms,
		geometry:  geometry,
		solver:    solver,
		estimator: estimator.New(geometry),
		logger:    zerolog.Nop(),
		callbacks: newCallbacks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.virtual && !cfg.Virtual.Enabled {
		if err := cfg.Virtual.Validate(); err != nil {
			return nil, fmt.Errorf("validate configuration: %w", err)
		}
	}
	if s.source == nil {
		s.source = source.NewBlackbody()
	}
	if s.opacity == nil {
		s.opacity = opacity.NewSobolev(cfg.Plasma.LineInteraction, solver.Lines())
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	s.logger = s.logger.With().Str("component", "simulation").Str("run", cfg.Name).Logger()

	return s, nil
}

// AddCallback registers fn for trigger. Callbacks run synchronously in
// registration order; the first failure aborts the run.
func (s *Simulation) AddCallback(trigger Trigger, fn Callback) error {
	return s.callbacks.add(trigger, fn)
}

func (s *Simulation) Configuration() domain.Configuration {
	return s.cfg
}

func (s *Simulation) Geometry() domain.Geometry {
	return s.geometry
}

// InitialInnerTemperature is the configured photosphere temperature, or
// the one radiating the requested luminosity.
func (s *Simulation) InitialInnerTemperature() float64 {
	if s.cfg.Supernova.InnerTemperature > 0 {
		return s.cfg.Supernova.InnerTemperature
	}
	return physics.BlackbodyTemperature(s.geometry.InnerRadius(), s.cfg.Supernova.LuminosityRequested)
}

// Run iterates the plasma state to a decision and synthesises the final
// spectrum. Cancellation and the configured timeout are honoured between
// iterations only.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	if timeout := s.cfg.Convergence.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runner := transport.NewRunner(s.opacity, s.transportOptions(), s.cfg.Seed, s.logger)
	ctrl := convergence.NewController(s.cfg.Convergence)
	state := s.solver.Initial(s.InitialInnerTemperature())
	var history []domain.IterationRecord

	fail := func(iteration int, phase string, err error) (*Result, error) {
		return nil, &domain.RunError{Iteration: iteration, Phase: phase, History: history, Err: err}
	}

	iteration := 0
	for !ctrl.State().Terminal() {
		if err := ctx.Err(); err != nil {
			ctrl.Cancel()
			return fail(iteration, PhaseCancelled, err)
		}
		iteration++
		started := s.clock.Now()

		pass, err := s.pass(ctx, runner, state, iteration, s.cfg.Packets.Count, false)
		if err != nil {
			return fail(iteration, PhaseTransport, err)
		}
		if err := s.callbacks.fire(ctx, CallbackEvent{Trigger: TriggerTransport, Iteration: iteration, History: history, Pass: pass, Plasma: state}); err != nil {
			return fail(iteration, PhaseCallback, err)
		}

		summary := s.estimator.Aggregate(pass.Events, len(pass.Packets), pass.TimeStep)
		next := s.estimate(state, summary, pass)
		metric := convergence.Metric(s.cfg.Convergence.Metric, snapshot(state), next)
		status := ctrl.Observe(iteration, metric)

		damped := s.damp(state, next)
		record := s.record(iteration, status, metric, state, next, damped, pass)
		record.Duration = s.clock.Now().Sub(started)
		history = append(history, record)

		s.logger.Info().
			Int("iteration", iteration).
			Str("state", status.String()).
			Float64("metric", metric).
			Float64("t_inner", state.TInner).
			Float64("l_emitted", record.LuminosityEmitted).
			Msg("iteration finished")

		if err := s.callbacks.fire(ctx, CallbackEvent{Trigger: TriggerIteration, Iteration: iteration, Record: record, History: history, Pass: pass, Plasma: state}); err != nil {
			return fail(iteration, PhaseCallback, err)
		}

		if status == domain.StateDiverged {
			return fail(iteration, PhaseConvergence, ctrl.Divergence())
		}
		if !status.Terminal() {
			state = s.solver.Compute(damped.TInner, damped.TRad, damped.W)
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(iteration, PhaseCancelled, err)
	}

	started := s.clock.Now()
	final, err := s.pass(ctx, runner, state, iteration+1, s.cfg.Packets.LastCount, true)
	if err != nil {
		return fail(iteration+1, PhaseFinal, err)
	}
	record := s.record(iteration+1, ctrl.State(), history[len(history)-1].Metric, state, snapshot(state), snapshot(state), final)
	record.Final = true
	record.Duration = s.clock.Now().Sub(started)
	history = append(history, record)

	if err := s.callbacks.fire(ctx, CallbackEvent{Trigger: TriggerFinal, Iteration: iteration + 1, Record: record, History: history, Pass: final, Plasma: state}); err != nil {
		return fail(iteration+1, PhaseCallback, err)
	}

	s.logger.Info().
		Str("state", ctrl.State().String()).
		Int("iterations", iteration).
		Float64("luminosity", final.Spectrum.Total()).
		Msg("run finished")

	return &Result{
		State:        ctrl.State(),
		Spectrum:     final.Spectrum,
		Reabsorbed:   final.Reabsorbed,
		Virtual:      final.Virtual,
		VirtualLog:   final.VirtualLog,
		History:      history,
		Plasma:       state,
		FinalPackets: final.Packets,
	}, nil
}

func (s *Simulation) transportOptions() transport.Options {
	virtual := s.cfg.Virtual
	virtual.Enabled = virtual.Enabled || s.virtual
	return transport.Options{
		Workers:               s.cfg.Workers,
		MaxSteps:              s.cfg.Packets.MaxSteps,
		ReemissionProbability: s.cfg.Plasma.ReemissionProbability,
		StepLimitWarnRate:     s.cfg.Packets.StepLimitWarnRate,
		Spectrum:              s.cfg.Spectrum,
		Virtual:               virtual,
	}
}

// boundary radiates the blackbody luminosity of the current photosphere.
func (s *Simulation) boundary(tInner float64) domain.Boundary {
	r := s.geometry.InnerRadius()
	luminosity := physics.BlackbodyLuminosity(r, tInner)
	dt := s.cfg.Packets.TimeStep
	if dt <= 0 {
		dt = 1 / luminosity
	}
	return domain.Boundary{Radius: r, Temperature: tInner, Luminosity: luminosity, TimeStep: dt}
}

func (s *Simulation) pass(ctx context.Context, runner *transport.Runner, state *domain.PlasmaState, iteration, count int, virtual bool) (*transport.Pass, error) {
	boundary := s.boundary(state.TInner)
	req := domain.PacketRequest{
		Count:     count,
		Iteration: iteration,
		Seed:      s.cfg.Seed,
		Boundary:  boundary,
		Plasma:    state,
	}
	packets, err := s.source.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate packets: %w", err)
	}
	if err := source.CheckContract(req, packets); err != nil {
		return nil, err
	}

	pass, err := runner.Run(ctx, state, packets, iteration, boundary.TimeStep, virtual)
	if err != nil {
		return nil, fmt.Errorf("transport pass: %w", err)
	}
	return pass, nil
}

// estimate derives the undamped next radiation field. Shells that are
// transparent or were not sampled keep their values.
func (s *Simulation) estimate(state *domain.PlasmaState, summary estimator.Summary, pass *transport.Pass) convergence.Snapshot {
	next := snapshot(state)
	for i, shell := range state.Shells {
		if shell.Transparent() || !summary.Sampled(i) || summary.TRad[i] <= 0 || summary.W[i] <= 0 {
			continue
		}
		next.TRad[i] = summary.TRad[i]
		next.W[i] = summary.W[i]
	}

	emitted := pass.EscapedLuminosity()
	if emitted > 0 {
		ratio := emitted / s.cfg.Supernova.LuminosityRequested
		next.TInner = state.TInner * math.Pow(ratio, s.cfg.Convergence.TInnerUpdateExponent)
	} else {
		s.logger.Warn().Int("iteration", pass.Iteration).Msg("no packet escaped; inner temperature kept")
	}
	return next
}

func (s *Simulation) damp(state *domain.PlasmaState, next convergence.Snapshot) convergence.Snapshot {
	d := s.cfg.Convergence.DampingConstant
	cur := snapshot(state)
	out := convergence.Snapshot{
		TRad:   make([]float64, len(cur.TRad)),
		W:      make([]float64, len(cur.W)),
		TInner: cur.TInner + d*(next.TInner-cur.TInner),
	}
	for i := range cur.TRad {
		out.TRad[i] = cur.TRad[i] + d*(next.TRad[i]-cur.TRad[i])
		out.W[i] = cur.W[i] + d*(next.W[i]-cur.W[i])
	}
	return out
}

func (s *Simulation) record(iteration int, status domain.ConvergenceState, metric float64, state *domain.PlasmaState, next, damped convergence.Snapshot, pass *transport.Pass) domain.IterationRecord {
	cur := snapshot(state)
	delta := func(a, b []float64) []float64 {
		out := make([]float64, len(a))
		for i := range a {
			out[i] = b[i] - a[i]
		}
		return out
	}
	return domain.IterationRecord{
		Iteration:         iteration,
		State:             status,
		Metric:            metric,
		PacketCount:       len(pass.Packets),
		Energy:            pass.Energy,
		LuminosityEmitted: pass.EscapedLuminosity(),
		TInner:            state.TInner,
		TInnerNext:        damped.TInner,
		TRad:              cur.TRad,
		W:                 cur.W,
		TRadDelta:         delta(cur.TRad, next.TRad),
		WDelta:            delta(cur.W, next.W),
		Interactions:      maps.Clone(pass.Interactions),
		StepLimitHits:     pass.StepLimitHits,
		Moments:           pass.Spectrum.Moments(),
	}
}

func snapshot(state *domain.PlasmaState) convergence.Snapshot {
	return convergence.Snapshot{TRad: state.TRad(), W: state.W(), TInner: state.TInner}
}
