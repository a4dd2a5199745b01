// Package convergence decides when the plasma iteration has settled.
package convergence

import (
	"math"

	"github.com/bnema/mcrt/internal/domain"
)

// Snapshot is the part of the plasma state the metric compares.
type Snapshot struct {
	TRad   []float64
	W      []float64
	TInner float64
}

// Metric summarises the relative change between two snapshots.
func Metric(kind domain.MetricKind, before, after Snapshot) float64 {
	changes := make([]float64, 0, len(before.TRad)+len(before.W)+1)
	for i := range before.TRad {
		changes = append(changes, relativeChange(before.TRad[i], after.TRad[i]))
	}
	for i := range before.W {
		changes = append(changes, relativeChange(before.W[i], after.W[i]))
	}
	changes = append(changes, relativeChange(before.TInner, after.TInner))

	switch kind {
	case domain.MetricRMSRelative:
		sum := 0.0
		for _, c := range changes {
			sum += c * c
		}
		return math.Sqrt(sum / float64(len(changes)))
	default:
		worst := 0.0
		for _, c := range changes {
			worst = math.Max(worst, c)
		}
		return worst
	}
}

func relativeChange(before, after float64) float64 {
	if before == after {
		return 0
	}
	if before == 0 {
		return 1
	}
	return math.Abs(after-before) / math.Abs(before)
}

// Controller is the RUNNING -> {CONVERGED, DIVERGED, MAX_ITER_REACHED}
// state machine. It is not safe for concurrent use.
type Controller struct {
	cfg     domain.ConvergenceConfig
	state   domain.ConvergenceState
	below   int
	metrics []float64
}

func NewController(cfg domain.ConvergenceConfig) *Controller {
	return &Controller{cfg: cfg, state: domain.StateRunning}
}

func (c *Controller) State() domain.ConvergenceState {
	return c.state
}

func (c *Controller) Metrics() []float64 {
	return append([]float64(nil), c.metrics...)
}

// Observe feeds the metric of a completed iteration (1-based) and returns
// the resulting state. A terminal state is sticky.
func (c *Controller) Observe(iteration int, metric float64) domain.ConvergenceState {
	if c.state.Terminal() {
		return c.state
	}
	c.metrics = append(c.metrics, metric)

	if metric < c.cfg.Threshold {
		c.below++
	} else {
		c.below = 0
	}

	switch {
	case c.below >= c.cfg.HoldIterations:
		c.state = domain.StateConverged
	case c.diverging():
		c.state = domain.StateDiverged
	case iteration >= c.cfg.MaxIterations:
		c.state = domain.StateMaxIterReached
	}
	return c.state
}

// Cancel marks the run as stopped from outside.
func (c *Controller) Cancel() {
	if !c.state.Terminal() {
		c.state = domain.StateCancelled
	}
}

// Divergence returns the window that triggered DIVERGED.
func (c *Controller) Divergence() *domain.DivergenceError {
	if c.state != domain.StateDiverged {
		return nil
	}
	window := c.metrics[len(c.metrics)-c.cfg.DivergenceWindow:]
	return &domain.DivergenceError{Metrics: append([]float64(nil), window...), Bound: c.cfg.DivergenceBound}
}

// diverging reports a metric that grew strictly over the whole window and
// ended above the bound.
func (c *Controller) diverging() bool {
	w := c.cfg.DivergenceWindow
	if w < 2 || len(c.metrics) < w {
		return false
	}
	window := c.metrics[len(c.metrics)-w:]
	for i := 1; i < len(window); i++ {
		if !(window[i] > window[i-1]) {
			return false
		}
	}
	return window[len(window)-1] > c.cfg.DivergenceBound
}
