package convergence

import (
	"testing"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func config() domain.ConvergenceConfig {
	cfg := domain.DefaultConfiguration().Convergence
	cfg.Threshold = 0.05
	cfg.HoldIterations = 2
	cfg.DivergenceWindow = 3
	cfg.DivergenceBound = 1
	cfg.MaxIterations = 10
	return cfg
}

func TestControllerTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		metrics []float64
		want    domain.ConvergenceState
		at      int
	}{
		{name: "holds below threshold", metrics: []float64{0.5, 0.01, 0.02}, want: domain.StateConverged, at: 3},
		{name: "hold resets on spike", metrics: []float64{0.01, 0.2, 0.01, 0.01}, want: domain.StateConverged, at: 4},
		{name: "monotonic growth past bound", metrics: []float64{0.3, 0.6, 1.2}, want: domain.StateDiverged, at: 3},
		{name: "growth under bound keeps running", metrics: []float64{0.1, 0.2, 0.4, 0.3, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2}, want: domain.StateMaxIterReached, at: 10},
		{name: "non monotonic spike", metrics: []float64{2, 1.5, 3, 0.3}, want: domain.StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewController(config())
			state := domain.StateRunning
			for i, m := range tt.metrics {
				state = c.Observe(i+1, m)
				if state.Terminal() {
					assert.Equal(t, tt.at, i+1)
					break
				}
			}
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestControllerMaxIterations(t *testing.T) {
	t.Parallel()

	cfg := config()
	cfg.MaxIterations = 1
	c := NewController(cfg)

	assert.Equal(t, domain.StateMaxIterReached, c.Observe(1, 0.9))
	assert.Equal(t, domain.StateMaxIterReached, c.Observe(2, 0))
}

func TestControllerConvergedBeatsMaxIterations(t *testing.T) {
	t.Parallel()

	cfg := config()
	cfg.MaxIterations = 1
	cfg.HoldIterations = 1
	c := NewController(cfg)

	assert.Equal(t, domain.StateConverged, c.Observe(1, 0))
}

func TestControllerDivergenceReport(t *testing.T) {
	t.Parallel()

	c := NewController(config())
	assert.Nil(t, c.Divergence())

	for i, m := range []float64{0.1, 0.4, 0.9, 1.7} {
		c.Observe(i+1, m)
	}

	require.Equal(t, domain.StateDiverged, c.State())
	d := c.Divergence()
	require.NotNil(t, d)
	assert.Equal(t, []float64{0.4, 0.9, 1.7}, d.Metrics)
	assert.ErrorIs(t, d, domain.ErrDivergenceDetected)
}

func TestControllerCancel(t *testing.T) {
	t.Parallel()

	c := NewController(config())
	c.Cancel()
	assert.Equal(t, domain.StateCancelled, c.State())
	assert.Equal(t, domain.StateCancelled, c.Observe(1, 0))
}

func TestMetric(t *testing.T) {
	t.Parallel()

	before := Snapshot{TRad: []float64{10000, 8000}, W: []float64{0.5, 0.2}, TInner: 12000}
	after := Snapshot{TRad: []float64{11000, 8000}, W: []float64{0.5, 0.1}, TInner: 12000}

	assert.InDelta(t, 0.5, Metric(domain.MetricMaxRelative, before, after), 1e-12)
	// Changes are 0.1, 0, 0, 0.5, 0.
	assert.InDelta(t, 0.2280350850198276, Metric(domain.MetricRMSRelative, before, after), 1e-12)
	assert.Zero(t, Metric(domain.MetricMaxRelative, before, before))
}
