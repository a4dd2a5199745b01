package summary

import (
	"testing"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderConvergedRun(t *testing.T) {
	spectrum := domain.NewSpectrum(1e14, 1e15, 3)
	spectrum.Add(5e14, 4e42)

	output, err := Render(domain.Run{
		Name:        "w7",
		Fingerprint: "w7 shells=20 packets=10000/50000 seed=1",
		State:       domain.StateConverged,
		History: []domain.IterationRecord{
			{
				Iteration:         1,
				Metric:            0.3,
				Energy:            domain.EnergyBudget{Emitted: 1, Escaped: 0.8, Reabsorbed: 0.2},
				TInner:            10500,
				LuminosityEmitted: 8e42,
			},
			{
				Iteration:         2,
				Metric:            0.01,
				Energy:            domain.EnergyBudget{Emitted: 1, Escaped: 1},
				TInner:            11000,
				LuminosityEmitted: 1e43,
			},
			{Iteration: 3, Final: true, Energy: domain.EnergyBudget{Emitted: 1, Escaped: 0.9}},
		},
		Spectrum:   spectrum,
		Reabsorbed: domain.NewSpectrum(1e14, 1e15, 3),
	}, RenderOptions{Threshold: 0.05, BarWidth: 10})

	require.NoError(t, err)
	assert.Contains(t, output, "Run w7")
	assert.Contains(t, output, "state: converged  iterations: 2")
	assert.Contains(t, output, "shells=20")
	assert.Contains(t, output, "iter  1")
	assert.Contains(t, output, " 80% escaped")
	assert.Contains(t, output, "100% escaped")
	assert.Contains(t, output, "metric 0.3000")
	assert.Contains(t, output, "T_inner 11000 K")
	assert.Contains(t, output, "final")
	assert.Contains(t, output, "[========--]")
	assert.Contains(t, output, "luminosity: 4.000e+42 erg/s")
	assert.Contains(t, output, "peak wavelength:")
	assert.Contains(t, output, "reabsorbed: 0.000e+00 erg/s")
	assert.NotContains(t, output, "virtual:")
	assert.NotContains(t, output, "diverged")
}

func TestRenderEmptyRun(t *testing.T) {
	output, err := Render(domain.Run{State: domain.StateRunning}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "Run")
	assert.Contains(t, output, "No iterations recorded.")
}

func TestRenderDivergedRunFlagsStepLimit(t *testing.T) {
	output, err := Render(domain.Run{
		Name:  "runaway",
		State: domain.StateDiverged,
		History: []domain.IterationRecord{
			{Iteration: 1, Metric: 3, StepLimitHits: 4},
		},
	}, RenderOptions{Threshold: 0.05})

	require.NoError(t, err)
	assert.Contains(t, output, "[step limit x4]")
	assert.Contains(t, output, "run diverged")
	assert.Contains(t, output, "  0% escaped")
}

func TestPeakWavelengthSkipsEmptySpectrum(t *testing.T) {
	_, ok := peakWavelength(domain.NewSpectrum(1e14, 1e15, 4))
	assert.False(t, ok)
}
