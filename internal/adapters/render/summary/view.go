package summary

import (
	"fmt"
	"math"
	"strings"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	// Threshold colours metrics at or below it as converged.
	Threshold float64
	BarWidth  int
}

func renderView(run domain.Run, opts RenderOptions, s styles) string {
	iterations := 0
	for _, record := range run.History {
		if !record.Final {
			iterations++
		}
	}

	title := "Run"
	if name := strings.TrimSpace(run.Name); name != "" {
		title = "Run " + name
	}
	lines := []string{
		s.title.Render(title),
		s.header.Render(fmt.Sprintf("state: %s  iterations: %d", run.State, iterations)),
	}
	if run.Fingerprint != "" {
		lines = append(lines, s.header.Render(run.Fingerprint))
	}

	if len(run.History) == 0 {
		lines = append(lines, s.empty.Render("No iterations recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	rows := make([]string, 0, len(run.History))
	for _, record := range run.History {
		rows = append(rows, iterationLine(record, opts, s))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))

	if run.Spectrum != nil {
		lines = append(lines, s.section.Render(spectrumLines(run, s)))
	}

	if run.State == domain.StateDiverged {
		lines = append(lines, s.warning.Render("run diverged"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func iterationLine(record domain.IterationRecord, opts RenderOptions, s styles) string {
	label := fmt.Sprintf("iter %2d", record.Iteration)
	if record.Final {
		label = "final  "
	}

	escaped := escapedPercent(record.Energy)
	width := opts.BarWidth
	if width <= 0 {
		width = 20
	}

	metricStyle := lipgloss.NewStyle().Foreground(metricColor(record.Metric, opts.Threshold))
	parts := []string{
		s.iteration.Render(label),
		" ",
		renderProgressBar(escaped, width, s),
		" ",
		s.key.Render(fmt.Sprintf("%3.0f%% escaped", escaped)),
		" ",
		metricStyle.Render(fmt.Sprintf("metric %.4f", record.Metric)),
		" ",
		s.detail.Render(fmt.Sprintf("T_inner %.0f K", record.TInner)),
		" ",
		s.meta.Render(fmt.Sprintf("L %.3e erg/s", record.LuminosityEmitted)),
	}
	if record.StepLimitHits > 0 {
		parts = append(parts, " ", s.warning.Render(fmt.Sprintf("[step limit x%d]", record.StepLimitHits)))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func spectrumLines(run domain.Run, s styles) string {
	moments := run.Spectrum.Moments()
	lines := []string{
		s.title.Render("Spectrum"),
		s.detail.Render(fmt.Sprintf("luminosity: %.3e erg/s", moments.Luminosity)),
	}
	if moments.MeanNu > 0 {
		lines = append(lines, s.detail.Render(fmt.Sprintf("mean wavelength: %.1f A", physics.FrequencyToWavelength(moments.MeanNu))))
	}
	if peak, ok := peakWavelength(run.Spectrum); ok {
		lines = append(lines, s.detail.Render(fmt.Sprintf("peak wavelength: %.1f A", peak)))
	}
	if run.Reabsorbed != nil {
		lines = append(lines, s.meta.Render(fmt.Sprintf("reabsorbed: %.3e erg/s", run.Reabsorbed.Total())))
	}
	if run.Virtual != nil {
		lines = append(lines, s.meta.Render(fmt.Sprintf("virtual: %.3e erg/s over %d bins", run.Virtual.Total(), run.Virtual.Bins())))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// peakWavelength returns the centre of the bin with the highest L_nu.
func peakWavelength(spectrum *domain.Spectrum) (float64, bool) {
	density := spectrum.LuminosityDensity()
	best := -1
	for i, v := range density {
		if v > 0 && (best < 0 || v > density[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return spectrum.Wavelengths()[best], true
}

func escapedPercent(budget domain.EnergyBudget) float64 {
	if budget.Emitted <= 0 {
		return 0
	}
	return clampPercent(100 * budget.Escaped / budget.Emitted)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// metricColor fades from green at the threshold to red at ten times it.
func metricColor(metric, threshold float64) lipgloss.Color {
	if threshold <= 0 {
		return lipgloss.Color("252")
	}
	if metric <= threshold {
		return lipgloss.Color("78")
	}
	ratio := math.Log10(metric / threshold)
	switch {
	case ratio < 0.5:
		return lipgloss.Color("186")
	case ratio < 1:
		return lipgloss.Color("215")
	default:
		return lipgloss.Color("203")
	}
}
