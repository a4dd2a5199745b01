package domain

import (
	"sort"

	"github.com/bnema/mcrt/internal/physics"
	"gonum.org/v1/gonum/floats"
)

// Spectrum bins packet luminosity by lab-frame frequency.
type Spectrum struct {
	// Edges are ascending bin edges in Hz, one more than Luminosity.
	Edges []float64
	// Luminosity is the luminosity (erg/s) collected in each bin.
	Luminosity []float64
}

// NewSpectrum spans bins equal-width bins over [nuMin, nuMax]. With fewer
// than one bin the spectrum is empty and Add drops every deposit.
func NewSpectrum(nuMin, nuMax float64, bins int) *Spectrum {
	if bins < 1 {
		return &Spectrum{Edges: []float64{nuMin}, Luminosity: []float64{}}
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, nuMin, nuMax)
	return &Spectrum{Edges: edges, Luminosity: make([]float64, bins)}
}

func (s *Spectrum) Bins() int {
	return len(s.Luminosity)
}

// Add deposits luminosity at frequency nu. Out-of-range frequencies are
// dropped and reported.
func (s *Spectrum) Add(nu, luminosity float64) bool {
	n := len(s.Luminosity)
	if n == 0 || nu < s.Edges[0] || nu >= s.Edges[n] {
		return false
	}
	i := sort.SearchFloat64s(s.Edges, nu)
	if i >= len(s.Edges) || s.Edges[i] > nu {
		i--
	}
	if i >= n {
		i = n - 1
	}
	s.Luminosity[i] += luminosity
	return true
}

// Merge adds another spectrum with identical binning.
func (s *Spectrum) Merge(o *Spectrum) {
	floats.Add(s.Luminosity, o.Luminosity)
}

func (s *Spectrum) Centers() []float64 {
	out := make([]float64, len(s.Luminosity))
	for i := range out {
		out[i] = 0.5 * (s.Edges[i] + s.Edges[i+1])
	}
	return out
}

func (s *Spectrum) Wavelengths() []float64 {
	centers := s.Centers()
	for i, nu := range centers {
		centers[i] = physics.FrequencyToWavelength(nu)
	}
	return centers
}

// LuminosityDensity returns L_nu (erg/s/Hz) per bin.
func (s *Spectrum) LuminosityDensity() []float64 {
	out := make([]float64, len(s.Luminosity))
	for i, l := range s.Luminosity {
		out[i] = l / (s.Edges[i+1] - s.Edges[i])
	}
	return out
}

func (s *Spectrum) Total() float64 {
	return floats.Sum(s.Luminosity)
}

// Moments returns the total luminosity and luminosity-weighted mean frequency.
func (s *Spectrum) Moments() SpectrumMoments {
	total := s.Total()
	if total == 0 {
		return SpectrumMoments{}
	}
	return SpectrumMoments{
		Luminosity: total,
		MeanNu:     floats.Dot(s.Centers(), s.Luminosity) / total,
	}
}

type SpectrumMoments struct {
	Luminosity float64
	MeanNu     float64
}
