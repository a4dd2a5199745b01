package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int         `toml:"version"`
	Runs    []runSchema `toml:"runs"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported run schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type runSchema struct {
	ID          string            `toml:"id"`
	Name        string            `toml:"name"`
	Fingerprint string            `toml:"fingerprint"`
	CreatedAt   string            `toml:"created_at"`
	State       string            `toml:"state"`
	History     []iterationSchema `toml:"history"`
	Spectrum    *spectrumSchema   `toml:"spectrum,omitempty"`
	Reabsorbed  *spectrumSchema   `toml:"reabsorbed,omitempty"`
	Virtual     *spectrumSchema   `toml:"virtual,omitempty"`
}

type iterationSchema struct {
	Iteration          int            `toml:"iteration"`
	State              string         `toml:"state"`
	Metric             float64        `toml:"metric"`
	PacketCount        int            `toml:"packet_count"`
	Energy             energySchema   `toml:"energy"`
	LuminosityEmitted  float64        `toml:"luminosity_emitted"`
	TInner             float64        `toml:"t_inner"`
	TInnerNext         float64        `toml:"t_inner_next"`
	TRad               []float64      `toml:"t_rad"`
	W                  []float64      `toml:"w"`
	TRadDelta          []float64      `toml:"t_rad_delta"`
	WDelta             []float64      `toml:"w_delta"`
	Interactions       map[string]int `toml:"interactions,omitempty"`
	StepLimitHits      int            `toml:"step_limit_hits,omitempty"`
	SpectrumLuminosity float64        `toml:"spectrum_luminosity"`
	MeanNu             float64        `toml:"mean_nu"`
	DurationMS         int64          `toml:"duration_ms"`
	Final              bool           `toml:"final,omitempty"`
}

type energySchema struct {
	Emitted    float64 `toml:"emitted"`
	Escaped    float64 `toml:"escaped"`
	Absorbed   float64 `toml:"absorbed"`
	Reabsorbed float64 `toml:"reabsorbed"`
}

type spectrumSchema struct {
	Edges      []float64 `toml:"edges"`
	Luminosity []float64 `toml:"luminosity"`
}
