// Package atomdata loads atomic reference tables from TOML files.
package atomdata

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/spf13/afero"
)

const currentSchemaVersion = 1

//go:embed default_atoms.toml
var defaultAtoms string

var ErrAmbiguousInput = errors.New("exactly one atom data input must be set")

// Input is either a file to load or an already loaded table.
type Input struct {
	Path   string
	Loaded *domain.AtomData
}

type fileSchema struct {
	Version  int             `toml:"version"`
	Elements []elementSchema `toml:"elements"`
	Lines    []lineSchema    `toml:"lines"`
}

type elementSchema struct {
	Symbol       string      `toml:"symbol"`
	AtomicNumber int         `toml:"atomic_number"`
	Mass         float64     `toml:"mass"`
	Ions         []ionSchema `toml:"ions"`
}

type ionSchema struct {
	Charge           int           `toml:"charge"`
	IonizationEnergy float64       `toml:"ionization_energy"`
	Levels           []levelSchema `toml:"levels"`
}

type levelSchema struct {
	Energy float64 `toml:"energy"`
	Weight float64 `toml:"weight"`
}

// lineSchema names its element either by symbol or atomic number.
type lineSchema struct {
	Element      string  `toml:"element"`
	AtomicNumber int     `toml:"atomic_number"`
	Charge       int     `toml:"charge"`
	Lower        int     `toml:"lower"`
	Upper        int     `toml:"upper"`
	Wavelength   float64 `toml:"wavelength"`
	FLu          float64 `toml:"f_lu"`
	AUL          float64 `toml:"a_ul"`
}

type Loader struct {
	fs afero.Fs
}

func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs}
}

// Resolve loads Path, validates Loaded, or falls back to the bundled table
// when neither is set.
func (l *Loader) Resolve(in Input) (*domain.AtomData, error) {
	switch {
	case in.Path != "" && in.Loaded != nil:
		return nil, ErrAmbiguousInput
	case in.Loaded != nil:
		if err := in.Loaded.Validate(); err != nil {
			return nil, err
		}
		return in.Loaded, nil
	case in.Path != "":
		return l.Load(in.Path)
	default:
		return Default()
	}
}

func (l *Loader) Load(path string) (*domain.AtomData, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open atom data %s: %w", path, err)
	}
	defer f.Close()

	atoms, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("load atom data %s: %w", path, err)
	}
	return atoms, nil
}

// Default returns the bundled hydrogen and helium table.
func Default() (*domain.AtomData, error) {
	atoms, err := decode(strings.NewReader(defaultAtoms))
	if err != nil {
		return nil, fmt.Errorf("load bundled atom data: %w", err)
	}
	return atoms, nil
}

func decode(r io.Reader) (*domain.AtomData, error) {
	var file fileSchema
	md, err := toml.NewDecoder(r).Decode(&file)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrAtomData, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: unknown keys %s", domain.ErrAtomData, strings.Join(keys, ", "))
	}
	if file.Version > currentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d (current %d)", domain.ErrAtomData, file.Version, currentSchemaVersion)
	}

	atoms, err := file.toDomain()
	if err != nil {
		return nil, err
	}
	if err := atoms.Validate(); err != nil {
		return nil, err
	}
	return atoms, nil
}

func (f fileSchema) toDomain() (*domain.AtomData, error) {
	atoms := &domain.AtomData{Elements: make([]domain.Element, 0, len(f.Elements))}
	for _, el := range f.Elements {
		ions := make([]domain.Ion, 0, len(el.Ions))
		for _, ion := range el.Ions {
			levels := make([]domain.Level, 0, len(ion.Levels))
			for _, level := range ion.Levels {
				levels = append(levels, domain.Level{Energy: level.Energy, Weight: level.Weight})
			}
			ions = append(ions, domain.Ion{Charge: ion.Charge, IonizationEnergy: ion.IonizationEnergy, Levels: levels})
		}
		atoms.Elements = append(atoms.Elements, domain.Element{
			Symbol:       el.Symbol,
			AtomicNumber: el.AtomicNumber,
			Mass:         el.Mass,
			Ions:         ions,
		})
	}

	atoms.Lines = make([]domain.Line, 0, len(f.Lines))
	for i, line := range f.Lines {
		z := line.AtomicNumber
		if line.Element != "" {
			idx, ok := atoms.ElementIndex(line.Element)
			if !ok {
				return nil, fmt.Errorf("%w: line %d references unknown element %q", domain.ErrAtomData, i, line.Element)
			}
			z = atoms.Elements[idx].AtomicNumber
		}
		if line.Wavelength <= 0 {
			return nil, fmt.Errorf("%w: line %d wavelength must be positive", domain.ErrAtomData, i)
		}
		atoms.Lines = append(atoms.Lines, domain.Line{
			AtomicNumber: z,
			Charge:       line.Charge,
			Lower:        line.Lower,
			Upper:        line.Upper,
			Wavelength:   line.Wavelength,
			Nu:           physics.WavelengthToFrequency(line.Wavelength),
			FLu:          line.FLu,
			AUL:          line.AUL,
		})
	}
	return atoms, nil
}

// IonSummary counts the levels and lines of one ionization stage.
type IonSummary struct {
	Symbol           string
	Charge           int
	Levels           int
	Lines            int
	IonizationEnergy float64
}

type Summary struct {
	Elements int
	Ions     []IonSummary
	Lines    int
	// MinWavelength and MaxWavelength bound the line list in angstrom.
	MinWavelength float64
	MaxWavelength float64
}

func Summarize(atoms *domain.AtomData) Summary {
	s := Summary{Elements: len(atoms.Elements), Lines: len(atoms.Lines)}
	type ionKey struct{ z, charge int }
	lines := make(map[ionKey]int)
	for i, line := range atoms.Lines {
		lines[ionKey{line.AtomicNumber, line.Charge}]++
		if i == 0 || line.Wavelength < s.MinWavelength {
			s.MinWavelength = line.Wavelength
		}
		if line.Wavelength > s.MaxWavelength {
			s.MaxWavelength = line.Wavelength
		}
	}
	for _, el := range atoms.Elements {
		for _, ion := range el.Ions {
			s.Ions = append(s.Ions, IonSummary{
				Symbol:           el.Symbol,
				Charge:           ion.Charge,
				Levels:           len(ion.Levels),
				Lines:            lines[ionKey{el.AtomicNumber, ion.Charge}],
				IonizationEnergy: ion.IonizationEnergy,
			})
		}
	}
	return s
}
