package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// AtomData is the resolved atomic reference table. Energies are in eV,
// wavelengths in angstrom, frequencies in Hz.
type AtomData struct {
	Elements []Element
	Lines    []Line
}

type Element struct {
	Symbol       string
	AtomicNumber int
	// Mass is the atomic mass in amu.
	Mass float64
	// Ions are ordered by charge starting at the neutral stage.
	Ions []Ion
}

type Ion struct {
	Charge int
	// IonizationEnergy is the energy to reach the next stage; zero on the
	// last stage.
	IonizationEnergy float64
	Levels           []Level
}

type Level struct {
	Energy float64
	Weight float64
}

type Line struct {
	AtomicNumber int
	Charge       int
	Lower        int
	Upper        int
	Wavelength   float64
	Nu           float64
	FLu          float64
	AUL          float64
}

func (a *AtomData) ElementIndex(symbol string) (int, bool) {
	for i, el := range a.Elements {
		if strings.EqualFold(el.Symbol, symbol) {
			return i, true
		}
	}
	return -1, false
}

func (a *AtomData) ElementByNumber(z int) (int, bool) {
	for i, el := range a.Elements {
		if el.AtomicNumber == z {
			return i, true
		}
	}
	return -1, false
}

func (a *AtomData) Validate() error {
	if len(a.Elements) == 0 {
		return fmt.Errorf("%w: no elements", ErrAtomData)
	}

	var errs []error
	for _, el := range a.Elements {
		if el.AtomicNumber < 1 {
			errs = append(errs, fmt.Errorf("%w: element %q atomic number %d", ErrAtomData, el.Symbol, el.AtomicNumber))
		}
		if el.Mass <= 0 {
			errs = append(errs, fmt.Errorf("%w: element %q mass must be positive", ErrAtomData, el.Symbol))
		}
		if len(el.Ions) == 0 {
			errs = append(errs, fmt.Errorf("%w: element %q has no ions", ErrAtomData, el.Symbol))
		}
		for i, ion := range el.Ions {
			if ion.Charge != i {
				errs = append(errs, fmt.Errorf("%w: element %q ion %d has charge %d", ErrAtomData, el.Symbol, i, ion.Charge))
			}
			if len(ion.Levels) == 0 {
				errs = append(errs, fmt.Errorf("%w: element %q ion %d has no levels", ErrAtomData, el.Symbol, i))
			}
			if i+1 < len(el.Ions) && ion.IonizationEnergy <= 0 {
				errs = append(errs, fmt.Errorf("%w: element %q ion %d needs an ionization energy", ErrAtomData, el.Symbol, i))
			}
		}
	}

	for i, line := range a.Lines {
		idx, ok := a.ElementByNumber(line.AtomicNumber)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: line %d references unknown element Z=%d", ErrAtomData, i, line.AtomicNumber))
			continue
		}
		el := a.Elements[idx]
		if line.Charge < 0 || line.Charge >= len(el.Ions) {
			errs = append(errs, fmt.Errorf("%w: line %d references unknown ion %d of %s", ErrAtomData, i, line.Charge, el.Symbol))
			continue
		}
		levels := len(el.Ions[line.Charge].Levels)
		if line.Lower < 0 || line.Upper >= levels || line.Lower >= line.Upper {
			errs = append(errs, fmt.Errorf("%w: line %d has invalid levels %d->%d", ErrAtomData, i, line.Lower, line.Upper))
		}
		if line.Nu <= 0 {
			errs = append(errs, fmt.Errorf("%w: line %d has non-positive frequency", ErrAtomData, i))
		}
	}

	return errors.Join(errs...)
}

// SortedLines returns a copy of the line list ordered by descending
// frequency, the order in which a redshifting packet meets resonances.
func (a *AtomData) SortedLines() []Line {
	lines := slices.Clone(a.Lines)
	slices.SortStableFunc(lines, func(x, y Line) int {
		switch {
		case x.Nu > y.Nu:
			return -1
		case x.Nu < y.Nu:
			return 1
		default:
			return 0
		}
	})
	return lines
}
