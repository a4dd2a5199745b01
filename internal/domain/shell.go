package domain

import "math"

// Shell is a radial zone at the simulation epoch. Radii are in cm.
type Shell struct {
	Index       int
	InnerRadius float64
	OuterRadius float64
}

func (s Shell) Volume() float64 {
	return 4.0 / 3.0 * math.Pi * (math.Pow(s.OuterRadius, 3) - math.Pow(s.InnerRadius, 3))
}

func (s Shell) MidRadius() float64 {
	return 0.5 * (s.InnerRadius + s.OuterRadius)
}

func (s Shell) Width() float64 {
	return s.OuterRadius - s.InnerRadius
}

// Contains reports whether r lies within the shell, allowing a relative
// tolerance at both edges.
func (s Shell) Contains(r, tolerance float64) bool {
	slack := tolerance * s.OuterRadius
	return r >= s.InnerRadius-slack && r <= s.OuterRadius+slack
}

// Geometry is the homologously expanding shell grid.
type Geometry struct {
	TimeExplosion float64
	Shells        []Shell
}

// NewGeometry builds contiguous shells from ascending boundary velocities
// (cm/s) at the given time since explosion (s).
func NewGeometry(timeExplosion float64, velocities []float64) (Geometry, error) {
	if timeExplosion <= 0 {
		return Geometry{}, configErr("supernova.time_explosion", "must be positive, got %g", timeExplosion)
	}
	if len(velocities) < 2 {
		return Geometry{}, configErr("model.velocity", "need at least two boundaries, got %d", len(velocities))
	}

	shells := make([]Shell, 0, len(velocities)-1)
	for i := 0; i+1 < len(velocities); i++ {
		shells = append(shells, Shell{
			Index:       i,
			InnerRadius: velocities[i] * timeExplosion,
			OuterRadius: velocities[i+1] * timeExplosion,
		})
	}

	g := Geometry{TimeExplosion: timeExplosion, Shells: shells}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}

	return g, nil
}

func (g Geometry) Validate() error {
	if g.TimeExplosion <= 0 {
		return configErr("supernova.time_explosion", "must be positive, got %g", g.TimeExplosion)
	}
	if len(g.Shells) == 0 {
		return configErr("model.velocity", "no shells defined")
	}

	for i, shell := range g.Shells {
		if shell.Index != i {
			return configErr("model.velocity", "shell %d carries index %d", i, shell.Index)
		}
		if shell.InnerRadius <= 0 {
			return configErr("model.velocity", "shell %d inner radius must be positive", i)
		}
		if shell.OuterRadius <= shell.InnerRadius {
			return configErr("model.velocity", "shell %d boundaries are not increasing (%g >= %g)", i, shell.InnerRadius, shell.OuterRadius)
		}
		if i > 0 && shell.InnerRadius != g.Shells[i-1].OuterRadius {
			return configErr("model.velocity", "shell %d is not contiguous with shell %d", i, i-1)
		}
	}

	return nil
}

func (g Geometry) NumShells() int {
	return len(g.Shells)
}

func (g Geometry) InnerRadius() float64 {
	return g.Shells[0].InnerRadius
}

func (g Geometry) OuterRadius() float64 {
	return g.Shells[len(g.Shells)-1].OuterRadius
}

// Velocity returns the homologous flow speed at radius r.
func (g Geometry) Velocity(r float64) float64 {
	return r / g.TimeExplosion
}
