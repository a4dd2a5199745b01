package domain

import "time"

type RunID string

// Run is the persisted outcome of a simulation.
type Run struct {
	ID          RunID
	Name        string
	Fingerprint string
	CreatedAt   time.Time
	State       ConvergenceState
	History     []IterationRecord
	Spectrum    *Spectrum
	Reabsorbed  *Spectrum
	Virtual     *Spectrum
}
