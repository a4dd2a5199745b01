package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration         = errors.New("configuration error")
	ErrGeometryInconsistency = errors.New("geometry inconsistency")
	ErrStepLimitExceeded     = errors.New("packet step limit exceeded")
	ErrDivergenceDetected    = errors.New("divergence detected")
	ErrCallback              = errors.New("callback failed")
	ErrPacketSourceContract  = errors.New("packet source contract violated")
	ErrAtomData              = errors.New("atom data error")
	ErrRunNotFound           = errors.New("run not found")
)

// ConfigurationError names the offending field of a rejected configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type GeometryError struct {
	PacketID int
	Shell    int
	Radius   float64
	Reason   string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("packet %d in shell %d at r=%.6e: %s", e.PacketID, e.Shell, e.Radius, e.Reason)
}

func (e *GeometryError) Unwrap() error {
	return ErrGeometryInconsistency
}

// StepLimitError reports a pass whose step-limit hit rate crossed the
// configured threshold.
type StepLimitError struct {
	Hits    int
	Packets int
	MaxRate float64
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("%d of %d packets hit the step limit (max rate %.4f)", e.Hits, e.Packets, e.MaxRate)
}

func (e *StepLimitError) Unwrap() error {
	return ErrStepLimitExceeded
}

type DivergenceError struct {
	Metrics []float64
	Bound   float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("convergence metric grew over %d iterations past %.4g", len(e.Metrics), e.Bound)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDivergenceDetected
}

type CallbackError struct {
	Trigger   string
	Iteration int
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s callback at iteration %d: %v", e.Trigger, e.Iteration, e.Err)
}

func (e *CallbackError) Unwrap() []error {
	return []error{ErrCallback, e.Err}
}

// RunError is returned by a failed run. History holds every iteration that
// completed before the failure.
type RunError struct {
	Iteration int
	Phase     string
	History   []IterationRecord
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed at iteration %d (%s): %v", e.Iteration, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
