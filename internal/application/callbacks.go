package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/transport"
)

// Trigger names the phase of an iteration a callback runs after.
type Trigger string

const (
	// TriggerTransport fires after each transport pass, before the plasma
	// update.
	TriggerTransport Trigger = "transport"
	// TriggerIteration fires once the iteration record is appended.
	TriggerIteration Trigger = "iteration"
	// TriggerFinal fires after the final spectrum pass.
	TriggerFinal Trigger = "final"
)

var ErrUnknownTrigger = errors.New("unknown callback trigger")

// CallbackEvent carries the data of the phase that just completed. Callbacks
// must treat it as read-only.
type CallbackEvent struct {
	Trigger   Trigger
	Iteration int
	Record    domain.IterationRecord
	History   []domain.IterationRecord
	Pass      *transport.Pass
	Plasma    *domain.PlasmaState
}

type Callback func(ctx context.Context, event CallbackEvent) error

// callbacks keeps registration order per trigger.
type callbacks struct {
	byTrigger map[Trigger][]Callback
}

func newCallbacks() *callbacks {
	return &callbacks{byTrigger: make(map[Trigger][]Callback)}
}

func (c *callbacks) add(trigger Trigger, fn Callback) error {
	switch trigger {
	case TriggerTransport, TriggerIteration, TriggerFinal:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTrigger, trigger)
	}
	if fn == nil {
		return fmt.Errorf("register %s callback: nil function", trigger)
	}
	c.byTrigger[trigger] = append(c.byTrigger[trigger], fn)
	return nil
}

// fire runs the callbacks of a trigger in order and stops at the first
// failure.
func (c *callbacks) fire(ctx context.Context, event CallbackEvent) error {
	for _, fn := range c.byTrigger[event.Trigger] {
		if err := fn(ctx, event); err != nil {
			return &domain.CallbackError{Trigger: string(event.Trigger), Iteration: event.Iteration, Err: err}
		}
	}
	return nil
}
