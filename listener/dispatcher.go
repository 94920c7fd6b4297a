package listener

import (
	"context"
	"errors"
	"fmt"
)

// Handler processes one decoded notification. Returning true acknowledges the
// message so it is deleted from the queue; returning false or an error leaves
// it for redelivery after the visibility timeout.
type Handler func(ctx context.Context, msg Notification) (bool, error)

var ErrUnhandledSubject = errors.New("no handler registered for message subject")

// Dispatcher maps a notification to its handler. It is either a single
// catch-all handler or a subject-keyed routing table, fixed at construction.
type Dispatcher struct {
	single Handler
	routes map[string]Handler
}

// SingleHandler returns a Dispatcher that sends every notification to h.
func SingleHandler(h Handler) Dispatcher {
	return Dispatcher{single: h}
}

// SubjectRouter returns a Dispatcher that routes notifications to a handler
// by their Subject field.
func SubjectRouter(routes map[string]Handler) Dispatcher {
	return Dispatcher{routes: routes}
}

func (d Dispatcher) validate() error {
	if d.single == nil && len(d.routes) == 0 {
		return fmt.Errorf("dispatcher has no handlers")
	}
	return nil
}

func (d Dispatcher) handler(subject string) (Handler, error) {
	if d.single != nil {
		return d.single, nil
	}

	h, ok := d.routes[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnhandledSubject, subject)
	}

	return h, nil
}
