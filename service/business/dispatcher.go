package business

import (
	"context"
	"errors"

	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/service/protocol"
)

// ErrUnknownAction marks an envelope type no handler claims. Handlers
// also return it for unrecognized sub-types inside their own namespace so
// both cases produce the same diagnostic.
var ErrUnknownAction = errors.New("unknown action type")

// ActionHandler owns a closed set of envelope types within one capability
// namespace.
type ActionHandler interface {
	// Supports reports whether this handler claims the envelope type.
	Supports(envelopeType string) bool
	// Handle processes one envelope from a registered connection.
	Handle(ctx context.Context, conn *Connection, env *protocol.Envelope) error
}

// Dispatcher routes an inbound envelope to the first handler, in
// registration order, whose Supports test matches. Exactly one handler
// processes any given envelope; an unmatched envelope is dropped with a
// diagnostic. This is a closed world: unknown types are never queued or
// retried.
type Dispatcher struct {
	handlers []ActionHandler
}

// NewDispatcher creates a dispatcher over the given handlers. Evaluation
// order is the argument order.
func NewDispatcher(handlers ...ActionHandler) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

// Dispatch forwards env to the matching handler. Handler failures are
// contained here: logged, never propagated, so a single bad envelope
// cannot end the connection's dispatch loop.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Connection, env *protocol.Envelope) {
	for _, handler := range d.handlers {
		if !handler.Supports(env.Type) {
			continue
		}

		if err := handler.Handle(ctx, conn, env); err != nil {
			if errors.Is(err, ErrUnknownAction) {
				util.Log(ctx).WithFields(map[string]any{
					"type":    env.Type,
					"user_id": conn.UserID(),
				}).Warn("unknown action type")
				return
			}
			util.Log(ctx).WithError(err).WithFields(map[string]any{
				"type":    env.Type,
				"user_id": conn.UserID(),
			}).Error("action handler failure")
		}
		return
	}

	util.Log(ctx).WithFields(map[string]any{
		"type":    env.Type,
		"user_id": conn.UserID(),
	}).Warn("unknown action type")
}
