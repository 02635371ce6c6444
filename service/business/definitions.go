// Package business implements the presence registry, the envelope
// dispatch pipeline and the message delivery state machine.
package business

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/service/protocol"
)

// Transport abstracts one live, bidirectional, ordered session with a
// client. Implementations must allow ReadEnvelope to unblock with an
// error once Close is called.
type Transport interface {
	ReadEnvelope() (*protocol.Envelope, error)
	WriteEnvelope(*protocol.Envelope) error
	Close() error
}

// Connection wraps a transport together with the identity bound to it at
// registration time. The registry holds these as non-owning lookup
// entries; lifecycle control stays with the connection manager.
type Connection struct {
	transport Transport
	outbound  chan *protocol.Envelope
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	mu     sync.RWMutex
	userID string
}

// NewConnection wraps a transport in a connection with the given outbound
// buffer capacity.
func NewConnection(transport Transport, outboundBuffer int) *Connection {
	if outboundBuffer <= 0 {
		outboundBuffer = 1
	}
	return &Connection{
		transport: transport,
		outbound:  make(chan *protocol.Envelope, outboundBuffer),
		done:      make(chan struct{}),
	}
}

// UserID returns the identity bound at registration, or "" before the
// register handshake completed.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Registered reports whether the register handshake completed.
func (c *Connection) Registered() bool {
	return c.UserID() != ""
}

// bindUser stores the registered identity. First write wins; the identity
// is immutable afterwards.
func (c *Connection) bindUser(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return false
	}
	c.userID = userID
	return true
}

// Push enqueues an envelope for delivery without blocking. It reports
// false when the connection is closed or the consumer is too slow to
// drain its buffer; callers treat both identically to "recipient not
// live".
func (c *Connection) Push(env *protocol.Envelope) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.outbound <- env:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close tears the connection down: the transport is closed so the read
// loop unblocks, and the outbound writer stops. Safe to call from any
// goroutine, any number of times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.transport.Close()
	})
}

// notify is the best-effort push used for counterpart notifications and
// acks. Failure to encode or deliver is logged and reported as
// not-delivered, never propagated to the triggering request.
func notify(ctx context.Context, conn *Connection, envelopeType string, payload any) bool {
	if conn == nil {
		return false
	}

	env, err := protocol.NewEnvelope(envelopeType, payload)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("type", envelopeType).Error("failed to encode outbound envelope")
		return false
	}

	if !conn.Push(env) {
		util.Log(ctx).WithFields(map[string]any{
			"type":    envelopeType,
			"user_id": conn.UserID(),
		}).Debug("recipient connection not accepting envelopes")
		return false
	}
	return true
}
