package business

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/internal"
	"github.com/sokoapp/service-presence/service"
	"github.com/sokoapp/service-presence/service/protocol"
)

// ConnectionManager drives the lifecycle of every live connection:
// OPENED -> REGISTERED -> dispatch loop -> CLOSED. It owns the registry
// cleanup guarantee: whatever ends a connection, Remove runs exactly once.
type ConnectionManager struct {
	registry   *Registry
	dispatcher *Dispatcher

	outboundBuffer int
	maxConnections int32
	activeCount    atomic.Int32
	shuttingDown   atomic.Bool
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(
	registry *Registry,
	dispatcher *Dispatcher,
	maxConnections int32,
	outboundBuffer int,
) *ConnectionManager {
	return &ConnectionManager{
		registry:       registry,
		dispatcher:     dispatcher,
		outboundBuffer: outboundBuffer,
		maxConnections: maxConnections,
	}
}

// HandleConnection consumes envelopes from the transport until it closes.
// The first "register" envelope binds the connection's identity and
// enters it into the registry; envelopes of any other type received
// before that are dropped silently. Failures on a single envelope are
// logged and the loop continues; only transport closure ends the
// connection, and registry cleanup then runs exactly once.
func (cm *ConnectionManager) HandleConnection(ctx context.Context, transport Transport) error {
	if cm.shuttingDown.Load() {
		return service.ErrShuttingDown
	}
	if cm.maxConnections > 0 && cm.activeCount.Load() >= cm.maxConnections {
		return service.ErrTooManyConnections
	}
	cm.activeCount.Add(1)

	conn := NewConnection(transport, cm.outboundBuffer)

	defer func() {
		conn.Close()
		cm.registry.Remove(conn)
		cm.activeCount.Add(-1)
		util.Log(ctx).WithField("user_id", conn.UserID()).Debug("connection closed")
	}()

	// Caller cancellation tears the transport down so the read loop
	// unblocks.
	stop := context.AfterFunc(ctx, conn.Close)
	defer stop()

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		cm.writeLoop(ctx, conn)
	}()

	cm.readLoop(ctx, conn)

	// Reader is done; release the writer and wait for it.
	conn.Close()
	wg.Wait()

	return nil
}

// Shutdown refuses new connections and closes every registered one.
func (cm *ConnectionManager) Shutdown(ctx context.Context) {
	cm.shuttingDown.Store(true)
	cm.registry.ForEach(func(userID string, conn *Connection) {
		util.Log(ctx).WithField("user_id", userID).Debug("closing connection on shutdown")
		conn.Close()
	})
}

// ActiveConnections returns the number of connections currently inside
// HandleConnection, registered or not.
func (cm *ConnectionManager) ActiveConnections() int32 {
	return cm.activeCount.Load()
}

// readLoop consumes envelopes in arrival order until the transport closes.
func (cm *ConnectionManager) readLoop(ctx context.Context, conn *Connection) {
	for {
		env, err := conn.transport.ReadEnvelope()
		if err != nil {
			if !errors.Is(err, protocol.ErrMalformedEnvelope) {
				return
			}
			// A frame that does not decode is a protocol error on one
			// envelope, not the end of the connection.
			util.Log(ctx).WithError(err).WithField("user_id", conn.UserID()).
				Warn("dropping malformed envelope")
			continue
		}

		cm.handleEnvelope(ctx, conn, env)
	}
}

// handleEnvelope applies the registration state machine, then dispatches.
func (cm *ConnectionManager) handleEnvelope(ctx context.Context, conn *Connection, env *protocol.Envelope) {
	if !conn.Registered() {
		if env.Type != internal.TypeRegister {
			// Pre-registration envelopes are a silent no-op.
			util.Log(ctx).WithField("type", env.Type).Debug("dropping envelope from unregistered connection")
			return
		}
		cm.register(ctx, conn, env)
		return
	}

	cm.dispatcher.Dispatch(ctx, conn, env)
}

// register completes the one-time handshake binding the connection to a
// user and entering it into the registry, superseding any prior entry.
func (cm *ConnectionManager) register(ctx context.Context, conn *Connection, env *protocol.Envelope) {
	var payload protocol.RegisterPayload
	if err := env.DecodeData(&payload); err != nil || payload.UserID == "" {
		util.Log(ctx).WithError(err).Warn("invalid register envelope")
		return
	}

	if !conn.bindUser(payload.UserID) {
		return
	}
	cm.registry.Register(payload.UserID, conn)

	util.Log(ctx).WithFields(map[string]any{
		"user_id":     payload.UserID,
		"registered":  cm.registry.Size(),
		"connections": cm.activeCount.Load(),
	}).Info("connection registered")
}

// writeLoop drains the outbound buffer onto the transport. A write
// failure closes the connection; pushes queued after that fail fast.
func (cm *ConnectionManager) writeLoop(ctx context.Context, conn *Connection) {
	for {
		select {
		case env := <-conn.outbound:
			if err := conn.transport.WriteEnvelope(env); err != nil {
				util.Log(ctx).WithError(err).WithField("user_id", conn.UserID()).
					Debug("outbound write failed, closing connection")
				conn.Close()
				return
			}
		case <-conn.done:
			return
		}
	}
}
