// Package ports declares the interfaces the application layer depends on.
// These are ports in hexagonal architecture: the sync services never know
// which implementation is behind them.
package ports

import (
	"context"
	"time"
)

// ConnState is the connection state machine of the realtime transport.
type ConnState string

const (
	// StateConnecting means a dial attempt is in progress.
	StateConnecting ConnState = "CONNECTING"
	// StateOpen means the socket is established and frames flow.
	StateOpen ConnState = "OPEN"
	// StateReconnecting means the connection dropped and the backoff
	// schedule is running.
	StateReconnecting ConnState = "RECONNECTING"
	// StateClosed means the client shut the connection down on purpose.
	StateClosed ConnState = "CLOSED"
	// StateSessionExpired means the server invalidated the session. No
	// reconnect attempts happen until a fresh Connect with a fresh token.
	StateSessionExpired ConnState = "SESSION_EXPIRED"
)

// StateChange records one FSM transition.
type StateChange struct {
	Previous ConnState
	Current  ConnState
	At       time.Time
}

// Transport is the realtime connection the sync engine drives.
type Transport interface {
	// Connect starts the connection manager. It returns once the manager
	// goroutines are running; the OPEN transition arrives via StateChanges.
	Connect(ctx context.Context) error

	// Close tears the connection down and moves the FSM to CLOSED.
	Close() error

	// Send writes one frame. It returns a NOT_CONNECTED error whenever the
	// state is not OPEN; it never buffers.
	Send(ctx context.Context, data []byte) error

	// Inbound delivers raw frames in arrival order.
	Inbound() <-chan []byte

	// StateChanges delivers every FSM transition in order.
	StateChanges() <-chan StateChange

	// State returns the current FSM state.
	State() ConnState

	// ExpireSession moves the FSM to the terminal SESSION_EXPIRED state.
	// Called when the server announces the session is dead.
	ExpireSession()
}
