// Package di wires the sync core together. NewContainer builds every
// component in dependency order and hands back a Container whose fields
// are ready to use; Shutdown releases resources in reverse order.
package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/bulk"
	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/application/presence"
	"github.com/aiborg-ai/appboardguru-sub011/application/queue"
	"github.com/aiborg-ai/appboardguru-sub011/application/sync"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/config"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/messaging"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/snapshot"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/transport/websocket"
	"github.com/aiborg-ai/appboardguru-sub011/interfaces/http/rest"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/auth"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// Container holds every constructed component of the sync core. The type
// lives in its own file so both Wire and the manual path share it.
type Container struct {
	Config *config.Config

	// Observability
	Logger  *zap.Logger
	Metrics *observability.Collector
	Tracing *observability.TracerProvider

	// Cross-cutting
	Clock          clock.Clock
	Tokens         *auth.StaticTokenSource
	TokenValidator ports.TokenValidator
	Bus            *messaging.InProcessBus

	// Persistence
	StateStore     ports.StateStore
	QueueStore     ports.ActionQueueStore
	OperationStore ports.OperationStore

	// Remote endpoints
	Transport *websocket.Client
	Snapshots *snapshot.Client

	// Message pipeline
	Validator  *sync.Validator
	Dedup      *sync.DedupFilter
	Reconciler *sync.Reconciler
	Recovery   *sync.RecoveryService

	// Application services
	Queue       *queue.Service
	Tracker     *presence.Tracker
	Engine      *sync.Engine
	Coordinator *bulk.Coordinator

	// Ops surface
	Monitor *rest.Monitor
	Handler http.Handler

	shutdownFunctions []func() error
}

// AddShutdownFunction registers fn to run during Shutdown.
func (c *Container) AddShutdownFunction(fn func() error) {
	c.shutdownFunctions = append(c.shutdownFunctions, fn)
}
