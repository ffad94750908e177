//go:build wireinject
// +build wireinject

// Package di provides Wire provider sets. Generation is optional; the
// committed path is the manual container in container.go.
package di

import (
	"net/http"
	"time"

	"github.com/google/wire"
	"go.opentelemetry.io/otel/trace"
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

// SuperSet composes every layer of the sync core.
var SuperSet = wire.NewSet(
	ObservabilitySet,
	AuthSet,
	StorageSet,
	EndpointSet,
	PipelineSet,
	ServiceSet,
	InterfaceSet,
	provideContainer,
)

// ObservabilitySet provides logging, metrics, tracing and the clock.
var ObservabilitySet = wire.NewSet(
	provideLogger,
	provideMetrics,
	provideTracing,
	provideTracer,
	provideClock,
)

// AuthSet provides the outbound token source and inbound verifier.
var AuthSet = wire.NewSet(
	provideTokenSource,
	provideTokenValidator,
	wire.Bind(new(ports.TokenSource), new(*auth.StaticTokenSource)),
)

// StorageSet provides the bus and the three local stores.
var StorageSet = wire.NewSet(
	provideBus,
	provideStateStore,
	provideOperationStore,
	provideQueueStoreWithCleanup,
	wire.Bind(new(ports.EventPublisher), new(*messaging.InProcessBus)),
)

// EndpointSet provides the realtime transport and the snapshot endpoint.
var EndpointSet = wire.NewSet(
	provideTransport,
	provideSnapshotClient,
	wire.Bind(new(ports.Transport), new(*websocket.Client)),
	wire.Bind(new(ports.SnapshotClient), new(*snapshot.Client)),
)

// PipelineSet provides the inbound message pipeline stages.
var PipelineSet = wire.NewSet(
	sync.NewValidator,
	provideDedupFilter,
	sync.NewReconciler,
	sync.NewRecoveryService,
)

// ServiceSet provides the application services built on the pipeline.
var ServiceSet = wire.NewSet(
	provideQueueService,
	provideTracker,
	provideEngine,
	provideCoordinator,
	wire.Bind(new(bulk.Dispatcher), new(*sync.Engine)),
)

// InterfaceSet provides the ops HTTP surface.
var InterfaceSet = wire.NewSet(
	rest.NewMonitor,
	provideOpsHandler,
)

// provideTracer extracts a tracer from the provider, or nil when tracing
// is disabled.
func provideTracer(tracing *observability.TracerProvider) trace.Tracer {
	if tracing == nil {
		return nil
	}
	return tracing.Tracer()
}

// provideDedupFilter adapts the dedup constructor to config values.
func provideDedupFilter(cfg *config.Config, clk clock.Clock) *sync.DedupFilter {
	return sync.NewDedupFilter(cfg.Sync.DedupCapacity, time.Duration(cfg.Sync.DedupTTL), clk)
}

// provideQueueStoreWithCleanup adapts the queue store provider to Wire's
// cleanup convention.
func provideQueueStoreWithCleanup(cfg *config.Config) (ports.ActionQueueStore, func(), error) {
	store, closeFn, err := provideActionQueueStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {}
	if closeFn != nil {
		cleanup = func() { _ = closeFn() }
	}
	return store, cleanup, nil
}

// provideContainer assembles the container and registers the bus consumers.
func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracing *observability.TracerProvider,
	clk clock.Clock,
	tokens *auth.StaticTokenSource,
	tokenValidator ports.TokenValidator,
	bus *messaging.InProcessBus,
	stateStore ports.StateStore,
	queueStore ports.ActionQueueStore,
	operationStore ports.OperationStore,
	transport *websocket.Client,
	snapshots *snapshot.Client,
	validator *sync.Validator,
	dedup *sync.DedupFilter,
	reconciler *sync.Reconciler,
	recovery *sync.RecoveryService,
	queueService *queue.Service,
	tracker *presence.Tracker,
	engine *sync.Engine,
	coordinator *bulk.Coordinator,
	monitor *rest.Monitor,
	handler http.Handler,
) (*Container, error) {
	c := &Container{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		Tracing:        tracing,
		Clock:          clk,
		Tokens:         tokens,
		TokenValidator: tokenValidator,
		Bus:            bus,
		StateStore:     stateStore,
		QueueStore:     queueStore,
		OperationStore: operationStore,
		Transport:      transport,
		Snapshots:      snapshots,
		Validator:      validator,
		Dedup:          dedup,
		Reconciler:     reconciler,
		Recovery:       recovery,
		Queue:          queueService,
		Tracker:        tracker,
		Engine:         engine,
		Coordinator:    coordinator,
		Monitor:        monitor,
		Handler:        handler,
	}
	if err := registerSubscriptions(bus, coordinator, monitor); err != nil {
		return nil, err
	}
	return c, nil
}

// InitializeContainer builds the container through Wire.
func InitializeContainer(cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
