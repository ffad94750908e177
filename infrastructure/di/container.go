//go:build !wireinject
// +build !wireinject

// Package di provides the manual construction path for the container.
package di

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/sync"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/config"
	"github.com/aiborg-ai/appboardguru-sub011/interfaces/http/rest"
)

// shutdownGrace bounds each cleanup step during Shutdown.
const shutdownGrace = 5 * time.Second

// NewContainer builds the full dependency graph from cfg.
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:            cfg,
		shutdownFunctions: make([]func() error, 0),
	}

	if err := c.initialize(); err != nil {
		return nil, fmt.Errorf("di: initialize container: %w", err)
	}

	return c, nil
}

// initialize sets up all dependencies in order.
func (c *Container) initialize() error {
	// 1. Observability
	if err := c.initializeObservability(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	// 2. Auth
	if err := c.initializeAuth(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// 3. Persistence
	if err := c.initializeStores(); err != nil {
		return fmt.Errorf("stores: %w", err)
	}

	// 4. Remote endpoints
	c.initializeEndpoints()

	// 5. Message pipeline
	c.initializePipeline()

	// 6. Application services
	c.initializeServices()

	// 7. Event subscriptions
	if err := c.initializeSubscriptions(); err != nil {
		return fmt.Errorf("subscriptions: %w", err)
	}

	// 8. Ops HTTP surface
	c.initializeOpsSurface()

	c.Logger.Info("container initialized",
		zap.String("environment", string(c.Config.Environment)),
		zap.String("storage_driver", c.Config.Storage.Driver),
		zap.Bool("tracing", c.Tracing != nil))
	return nil
}

func (c *Container) initializeObservability() error {
	logger, err := provideLogger(c.Config)
	if err != nil {
		return err
	}
	c.Logger = logger
	c.Metrics = provideMetrics(c.Config)
	c.Clock = provideClock()

	tracing, err := provideTracing(c.Config)
	if err != nil {
		// Tracing is best-effort; the core runs without it.
		c.Logger.Warn("tracing disabled", zap.Error(err))
		return nil
	}
	if tracing != nil {
		c.Tracing = tracing
		c.AddShutdownFunction(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return tracing.Shutdown(ctx)
		})
	}
	return nil
}

func (c *Container) initializeAuth() error {
	c.Tokens = provideTokenSource(c.Config)

	validator, err := provideTokenValidator(c.Config)
	if err != nil {
		return err
	}
	c.TokenValidator = validator
	return nil
}

func (c *Container) initializeStores() error {
	c.Bus = provideBus(c.Logger)
	c.StateStore = provideStateStore(c.Config, c.Tracing)
	c.OperationStore = provideOperationStore(c.Clock)

	queueStore, closeFn, err := provideActionQueueStore(c.Config)
	if err != nil {
		return err
	}
	c.QueueStore = queueStore
	if closeFn != nil {
		c.AddShutdownFunction(closeFn)
	}
	return nil
}

func (c *Container) initializeEndpoints() {
	c.Transport = provideTransport(c.Config, c.Tokens, c.Logger, c.Metrics)
	c.Snapshots = provideSnapshotClient(c.Config, c.Tokens, c.Logger, c.Metrics)
}

func (c *Container) initializePipeline() {
	c.Validator = sync.NewValidator(c.TokenValidator)
	c.Dedup = sync.NewDedupFilter(c.Config.Sync.DedupCapacity, time.Duration(c.Config.Sync.DedupTTL), c.Clock)
	c.Reconciler = sync.NewReconciler(c.StateStore, c.Clock, c.Logger, c.Metrics)
	c.Recovery = sync.NewRecoveryService(
		c.Transport, c.StateStore, c.Reconciler, c.Snapshots,
		c.Tokens, c.Bus, c.Clock, c.Logger, c.Metrics,
	)
}

func (c *Container) initializeServices() {
	c.Queue = provideQueueService(c.Config, c.QueueStore, c.Transport, c.Tokens, c.Bus, c.Clock, c.Logger, c.Metrics)
	c.Tracker = provideTracker(c.Config, c.Clock, c.Bus, c.Logger, c.Metrics)

	var tracer trace.Tracer
	if c.Tracing != nil {
		tracer = c.Tracing.Tracer()
	}
	c.Engine = provideEngine(
		c.Config, c.Transport, c.Validator, c.Dedup, c.Reconciler, c.Recovery,
		c.Queue, c.Tracker, c.Tokens, c.Bus, c.Clock, c.Logger, c.Metrics, tracer,
	)
	c.Coordinator = provideCoordinator(
		c.Config, c.StateStore, c.OperationStore, c.Engine,
		c.Bus, c.Clock, c.Logger, c.Metrics,
	)
}

func (c *Container) initializeSubscriptions() error {
	c.Monitor = rest.NewMonitor()
	return registerSubscriptions(c.Bus, c.Coordinator, c.Monitor)
}

func (c *Container) initializeOpsSurface() {
	c.Handler = provideOpsHandler(c.Transport, c.Queue, c.StateStore, c.Tracker, c.Monitor, c.Metrics, c.Logger)
}

// Shutdown runs the registered cleanup functions in reverse order.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(c.shutdownFunctions) - 1; i >= 0; i-- {
		if err := c.shutdownFunctions[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("shutdown step failed", zap.Error(err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("di: shutdown completed with %d errors", len(errs))
	}
	return nil
}
