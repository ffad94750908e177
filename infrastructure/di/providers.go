package di

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/bulk"
	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/application/presence"
	"github.com/aiborg-ai/appboardguru-sub011/application/queue"
	"github.com/aiborg-ai/appboardguru-sub011/application/sync"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/config"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/messaging"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/persistence/bolt"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/persistence/memory"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/snapshot"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/transport/websocket"
	"github.com/aiborg-ai/appboardguru-sub011/interfaces/http/rest"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/auth"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/retry"
)

// Observability providers

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(string(cfg.Environment))
}

func provideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Observability.MetricsNamespace)
}

func provideTracing(cfg *config.Config) (*observability.TracerProvider, error) {
	if !cfg.Observability.EnableTracing {
		return nil, nil
	}
	return observability.InitTracing(observability.TracingConfig{
		ServiceName: "boardsync",
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Observability.TracingEndpoint,
		SampleRate:  cfg.Observability.SampleRate,
	})
}

func provideClock() clock.Clock {
	return clock.System()
}

// Auth providers

func provideTokenSource(cfg *config.Config) *auth.StaticTokenSource {
	return auth.NewStaticTokenSource(cfg.Auth.Token)
}

func provideTokenValidator(cfg *config.Config) (ports.TokenValidator, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth: jwt secret not configured (set BOARDSYNC_JWT_SECRET)")
	}
	return auth.NewJWTVerifier(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.Auth.JWTSecret,
		Issuer:        cfg.Auth.Issuer,
		Audience:      []string{cfg.Auth.Audience},
	})
}

// Storage providers

func provideStateStore(cfg *config.Config, tracing *observability.TracerProvider) ports.StateStore {
	store := ports.StateStore(memory.NewStateStore())
	if tracing != nil {
		store = observability.TraceStateStore(store, tracing.Tracer())
	}
	return store
}

func provideActionQueueStore(cfg *config.Config) (ports.ActionQueueStore, func() error, error) {
	switch cfg.Storage.Driver {
	case "bolt":
		store, err := bolt.NewActionQueueStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return memory.NewActionQueueStore(), nil, nil
	}
}

func provideOperationStore(clk clock.Clock) ports.OperationStore {
	return memory.NewOperationStore(clk)
}

// Messaging and transport providers

func provideBus(logger *zap.Logger) *messaging.InProcessBus {
	return messaging.NewInProcessBus(logger)
}

func provideTransport(
	cfg *config.Config,
	tokens *auth.StaticTokenSource,
	logger *zap.Logger,
	metrics *observability.Collector,
) *websocket.Client {
	return websocket.NewClient(websocket.Config{
		URL:              cfg.Transport.URL,
		HandshakeTimeout: time.Duration(cfg.Transport.HandshakeTimeout),
		WriteWait:        time.Duration(cfg.Transport.WriteWait),
		PongWait:         time.Duration(cfg.Transport.PongWait),
		Backoff: retry.NewPolicy(
			time.Duration(cfg.Transport.ReconnectBase),
			time.Duration(cfg.Transport.ReconnectMax),
			cfg.Transport.BackoffFactor,
			cfg.Transport.JitterFactor,
		),
	}, tokens, logger, metrics)
}

func provideSnapshotClient(
	cfg *config.Config,
	tokens *auth.StaticTokenSource,
	logger *zap.Logger,
	metrics *observability.Collector,
) *snapshot.Client {
	return snapshot.NewClient(snapshot.Config{
		URL:              cfg.Snapshot.URL,
		Timeout:          time.Duration(cfg.Snapshot.Timeout),
		BreakerThreshold: cfg.Snapshot.BreakerThreshold,
		BreakerCooldown:  time.Duration(cfg.Snapshot.BreakerCooldown),
		Retry:            retry.DefaultConfig(),
	}, tokens, logger, metrics)
}

// Application providers

func provideQueueService(
	cfg *config.Config,
	store ports.ActionQueueStore,
	transport ports.Transport,
	tokens ports.TokenSource,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
) *queue.Service {
	return queue.NewService(store, transport, tokens, bus, clk, logger, metrics, queue.Config{
		AckTimeout:  time.Duration(cfg.Queue.AckTimeout),
		MaxAttempts: cfg.Queue.MaxRetries,
	})
}

func provideTracker(
	cfg *config.Config,
	clk clock.Clock,
	bus ports.EventPublisher,
	logger *zap.Logger,
	metrics *observability.Collector,
) *presence.Tracker {
	return presence.NewTracker(presence.Config{
		TypingTTL:   time.Duration(cfg.Presence.TypingTTL),
		PresenceTTL: time.Duration(cfg.Presence.PresenceTTL),
	}, clk, bus, logger, metrics)
}

func provideEngine(
	cfg *config.Config,
	transport ports.Transport,
	validator *sync.Validator,
	dedup *sync.DedupFilter,
	reconciler *sync.Reconciler,
	recovery *sync.RecoveryService,
	queueService *queue.Service,
	tracker *presence.Tracker,
	tokens ports.TokenSource,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracer trace.Tracer,
) *sync.Engine {
	return sync.NewEngine(
		transport, validator, dedup, reconciler, recovery, queueService, tracker,
		tokens, bus, clk, logger, metrics, tracer,
		sync.EngineConfig{
			RecoveryTimeout: time.Duration(cfg.Sync.RecoveryTimeout),
			PendingBuffer:   cfg.Sync.PendingBuffer,
			TickInterval:    time.Duration(cfg.Presence.SweepInterval),
		},
	)
}

func provideCoordinator(
	cfg *config.Config,
	states ports.StateStore,
	operations ports.OperationStore,
	dispatcher bulk.Dispatcher,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
) *bulk.Coordinator {
	return bulk.NewCoordinator(states, operations, dispatcher, bus, clk, logger, metrics, bulk.Config{
		UndoWindow:   time.Duration(cfg.Bulk.UndoWindow),
		MaxBatchSize: cfg.Bulk.MaxBatchSize,
	})
}

// Interface providers

func provideOpsHandler(
	transport ports.Transport,
	queueService *queue.Service,
	states ports.StateStore,
	tracker *presence.Tracker,
	monitor *rest.Monitor,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(transport, queueService, states, tracker, monitor, metrics, logger).Setup()
}

// registerSubscriptions wires the in-process bus consumers. The
// coordinator finalizes bulk batches from action outcomes; the monitor
// feeds the readiness and status endpoints.
func registerSubscriptions(bus *messaging.InProcessBus, coordinator *bulk.Coordinator, monitor *rest.Monitor) error {
	subscriptions := []struct {
		eventType string
		handler   ports.EventHandler
	}{
		{events.TypeActionAcked, coordinator},
		{events.TypeActionRolledBack, coordinator},
		{events.TypeActionFailed, coordinator},
		{events.TypeConnectionStateChanged, monitor},
		{events.TypeRecoveryCompleted, monitor},
	}
	for _, s := range subscriptions {
		if err := bus.Subscribe(s.eventType, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.eventType, err)
		}
	}
	return nil
}
