// Package rest serves the local ops surface: liveness, readiness, a
// status summary of the sync core and the Prometheus registry. It is not
// the data plane; vault state reaches consumers through the event bus.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/application/presence"
	"github.com/aiborg-ai/appboardguru-sub011/application/queue"
	"github.com/aiborg-ai/appboardguru-sub011/interfaces/http/rest/middleware"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// Router wires the ops endpoints.
type Router struct {
	transport ports.Transport
	queue     *queue.Service
	store     ports.StateStore
	tracker   *presence.Tracker
	monitor   *Monitor
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewRouter creates a router over the sync core's read surfaces.
func NewRouter(
	transport ports.Transport,
	queueService *queue.Service,
	store ports.StateStore,
	tracker *presence.Tracker,
	monitor *Monitor,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		transport: transport,
		queue:     queueService,
		store:     store,
		tracker:   tracker,
		monitor:   monitor,
		metrics:   metrics,
		logger:    logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	router.Get("/healthz", rt.healthz)
	router.Get("/readyz", rt.readyz)
	router.Get("/status", rt.status)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))

	return router
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readyz reports 503 until the realtime connection has opened once, so a
// supervisor does not route to an instance still on its first dial.
func (rt *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !rt.monitor.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"waiting for first connection"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

type statusResponse struct {
	Connection   string           `json:"connection"`
	QueueDepth   int              `json:"queueDepth"`
	Vaults       int              `json:"vaults"`
	OnlineActors int              `json:"onlineActors"`
	TypingActive int              `json:"typingActive"`
	LastRecovery *RecoverySummary `json:"lastRecovery,omitempty"`
}

func (rt *Router) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	depth, err := rt.queue.Depth(ctx)
	if err != nil {
		rt.logger.Error("status: queue depth failed", zap.Error(err))
		http.Error(w, "queue unavailable", http.StatusInternalServerError)
		return
	}
	vaults, err := rt.store.Count(ctx)
	if err != nil {
		rt.logger.Error("status: vault count failed", zap.Error(err))
		http.Error(w, "state store unavailable", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		Connection:   string(rt.transport.State()),
		QueueDepth:   depth,
		Vaults:       vaults,
		OnlineActors: rt.tracker.OnlineCount(),
		TypingActive: rt.tracker.TypingCount(),
		LastRecovery: rt.monitor.LastRecovery(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		rt.logger.Error("status: encoding failed", zap.Error(err))
	}
}
