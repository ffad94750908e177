package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
)

// TracerProvider wraps the OpenTelemetry tracer provider with the
// service's export and sampling configuration.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName string
	Environment string
	Endpoint    string
	SampleRate  float64
	EnableDebug bool
}

// InitTracing initializes distributed tracing for the sync core.
func InitTracing(config TracingConfig) (*TracerProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "boardsync"
	}
	if config.SampleRate == 0 {
		config.SampleRate = getSampleRate(config.Environment)
	}

	exporter, err := createOTLPExporter(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := createResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := createSampler(config)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(createPropagator())

	if config.EnableDebug {
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			fmt.Printf("OpenTelemetry error: %v\n", err)
		}))
	}

	return &TracerProvider{
		provider: tp,
		tracer:   tp.Tracer(config.ServiceName),
		config:   config,
	}, nil
}

// createOTLPExporter creates an OTLP gRPC exporter
func createOTLPExporter(endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
	}

	// Use insecure connection for local development
	if endpoint == "localhost:4317" || endpoint == "127.0.0.1:4317" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(opts...),
	)
}

// createResource creates a resource describing this service instance
func createResource(config TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(getServiceVersion()),
		attribute.String("deployment.environment", config.Environment),
	}

	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// createSampler creates a sampler based on environment
func createSampler(config TracingConfig) sdktrace.Sampler {
	switch config.Environment {
	case "production":
		return sdktrace.TraceIDRatioBased(config.SampleRate)
	case "staging":
		return sdktrace.TraceIDRatioBased(0.1)
	default:
		// Sample everything in development
		return sdktrace.AlwaysSample()
	}
}

// createPropagator creates a composite propagator for trace context
func createPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// getSampleRate returns the default sample rate for an environment
func getSampleRate(environment string) float64 {
	switch environment {
	case "production":
		return 0.01
	case "staging":
		return 0.1
	default:
		return 1.0
	}
}

// getServiceVersion returns the service version from the environment
func getServiceVersion() string {
	if version := os.Getenv("SERVICE_VERSION"); version != "" {
		return version
	}
	return "unknown"
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

// StartSpan starts a new span
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, name, opts...)
}

// Tracer returns the pre-configured tracer instance.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// TraceStateStore wraps a state store so every operation emits a span.
func TraceStateStore(store ports.StateStore, tracer trace.Tracer) ports.StateStore {
	return &tracedStateStore{
		inner:  store,
		tracer: tracer,
	}
}

type tracedStateStore struct {
	inner  ports.StateStore
	tracer trace.Tracer
}

func (s *tracedStateStore) Get(ctx context.Context, id valueobjects.VaultID) (*entities.Vault, error) {
	ctx, span := s.tracer.Start(ctx, "statestore.Get",
		trace.WithAttributes(attribute.String("vault.id", id.String())),
	)
	defer span.End()

	vault, err := s.inner.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
	}

	return vault, err
}

func (s *tracedStateStore) Put(ctx context.Context, vault *entities.Vault) error {
	ctx, span := s.tracer.Start(ctx, "statestore.Put",
		trace.WithAttributes(
			attribute.String("vault.id", vault.ID().String()),
			attribute.Int64("vault.version", vault.Version().Int64()),
		),
	)
	defer span.End()

	err := s.inner.Put(ctx, vault)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (s *tracedStateStore) Delete(ctx context.Context, id valueobjects.VaultID) error {
	ctx, span := s.tracer.Start(ctx, "statestore.Delete",
		trace.WithAttributes(attribute.String("vault.id", id.String())),
	)
	defer span.End()

	err := s.inner.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (s *tracedStateStore) List(ctx context.Context) ([]*entities.Vault, error) {
	ctx, span := s.tracer.Start(ctx, "statestore.List")
	defer span.End()

	vaults, err := s.inner.List(ctx)
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Int("vault.count", len(vaults)))

	return vaults, err
}

func (s *tracedStateStore) Watermarks(ctx context.Context) (map[string]int64, error) {
	ctx, span := s.tracer.Start(ctx, "statestore.Watermarks")
	defer span.End()

	marks, err := s.inner.Watermarks(ctx)
	if err != nil {
		span.RecordError(err)
	}

	return marks, err
}

func (s *tracedStateStore) ReplaceAll(ctx context.Context, vaults []*entities.Vault) error {
	ctx, span := s.tracer.Start(ctx, "statestore.ReplaceAll",
		trace.WithAttributes(attribute.Int("vault.count", len(vaults))),
	)
	defer span.End()

	err := s.inner.ReplaceAll(ctx, vaults)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (s *tracedStateStore) Count(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "statestore.Count")
	defer span.End()

	count, err := s.inner.Count(ctx)
	if err != nil {
		span.RecordError(err)
	}

	return count, err
}
