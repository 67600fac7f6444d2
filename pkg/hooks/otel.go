package hooks

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/promptstrike/promptstrike/pkg/defaults"
	"github.com/promptstrike/promptstrike/pkg/dispatcher"
	"github.com/promptstrike/promptstrike/pkg/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports run telemetry to an OpenTelemetry collector. Each test
// run becomes a root span; payload results and findings are recorded as
// span events.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu     sync.Mutex
	spans  map[string]trace.Span
	closed bool
}

// OTelOptions configures the OpenTelemetry hook.
type OTelOptions struct {
	// Endpoint is the OTLP endpoint (e.g. "localhost:4317").
	Endpoint string

	// ServiceName for traces (default: "promptstrike").
	ServiceName string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// Headers are passed to the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout bounds graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter connection setup (default: 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates the hook and connects the OTLP exporter. Exporter
// failures after setup are handled by the SDK's batcher and never block
// the run.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = 10 * time.Second
	}

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "testing-engine"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("promptstrike/run"),
		spans:          make(map[string]trace.Span),
	}, nil
}

// EventTypes returns the event types this hook consumes.
func (h *OTelHook) EventTypes() []events.Type {
	return []events.Type{
		events.TypeStart,
		events.TypeResult,
		events.TypeFinding,
		events.TypeError,
		events.TypeComplete,
	}
}

// OnEvent records the event on the run's span.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case events.StartEvent:
		_, span := h.tracer.Start(ctx, "promptstrike.run",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("run_id", e.RunID()),
				attribute.String("project_id", e.ProjectID),
				attribute.String("target", e.TargetURL),
				attribute.Int("total_payloads", e.TotalPayloads),
				attribute.Bool("dry_run", e.DryRun),
			),
		)
		h.spans[e.RunID()] = span

	case events.ResultEvent:
		span, ok := h.spans[e.RunID()]
		if !ok {
			return nil
		}
		name := "payload_result"
		if e.Success {
			name = "attack_succeeded"
		}
		span.AddEvent(name, trace.WithAttributes(
			attribute.String("payload_id", e.PayloadID),
			attribute.String("category", e.Category.String()),
			attribute.String("severity", e.Severity.String()),
			attribute.Bool("success", e.Success),
			attribute.Float64("confidence", e.Confidence),
			attribute.Int("status_code", e.StatusCode),
			attribute.Float64("latency_ms", e.LatencyMs),
		))

	case events.FindingEvent:
		span, ok := h.spans[e.RunID()]
		if !ok {
			return nil
		}
		span.AddEvent("finding_created", trace.WithAttributes(
			attribute.String("finding_id", e.FindingID),
			attribute.String("category", e.Category.String()),
			attribute.String("severity", e.Severity.String()),
		))
		span.SetStatus(codes.Error, "attack succeeded against target")

	case events.ErrorEvent:
		span, ok := h.spans[e.RunID()]
		if !ok {
			return nil
		}
		span.AddEvent("error", trace.WithAttributes(
			attribute.String("payload_id", e.PayloadID),
			attribute.String("message", e.Message),
			attribute.Bool("fatal", e.Fatal),
		))

	case events.CompleteEvent:
		span, ok := h.spans[e.RunID()]
		if !ok {
			return nil
		}
		span.SetAttributes(
			attribute.String("status", e.Status),
			attribute.Int("completed", e.Completed),
			attribute.Int("successful", e.Successful),
		)
		span.End()
		delete(h.spans, e.RunID())
	}

	return nil
}

// Close ends any unfinished spans and shuts down the exporter.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, span := range h.spans {
		span.End()
		delete(h.spans, id)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
	defer cancel()
	return h.tracerProvider.Shutdown(ctx)
}
