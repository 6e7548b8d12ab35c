package tracing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls span export for audit runs.
type Config struct {
	ServiceName string
	// SampleRatio is clamped to [0,1]; 0 disables tracing.
	SampleRatio float64
	// FilePath receives one JSON span record per line. Empty keeps spans in memory only.
	FilePath string
}

var (
	globalMu     sync.RWMutex
	globalTracer *Tracer
)

// Setup installs the process tracer. Call the returned function before exit to
// flush pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	tracer, err := newTracer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		return func(context.Context) error { return nil }, nil
	}

	globalMu.Lock()
	previous := globalTracer
	globalTracer = tracer
	globalMu.Unlock()
	if previous != nil {
		_ = previous.Shutdown(ctx)
	}

	otel.SetTracerProvider(tracer.provider)
	return tracer.Shutdown, nil
}

// CurrentTracer returns the active tracer, or nil if tracing is disabled.
func CurrentTracer() *Tracer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer
}

// Tracer owns the SDK provider behind StartSpan.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

func newTracer(ctx context.Context, cfg Config) (*Tracer, error) {
	ratio := math.Max(0, math.Min(1, cfg.SampleRatio))
	if ratio == 0 {
		return nil, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "cipherscore"
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithTelemetrySDK(),
		sdkresource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		exp, err := newFileExporter(path)
		if err != nil {
			return nil, fmt.Errorf("open span file: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exp))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	return &Tracer{provider: provider, tracer: provider.Tracer("github.com/RowanDark/cipherscore/audit")}, nil
}

// Shutdown flushes exporters and releases resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	globalMu.Lock()
	if globalTracer == t {
		globalTracer = nil
	}
	globalMu.Unlock()
	return t.provider.Shutdown(shutdownCtx)
}
