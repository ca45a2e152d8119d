// Package observability wires Genkit's trace spans to an OTLP collector.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/scoutchat/scout/internal/config"
)

// shutdownTimeout bounds the final span flush on exit.
const shutdownTimeout = 5 * time.Second

// Setup configures OTLP trace export for Genkit spans. When no endpoint
// is configured tracing stays disabled and the returned shutdown is a
// no-op. The exporter uses plain HTTP; put a collector sidecar in front
// when TLS is needed.
func Setup(ctx context.Context, cfg config.OtelConfig, logger *slog.Logger) (func(), error) {
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return func() {}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "scout"
	}
	os.Setenv("OTEL_SERVICE_NAME", serviceName)
	if cfg.Environment != "" {
		os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "service", serviceName)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := processor.Shutdown(ctx); err != nil {
			logger.Warn("shutting down span processor", "error", err)
		}
	}, nil
}
