package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/chanmirror/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer exports spans over OTLP/HTTP when enabled. The exporter reads
// the standard OTEL_EXPORTER_OTLP_* variables.
//
// nolint:ireturn
func NewTracer(ctx context.Context, logger *slog.Logger, enabled bool, serviceName string) trace.Tracer {
	if !enabled {
		return otelhelper.NewNoopTracer()
	}

	tracer, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without tracing", "error", err)

		return otelhelper.NewNoopTracer()
	}

	return tracer
}
