package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultServiceName = "warden"

// shutdownOTEL flushes and closes the OTLP pipeline. nil when logging to JSON.
var shutdownOTEL func(context.Context) error

// Setup picks the handler from the environment. With OTEL_ENABLED=true records
// are exported over OTLP/gRPC to the endpoint named by the standard
// OTEL_EXPORTER_OTLP_* variables, and OTEL_SERVICE_NAME names the resource.
// Otherwise, or if the exporter cannot be built, JSON lines go to stdout.
func Setup(ctx context.Context) error {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("OTEL_ENABLED")), "true") {
		SetOutput(os.Stdout)
		return nil
	}

	name := os.Getenv("OTEL_SERVICE_NAME")
	if name == "" {
		name = defaultServiceName
	}

	handler, shutdown, err := newOTELHandler(ctx, name)
	if err != nil {
		SetOutput(os.Stdout)
		return fmt.Errorf("otel logging: %w", err)
	}

	if shutdownOTEL != nil {
		_ = shutdownOTEL(ctx)
	}
	shutdownOTEL = shutdown
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
	return nil
}

// Shutdown flushes buffered OTLP records. It is a no-op for JSON logging.
func Shutdown(ctx context.Context) error {
	if shutdownOTEL == nil {
		return nil
	}
	err := shutdownOTEL(ctx)
	shutdownOTEL = nil
	return err
}

func newOTELHandler(ctx context.Context, serviceName string) (slog.Handler, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	bridge := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider))
	return &levelHandler{level: level, next: bridge}, provider.Shutdown, nil
}

// levelHandler applies the LOG_LEVEL threshold to a handler that has none
type levelHandler struct {
	level slog.Leveler
	next  slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, next: h.next.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, next: h.next.WithGroup(name)}
}
