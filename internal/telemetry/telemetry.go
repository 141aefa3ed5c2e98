// Package telemetry provides optional OpenTelemetry metrics.
//
// Telemetry is disabled by default and enabled with GOBBY_OTEL_ENABLED=1.
// When disabled every recording call is a no-op against the global noop
// meter provider, so instrumented code paths never need to check.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/gobby-dev/gobby"

var (
	mu       sync.Mutex
	provider *sdkmetric.MeterProvider

	taskMutations metric.Int64Counter
	depMutations  metric.Int64Counter
	syncRuns      metric.Int64Counter
)

// Enabled reports whether telemetry collection is switched on.
func Enabled() bool {
	v := os.Getenv("GOBBY_OTEL_ENABLED")
	return v == "1" || v == "true"
}

// Init sets up the global meter provider. When telemetry is disabled it
// leaves the default noop provider in place and returns immediately.
//
// GOBBY_OTEL_EXPORTER selects the exporter: "stdout" (default) or "otlp",
// the latter honoring the standard OTEL_EXPORTER_OTLP_* environment.
func Init(ctx context.Context, version string) error {
	if !Enabled() {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return nil
	}

	var reader sdkmetric.Reader
	switch os.Getenv("GOBBY_OTEL_EXPORTER") {
	case "", "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))
	case "otlp":
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return fmt.Errorf("otlp metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))
	default:
		return fmt.Errorf("unknown metric exporter %q", os.Getenv("GOBBY_OTEL_EXPORTER"))
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("gobby"),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(meterName)
	taskMutations, err = meter.Int64Counter("gobby.task.mutations",
		metric.WithDescription("Task create/update/close/delete operations"))
	if err != nil {
		return err
	}
	depMutations, err = meter.Int64Counter("gobby.dependency.mutations",
		metric.WithDescription("Dependency edge add/remove operations"))
	if err != nil {
		return err
	}
	syncRuns, err = meter.Int64Counter("gobby.sync.runs",
		metric.WithDescription("Import and export runs by kind and outcome"))
	if err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the meter provider if one was installed.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	provider = nil
	return err
}

// CountTaskMutation records one task mutation of the given operation kind.
func CountTaskMutation(ctx context.Context, op string) {
	if c := taskMutations; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// CountDependencyMutation records one dependency edge mutation.
func CountDependencyMutation(ctx context.Context, op string) {
	if c := depMutations; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// CountSync records one sync engine run. kind is "import" or "export".
func CountSync(ctx context.Context, kind, outcome string) {
	if c := syncRuns; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		))
	}
}
