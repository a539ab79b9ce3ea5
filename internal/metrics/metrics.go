// Package metrics exposes the application's OpenTelemetry instruments.
// Instruments are created against the global meter provider, which delegates
// once SetupMetrics installs the real one, so call sites never nil-check.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
)

// Config controls the meter provider.
type Config struct {
	Enabled  bool          `conf:"enabled" yaml:"enabled" json:"enabled"`
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}

const meterName = "github.com/fernhill/clienthub"

// Instruments shared across the identity engine.
var (
	SignIns           metric.Int64Counter
	SignOuts          metric.Int64Counter
	BootstrapAttempts metric.Int64Counter
	AccessDenials     metric.Int64Counter
	GuardRedirects    metric.Int64Counter
)

//nolint:gochecknoinits // Instruments bind to the delegating global meter.
func init() {
	meter := otel.Meter(meterName)

	SignIns, _ = meter.Int64Counter("auth.sign_ins",
		metric.WithDescription("Successful sign-ins"))
	SignOuts, _ = meter.Int64Counter("auth.sign_outs",
		metric.WithDescription("Sign-outs"))
	BootstrapAttempts, _ = meter.Int64Counter("profile.bootstrap_attempts",
		metric.WithDescription("Team profile bootstrap attempts"))
	AccessDenials, _ = meter.Int64Counter("access.denials",
		metric.WithDescription("Capability evaluator denials observed at enforcement points"))
	GuardRedirects, _ = meter.Int64Counter("guard.redirects",
		metric.WithDescription("Route guard redirect decisions"))
}

// NewProvider builds the meter provider, or nil when metrics are disabled.
func NewProvider(cfg Config) (*sdk.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	provider := sdk.NewMeterProvider(
		sdk.WithReader(sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval))),
	)

	return provider, nil
}

// SetupMetrics installs the provider as the global one. Instruments created
// in init rebind to it through the global delegate.
func SetupMetrics(provider *sdk.MeterProvider, serverName string) error {
	otel.SetMeterProvider(provider)

	meter := otel.Meter(meterName)

	uptime, err := meter.Int64ObservableGauge("server.uptime_seconds",
		metric.WithDescription("Seconds since the server started"))
	if err != nil {
		return fmt.Errorf("failed to create uptime gauge: %w", err)
	}

	start := time.Now()

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(uptime, int64(time.Since(start).Seconds()),
			metric.WithAttributes(attribute.String("server.name", serverName)))

		return nil
	}, uptime)
	if err != nil {
		return fmt.Errorf("failed to register uptime callback: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the provider.
func Shutdown(ctx context.Context, provider *sdk.MeterProvider) error {
	if provider == nil {
		return nil
	}

	return provider.Shutdown(ctx)
}
