package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-portal-shell/internal/router"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	NavigationsTotal       metric.Int64Counter
	ModuleLoadsTotal       metric.Int64Counter
	ModuleLoadSeconds      metric.Float64Histogram
	StaleLoadsTotal        metric.Int64Counter
	StorageWriteErrorTotal metric.Int64Counter
}

var _ router.Recorder = (*AppMetrics)(nil)

var (
	appMetrics *AppMetrics
	once       sync.Once
	initErr    error
)

// New creates the instruments on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error

	if m.NavigationsTotal, err = meter.Int64Counter(
		"shell_navigations_total",
		metric.WithDescription("Navigations resolved, by frame kind"),
		metric.WithUnit("{navigation}"),
	); err != nil {
		return nil, fmt.Errorf("create shell_navigations_total: %w", err)
	}

	if m.ModuleLoadsTotal, err = meter.Int64Counter(
		"shell_module_loads_total",
		metric.WithDescription("Feature module loads, by module and outcome"),
		metric.WithUnit("{load}"),
	); err != nil {
		return nil, fmt.Errorf("create shell_module_loads_total: %w", err)
	}

	if m.ModuleLoadSeconds, err = meter.Float64Histogram(
		"shell_module_load_duration_seconds",
		metric.WithDescription("Duration of feature module loads in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create shell_module_load_duration_seconds: %w", err)
	}

	if m.StaleLoadsTotal, err = meter.Int64Counter(
		"shell_stale_loads_total",
		metric.WithDescription("Module loads that settled after their navigation was replaced"),
		metric.WithUnit("{load}"),
	); err != nil {
		return nil, fmt.Errorf("create shell_stale_loads_total: %w", err)
	}

	if m.StorageWriteErrorTotal, err = meter.Int64Counter(
		"shell_storage_write_errors_total",
		metric.WithDescription("Failed persistence writes, by key"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create shell_storage_write_errors_total: %w", err)
	}
	return m, nil
}

// InitAppMetrics initializes the global instruments once, from the global MeterProvider.
func InitAppMetrics() error {
	once.Do(func() {
		appMetrics, initErr = New(otel.GetMeterProvider().Meter("portal-shell"))
	})
	return initErr
}

// Get returns the global instruments. InitAppMetrics must have succeeded.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

func (m *AppMetrics) Navigated(ctx context.Context, kind router.FrameKind) {
	m.NavigationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("frame", kind.String())))
}

func (m *AppMetrics) ModuleLoaded(ctx context.Context, module string, took time.Duration, err error) {
	outcome := "loaded"
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("module", module), attribute.String("outcome", outcome))
	m.ModuleLoadsTotal.Add(ctx, 1, attrs)
	m.ModuleLoadSeconds.Record(ctx, took.Seconds(), attrs)
}

func (m *AppMetrics) StaleLoadDiscarded(ctx context.Context, module string) {
	m.StaleLoadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("module", module)))
}

// StorageWriteFailed matches storage.WithErrorHook.
func (m *AppMetrics) StorageWriteFailed(key string, _ error) {
	m.StorageWriteErrorTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
}
