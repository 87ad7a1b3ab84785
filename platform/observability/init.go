package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const (
	// DefaultShutdownTimeout ограничение на shutdown всех провайдеров
	DefaultShutdownTimeout = 10 * time.Second
	// metricExportInterval период выгрузки метрик в OTLP
	metricExportInterval = 10 * time.Second
)

// Telemetry - запущенные провайдеры OpenTelemetry.
type Telemetry struct {
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	lp       *sdklog.LoggerProvider
	registry *prometheus.Registry

	providers Providers
	logs      LogSettings
	degraded  bool
}

// Start поднимает TracerProvider, MeterProvider и LoggerProvider по плану settings,
// устанавливает глобальные провайдеры и W3C propagator (trace context + baggage).
// Ошибка создания отдельного exporter'а не прерывает старт: pipeline продолжает работать
// без него, а Telemetry помечается как Degraded.
// Shutdown нужно вызвать при остановке сервиса (например через platform/shutdown).
func Start(ctx context.Context, s Settings, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(s.Resource...),
		resource.WithTelemetrySDK(),
		resource.WithProcessRuntimeDescription(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability resource: %w", err)
	}

	t := &Telemetry{logs: s.Logs}

	// Traces
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(s.Traces.Sampler()),
	}
	for _, o := range s.Traces.Exporters {
		exp, err := newSpanExporter(ctx, o)
		if err != nil {
			t.degrade(logger, "traces", o, err)
			continue
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	t.tp = sdktrace.NewTracerProvider(tpOpts...)

	// Metrics
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if s.Metrics.Prometheus {
		t.registry = prometheus.NewRegistry()
		if s.Metrics.Has(ScopeRuntime) {
			t.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		reader, err := otelprom.New(otelprom.WithRegisterer(t.registry))
		if err != nil {
			_ = t.tp.Shutdown(ctx)
			return nil, fmt.Errorf("prometheus reader: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	for _, o := range s.Metrics.Exporters {
		exp, err := newMetricExporter(ctx, o)
		if err != nil {
			t.degrade(logger, "metrics", o, err)
			continue
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval)),
		))
	}
	t.mp = sdkmetric.NewMeterProvider(mpOpts...)

	// Logs
	lpOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, o := range s.Logs.Exporters {
		exp, err := newLogExporter(ctx, o)
		if err != nil {
			t.degrade(logger, "logs", o, err)
			continue
		}
		lpOpts = append(lpOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)))
	}
	t.lp = sdklog.NewLoggerProvider(lpOpts...)

	tracer := FilterTracerProvider(t.tp, s.Traces.Scopes())
	if s.Traces.Profiler {
		// pyroscope.profile.id на корневых span'ах и pprof labels span_id/span_name на время span'а
		tracer = otelpyroscope.NewTracerProvider(tracer)
	}
	t.providers = Providers{
		Tracer: tracer,
		Meter:  FilterMeterProvider(t.mp, s.Metrics.Scopes()),
		Propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, // trace id и span id
			propagation.Baggage{},
		),
	}
	otel.SetTracerProvider(t.providers.Tracer)
	otel.SetMeterProvider(t.providers.Meter)
	otel.SetTextMapPropagator(t.providers.Propagator)
	if s.Logs.Bridge {
		global.SetLoggerProvider(t.lp)
	}

	logger.Info("telemetry started",
		zap.String("service", s.Identity.ServiceName),
		zap.String("mode", s.Identity.Mode()),
		zap.Float64("trace_sample_ratio", s.Traces.SampleRatio),
		zap.Int("exporters", len(s.Traces.Exporters)),
		zap.Bool("degraded", t.degraded),
	)
	return t, nil
}

func (t *Telemetry) degrade(logger *zap.Logger, signal string, o ExporterOptions, err error) {
	t.degraded = true
	logger.Warn("otlp exporter disabled",
		zap.String("signal", signal),
		zap.String("endpoint", o.Endpoint),
		zap.String("protocol", string(o.Protocol)),
		zap.Error(err),
	)
}

// Providers провайдеры для instrumentation (с фильтром scope'ов)
func (t *Telemetry) Providers() Providers {
	return t.providers
}

// LoggerProvider провайдер для моста логов; nil если мост выключен (perf режим)
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if !t.logs.Bridge {
		return nil
	}
	return t.lp
}

// LogSettings настройки pipeline логов, с которыми стартовали провайдеры
func (t *Telemetry) LogSettings() LogSettings {
	return t.logs
}

// Degraded true если какой-то exporter не удалось создать
func (t *Telemetry) Degraded() bool {
	return t.degraded
}

// MetricsHandler scrape endpoint в формате Prometheus
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// ForceFlush выгружает накопленные данные всех pipeline'ов
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	return errors.Join(
		t.tp.ForceFlush(ctx),
		t.mp.ForceFlush(ctx),
		t.lp.ForceFlush(ctx),
	)
}

// Shutdown останавливает все провайдеры. Ошибки объединяются, остановка не прерывается на первой.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	return errors.Join(
		t.tp.Shutdown(ctx),
		t.mp.Shutdown(ctx),
		t.lp.Shutdown(ctx),
	)
}
