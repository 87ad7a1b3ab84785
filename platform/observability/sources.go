package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricembedded "go.opentelemetry.io/otel/metric/embedded"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceembedded "go.opentelemetry.io/otel/trace/embedded"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Providers - провайдеры, через которые instrumentation пишет телеметрию.
// Нулевое значение означает глобальные провайдеры otel.
type Providers struct {
	Tracer     trace.TracerProvider
	Meter      metric.MeterProvider
	Propagator propagation.TextMapPropagator
}

// GlobalProviders провайдеры из otel globals
func GlobalProviders() Providers {
	return Providers{
		Tracer:     otel.GetTracerProvider(),
		Meter:      otel.GetMeterProvider(),
		Propagator: otel.GetTextMapPropagator(),
	}
}

func (p Providers) withDefaults() Providers {
	if p.Tracer == nil {
		p.Tracer = otel.GetTracerProvider()
	}
	if p.Meter == nil {
		p.Meter = otel.GetMeterProvider()
	}
	if p.Propagator == nil {
		p.Propagator = otel.GetTextMapPropagator()
	}
	return p
}

// scopeSet множество разрешённых scope'ов
type scopeSet map[string]struct{}

func newScopeSet(scopes []string) scopeSet {
	s := make(scopeSet, len(scopes))
	for _, name := range scopes {
		s[name] = struct{}{}
	}
	return s
}

func (s scopeSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// filteredTracerProvider отдаёт настоящий tracer только подписанным scope'ам
type filteredTracerProvider struct {
	traceembedded.TracerProvider

	tp      trace.TracerProvider
	allowed scopeSet
	noop    trace.TracerProvider
}

// FilterTracerProvider оборачивает tp: tracer'ы неподписанных scope'ов ничего не пишут
func FilterTracerProvider(tp trace.TracerProvider, scopes []string) trace.TracerProvider {
	return &filteredTracerProvider{tp: tp, allowed: newScopeSet(scopes), noop: tracenoop.NewTracerProvider()}
}

func (p *filteredTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.allowed.has(name) {
		return p.tp.Tracer(name, opts...)
	}
	return p.noop.Tracer(name, opts...)
}

// filteredMeterProvider то же самое для метрик
type filteredMeterProvider struct {
	metricembedded.MeterProvider

	mp      metric.MeterProvider
	allowed scopeSet
	noop    metric.MeterProvider
}

// FilterMeterProvider оборачивает mp: meter'ы неподписанных scope'ов ничего не пишут
func FilterMeterProvider(mp metric.MeterProvider, scopes []string) metric.MeterProvider {
	return &filteredMeterProvider{mp: mp, allowed: newScopeSet(scopes), noop: metricnoop.NewMeterProvider()}
}

func (p *filteredMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p.allowed.has(name) {
		return p.mp.Meter(name, opts...)
	}
	return p.noop.Meter(name, opts...)
}
