package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTransport оборачивает base (nil - http.DefaultTransport) в otelhttp:
// client span, propagation trace context в заголовки и метрики http.client.*
func NewTransport(base http.RoundTripper, p Providers) *otelhttp.Transport {
	p = p.withDefaults()
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(p.Tracer),
		otelhttp.WithMeterProvider(p.Meter),
		otelhttp.WithPropagators(p.Propagator),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
}

// NewHTTPClient http.Client с инструментированным транспортом
func NewHTTPClient(p Providers, timeout time.Duration) *http.Client {
	return &http.Client{Transport: NewTransport(nil, p), Timeout: timeout}
}
