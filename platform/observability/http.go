package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// httpHeaderCarrier адаптирует http.Header к propagation.TextMapCarrier
type httpHeaderCarrier struct {
	header http.Header
}

func (c httpHeaderCarrier) Get(key string) string {
	return c.header.Get(key)
}

func (c httpHeaderCarrier) Set(key, value string) {
	c.header.Set(key, value)
}

func (c httpHeaderCarrier) Keys() []string {
	out := make([]string, 0, len(c.header))
	for k := range c.header {
		out = append(out, k)
	}
	return out
}

// HTTPMiddleware возвращает chi/http middleware: извлекает trace context, создаёт span на запрос,
// пишет длительность запроса в histogram и кладёт logger с trace_id/span_id в контекст.
// Запросы, отброшенные opts.Filter, не трассируются, но учитываются в метриках.
// Panic в handler'е записывается в span (если opts.RecordException) и пробрасывается дальше.
func HTTPMiddleware(p Providers, opts HTTPServerOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	p = p.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := p.Tracer.Tracer(ScopeHTTPServer)
	meter := p.Meter.Meter(ScopeHTTPServer)

	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of HTTP server requests."),
	)
	if err != nil {
		otel.Handle(err)
	}
	active, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithUnit("{request}"),
		metric.WithDescription("Number of active HTTP server requests."),
	)
	if err != nil {
		otel.Handle(err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			methodAttr := attribute.String("http.request.method", r.Method)
			active.Add(r.Context(), 1, metric.WithAttributes(methodAttr))

			ctx := p.Propagator.Extract(r.Context(), httpHeaderCarrier{r.Header})
			traced := opts.Filter == nil || opts.Filter(r)

			span := trace.SpanFromContext(ctx)
			if traced {
				ctx, span = tracer.Start(ctx, "HTTP "+r.Method,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						methodAttr,
						attribute.String("url.path", r.URL.Path),
						attribute.String("url.scheme", scheme(r)),
						attribute.String("user_agent.original", r.UserAgent()),
					),
				)
			}

			// Логгер с trace_id/span_id в контексте запроса
			ctx = withLogger(ctx, L(ctx, logger))

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			r = r.WithContext(ctx)

			defer func() {
				rec := recover()
				statusCode := wrapped.statusCode
				if rec != nil {
					statusCode = http.StatusInternalServerError
				}
				route := routePattern(r)

				attrs := []attribute.KeyValue{methodAttr, attribute.Int("http.response.status_code", statusCode)}
				if route != "" {
					attrs = append(attrs, attribute.String("http.route", route))
				}
				duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
				active.Add(ctx, -1, metric.WithAttributes(methodAttr))

				if traced {
					if route != "" {
						span.SetName("HTTP " + r.Method + " " + route)
					}
					span.SetAttributes(attrs...)
					if rec != nil {
						if opts.RecordException {
							span.RecordError(fmt.Errorf("panic: %v", rec), trace.WithStackTrace(true))
						}
						span.SetStatus(codes.Error, "panic")
					} else if statusCode >= 400 {
						span.SetStatus(codes.Error, strconv.Itoa(statusCode))
					}
					span.End()
				}

				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// routePattern шаблон маршрута chi, например "/api/catalog/items/{id}"
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader запоминает статус код ответа
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap для http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
