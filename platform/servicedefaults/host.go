package servicedefaults

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/IggyCloud/eShop/platform/config"
	"github.com/IggyCloud/eShop/platform/health"
	"github.com/IggyCloud/eShop/platform/observability"
)

// Стандартные endpoint'ы
const (
	MetricsPath = "/metrics"
	HealthPath  = "/health"
	AlivePath   = "/alive"
)

// Host - собранный сервис с запущенной телеметрией
type Host struct {
	Config      config.Reader
	Environment HostEnvironment
	Logger      *zap.Logger
	Health      *health.Registry
	Telemetry   *observability.Telemetry

	settings   observability.Settings
	httpClient *http.Client
}

// MapDefaultEndpoints см. пакетную MapDefaultEndpoints
func (h *Host) MapDefaultEndpoints(r chi.Router) {
	MapDefaultEndpoints(r, h.Environment, h.Health, h.Telemetry.MetricsHandler())
}

// MapDefaultEndpoints: /metrics всегда, /health и /alive только в development окружении.
// Health endpoint'ы вне development раскрывают внутреннее состояние сервиса.
func MapDefaultEndpoints(r chi.Router, env HostEnvironment, registry *health.Registry, metrics http.Handler) {
	r.Method(http.MethodGet, MetricsPath, metrics)

	if env.IsDevelopment() {
		// все проверки должны пройти, чтобы сервис считался готовым
		r.Get(HealthPath, health.Handler(registry, health.All))
		// только проверки с тегом live
		r.Get(AlivePath, health.Handler(registry, health.WithTag(health.TagLive)))
	}
}

// Middleware HTTP server instrumentation с настройками из плана телеметрии
func (h *Host) Middleware() func(http.Handler) http.Handler {
	return observability.HTTPMiddleware(h.Telemetry.Providers(), h.settings.Traces.HTTPServer, h.Logger)
}

// HTTPClient клиент для исходящих вызовов.
// С AddServiceDefaults транспорт инструментирован, иначе http.DefaultClient.
func (h *Host) HTTPClient() *http.Client {
	if h.httpClient == nil {
		return http.DefaultClient
	}
	return h.httpClient
}

// Transport инструментированный транспорт поверх base
func (h *Host) Transport(base http.RoundTripper) http.RoundTripper {
	return observability.NewTransport(base, h.Telemetry.Providers())
}

// DBTracer tracer для pgx с настройками из плана телеметрии
func (h *Host) DBTracer() *observability.DBTracer {
	return observability.NewDBTracer(h.Telemetry.Providers(), h.settings.Traces.Database)
}

// GRPCServerInterceptor interceptor для входящих gRPC вызовов
func (h *Host) GRPCServerInterceptor() grpc.UnaryServerInterceptor {
	return observability.GRPCUnaryServerInterceptor(h.Telemetry.Providers())
}

// GRPCClientInterceptor interceptor для исходящих gRPC вызовов
func (h *Host) GRPCClientInterceptor() grpc.UnaryClientInterceptor {
	return observability.GRPCUnaryClientInterceptor(h.Telemetry.Providers())
}

// Settings план телеметрии, с которым собран Host
func (h *Host) Settings() observability.Settings {
	return h.settings
}

// Shutdown останавливает телеметрию
func (h *Host) Shutdown(ctx context.Context) error {
	return h.Telemetry.Shutdown(ctx)
}
