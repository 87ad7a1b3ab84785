package observability

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/IggyCloud/eShop/platform/logging"
)

// Имена instrumentation scope'ов. Только подписанные scope'ы пишут в pipeline.
const (
	ScopeHTTPServer = "eshop.http.server"
	ScopeHTTPClient = otelhttp.ScopeName
	ScopeGRPCServer = "eshop.grpc.server"
	ScopeGRPCClient = "eshop.grpc.client"
	ScopeDatabase   = "eshop.db"
	ScopeRuntime    = "eshop.runtime"

	// SourceDriver scope драйвера Postgres
	SourceDriver = "github.com/jackc/pgx/v5"
	// SourceAI трассы и метрики AI компонентов
	SourceAI = "eshop.ai"
)

// Атрибуты ресурса
const (
	DistroName         = "eshop"
	AttrDistroName     = "telemetry.distro.name"
	AttrDistroVersion  = "telemetry.distro.version"
	AttrTelemetryMode  = "telemetry.mode"
	AttrDeploymentEnv  = "deployment.environment"
	DefaultEnvironment = "Production"
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
)

// Пути, которые не трассируются
const (
	excludedHealthPath   = "/health"
	excludedLivenessPath = "/alive"
)

// Settings - план телеметрии: что подключить в каждом pipeline.
// Строится один раз при старте и передаётся в Start.
type Settings struct {
	Identity    Identity
	Environment string
	Resource    []attribute.KeyValue

	Logs    LogSettings
	Metrics MetricSettings
	Traces  TraceSettings
}

// LogSettings pipeline логов
type LogSettings struct {
	// Bridge дублировать записи zap в OpenTelemetry
	Bridge        bool
	BridgeOptions logging.BridgeOptions
	Exporters     []ExporterOptions
}

// MetricSettings pipeline метрик
type MetricSettings struct {
	Instrumentations []string
	Meters           []string
	// Prometheus подключить reader для scrape endpoint
	Prometheus bool
	Exporters  []ExporterOptions
}

// TraceSettings pipeline трасс
type TraceSettings struct {
	SampleRatio      float64
	Instrumentations []string
	Sources          []string
	HTTPServer       HTTPServerOptions
	Database         DatabaseOptions
	// Profiler связывать локальные корневые span'ы с профилями Pyroscope
	Profiler  bool
	Exporters []ExporterOptions
}

// HTTPServerOptions настройки instrumentation входящих HTTP запросов
type HTTPServerOptions struct {
	// RecordException записывать panic в span как exception event
	RecordException bool
	// Filter false - запрос не трассируется
	Filter func(*http.Request) bool
}

// DatabaseOptions настройки instrumentation запросов к БД
type DatabaseOptions struct {
	SetStatementForText            bool
	SetStatementForStoredProcedure bool
}

// NewSettings создаёт пустой план с атрибутами ресурса
func NewSettings(id Identity, environment string) Settings {
	if strings.TrimSpace(environment) == "" {
		environment = DefaultEnvironment
	}
	return Settings{
		Identity:    id,
		Environment: environment,
		Resource: []attribute.KeyValue{
			attribute.String(AttrServiceName, id.ServiceName),
			attribute.String(AttrServiceVersion, id.ServiceVersion),
			attribute.String(AttrDeploymentEnv, environment),
			attribute.String(AttrDistroName, DistroName),
			attribute.String(AttrDistroVersion, id.ServiceVersion),
			attribute.String(AttrTelemetryMode, id.Mode()),
		},
	}
}

// ConfigureLogs включает мост логов вне perf режима
func (s *Settings) ConfigureLogs() {
	if s.Identity.PerfMode {
		return
	}
	s.Logs.Bridge = true
	s.Logs.BridgeOptions = logging.BridgeOptions{
		IncludeFormattedMessage: false,
		IncludeScopes:           false,
		ParseStateValues:        true,
	}
}

// ConfigureMetrics: HTTP server, runtime и Prometheus всегда;
// HTTP client и AI meter только вне perf режима.
func (s *Settings) ConfigureMetrics() {
	s.Metrics.Instrumentations = appendUnique(s.Metrics.Instrumentations, ScopeHTTPServer, ScopeGRPCServer, ScopeRuntime)
	s.Metrics.Prometheus = true
	if s.Identity.PerfMode {
		return
	}
	s.Metrics.Instrumentations = appendUnique(s.Metrics.Instrumentations, ScopeHTTPClient)
	s.Metrics.Meters = appendUnique(s.Metrics.Meters, SourceAI)
}

// ConfigureTraces: sampler, HTTP server и AI source всегда;
// БД, gRPC client, HTTP client, драйвер и profiler только вне perf режима.
func (s *Settings) ConfigureTraces() {
	s.Traces.SampleRatio = s.Identity.TraceSampleRatio
	s.Traces.Instrumentations = appendUnique(s.Traces.Instrumentations, ScopeHTTPServer, ScopeGRPCServer)
	s.Traces.HTTPServer = HTTPServerOptions{
		RecordException: true,
		Filter:          ExcludeHealthEndpoints,
	}
	s.Traces.Sources = appendUnique(s.Traces.Sources, SourceAI)
	if s.Identity.PerfMode {
		return
	}
	s.Traces.Instrumentations = appendUnique(s.Traces.Instrumentations, ScopeDatabase, ScopeGRPCClient, ScopeHTTPClient)
	s.Traces.Database = DatabaseOptions{
		SetStatementForText:            false,
		SetStatementForStoredProcedure: false,
	}
	s.Traces.Sources = appendUnique(s.Traces.Sources, SourceDriver)
	s.Traces.Profiler = true
}

// AddExporters подключает по одному exporter'у к каждому pipeline
func (s *Settings) AddExporters(o ExporterOptions) {
	s.Logs.Exporters = append(s.Logs.Exporters, o)
	s.Metrics.Exporters = append(s.Metrics.Exporters, o)
	s.Traces.Exporters = append(s.Traces.Exporters, o)
}

// Sampler TraceIDRatioBased(ratio) без учёта решения родителя:
// флаг sampled во входящем traceparent не поднимает долю записанных трасс выше ratio
func (t TraceSettings) Sampler() sdktrace.Sampler {
	return sdktrace.TraceIDRatioBased(t.SampleRatio)
}

// Scopes scope'ы, которым разрешено писать трассы
func (t TraceSettings) Scopes() []string {
	return appendUnique(append([]string(nil), t.Instrumentations...), t.Sources...)
}

// Scopes scope'ы, которым разрешено писать метрики
func (m MetricSettings) Scopes() []string {
	return appendUnique(append([]string(nil), m.Instrumentations...), m.Meters...)
}

// Has проверяет подписку на scope
func (t TraceSettings) Has(scope string) bool {
	return contains(t.Scopes(), scope)
}

// Has проверяет подписку на scope
func (m MetricSettings) Has(scope string) bool {
	return contains(m.Scopes(), scope)
}

// ExcludeHealthEndpoints отбрасывает /health и /alive (включая вложенные пути, без учёта регистра)
func ExcludeHealthEndpoints(r *http.Request) bool {
	path := r.URL.Path
	return !startsWithSegments(path, excludedHealthPath) && !startsWithSegments(path, excludedLivenessPath)
}

// startsWithSegments: "/health" совпадает с "/health", "/health/" и "/health/x", но не с "/healthz"
func startsWithSegments(path, prefix string) bool {
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
