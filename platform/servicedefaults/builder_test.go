package servicedefaults

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/IggyCloud/eShop/platform/config"
	"github.com/IggyCloud/eShop/platform/health"
	"github.com/IggyCloud/eShop/platform/observability"
)

type fakeEnv map[string]string

func (e fakeEnv) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func (e fakeEnv) Set(key, value string) error {
	e[key] = value
	return nil
}

func newBuilder(t *testing.T, envName string, values map[string]string) (*Builder, fakeEnv) {
	t.Helper()
	cfg, err := config.New(config.Map("test", values))
	require.NoError(t, err)

	b := NewBuilder(HostEnvironment{ApplicationName: "Catalog.API", EnvironmentName: envName}, cfg, nil)
	env := fakeEnv{}
	b.Env = env
	return b, env
}

func TestConfigureOpenTelemetry_PerfMode(t *testing.T) {
	b, env := newBuilder(t, "Production", map[string]string{
		"PERF_MODE":                      "true",
		"OpenTelemetry:TraceSampleRatio": "0.5",
		"Pyroscope:Server":               "http://pyroscope:4040",
	})

	require.NoError(t, b.AddServiceDefaults())
	s := b.Telemetry

	assert.True(t, s.Identity.PerfMode)
	assert.Equal(t, "Catalog.API", s.Identity.ServiceName)
	assert.InDelta(t, 0.01, s.Traces.SampleRatio, 1e-9)
	assert.False(t, s.Logs.Bridge)
	assert.False(t, s.Metrics.Has(observability.SourceAI))
	assert.False(t, s.Traces.Has(observability.ScopeDatabase))
	assert.False(t, s.Traces.Has(observability.ScopeGRPCClient))
	assert.False(t, s.Traces.Profiler)
	assert.Empty(t, env, "profiler environment is not touched in perf mode")
}

func TestConfigureOpenTelemetry_Standard(t *testing.T) {
	b, env := newBuilder(t, "", map[string]string{
		"Telemetry:ServiceName": "catalog-api",
		"Pyroscope:Server":      "http://pyroscope:4040",
	})
	env[observability.EnvPyroscopeServerAddress] = "http://preset:4040"

	b.ConfigureOpenTelemetry()
	s := b.Telemetry

	assert.Equal(t, "catalog-api", s.Identity.ServiceName)
	assert.Equal(t, observability.DefaultEnvironment, s.Environment)
	assert.InDelta(t, observability.DefaultSampleRatio, s.Traces.SampleRatio, 1e-9)
	assert.True(t, s.Logs.Bridge)
	assert.True(t, s.Traces.Has(observability.SourceDriver))
	assert.True(t, s.Traces.Profiler)

	assert.Equal(t, "http://preset:4040", env[observability.EnvPyroscopeServerAddress])
	assert.Equal(t, "eshop.catalog-api", env[observability.EnvPyroscopeApplication])
}

func TestAddOpenTelemetryExporters(t *testing.T) {
	b, _ := newBuilder(t, "Production", nil)
	b.ConfigureOpenTelemetry()
	assert.Empty(t, b.Telemetry.Logs.Exporters)
	assert.Empty(t, b.Telemetry.Metrics.Exporters)
	assert.Empty(t, b.Telemetry.Traces.Exporters)

	b, _ = newBuilder(t, "Production", map[string]string{
		"OpenTelemetry:Otlp:Endpoint": "http://otel-collector:4318",
		"OpenTelemetry:Otlp:Protocol": "HTTP/PROTOBUF",
	})
	b.ConfigureOpenTelemetry()
	require.Len(t, b.Telemetry.Logs.Exporters, 1)
	require.Len(t, b.Telemetry.Metrics.Exporters, 1)
	require.Len(t, b.Telemetry.Traces.Exporters, 1)
	assert.Equal(t, observability.ProtocolHTTPProtobuf, b.Telemetry.Traces.Exporters[0].Protocol)
}

func TestAddDefaultHealthChecks(t *testing.T) {
	b, _ := newBuilder(t, "Production", nil)
	require.NoError(t, b.AddDefaultHealthChecks())

	regs := b.Health.Registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, SelfCheckName, regs[0].Name)
	assert.True(t, regs[0].HasTag(health.TagLive))

	assert.ErrorIs(t, b.AddDefaultHealthChecks(), health.ErrDuplicateCheck)
}

func TestHostEnvironment_IsDevelopment(t *testing.T) {
	assert.True(t, HostEnvironment{EnvironmentName: "Development"}.IsDevelopment())
	assert.True(t, HostEnvironment{EnvironmentName: "LOCAL"}.IsDevelopment())
	assert.False(t, HostEnvironment{EnvironmentName: "Production"}.IsDevelopment())
	assert.False(t, HostEnvironment{}.IsDevelopment())
}

func TestHostEnvironmentFromProcess(t *testing.T) {
	t.Setenv(EnvAppEnvironment, "")
	assert.Equal(t, "Production", HostEnvironmentFromProcess("webapp", ".").EnvironmentName)

	t.Setenv(EnvAppEnvironment, "Development")
	assert.Equal(t, "Development", HostEnvironmentFromProcess("webapp", ".").EnvironmentName)
}

func TestMapDefaultEndpoints(t *testing.T) {
	tests := []struct {
		envName    string
		wantHealth int
		wantAlive  int
	}{
		{envName: "Production", wantHealth: http.StatusNotFound, wantAlive: http.StatusNotFound},
		{envName: "Development", wantHealth: http.StatusOK, wantAlive: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.envName, func(t *testing.T) {
			b, _ := newBuilder(t, tt.envName, nil)
			require.NoError(t, b.AddServiceDefaults())

			host, err := b.Build(context.Background())
			require.NoError(t, err)
			t.Cleanup(func() { _ = host.Shutdown(context.Background()) })

			r := chi.NewRouter()
			r.Use(host.Middleware())
			host.MapDefaultEndpoints(r)

			assert.Equal(t, http.StatusOK, get(r, MetricsPath).Code)
			assert.Equal(t, tt.wantHealth, get(r, HealthPath).Code)
			assert.Equal(t, tt.wantAlive, get(r, AlivePath).Code)
		})
	}
}

func TestMapDefaultEndpoints_UnhealthyCheck(t *testing.T) {
	registry := health.NewRegistry()
	require.NoError(t, registry.Add("self", func(context.Context) health.Result { return health.Healthy("") }, health.TagLive))
	require.NoError(t, registry.Add("postgres", func(context.Context) health.Result { return health.Unhealthy("down", nil) }))

	r := chi.NewRouter()
	MapDefaultEndpoints(r, HostEnvironment{EnvironmentName: "Development"}, registry, http.NotFoundHandler())

	assert.Equal(t, http.StatusServiceUnavailable, get(r, HealthPath).Code)
	assert.Equal(t, http.StatusOK, get(r, AlivePath).Code)
}

func TestBuild_HTTPClientDefaults(t *testing.T) {
	b, _ := newBuilder(t, "Production", nil)
	require.NoError(t, b.AddBasicServiceDefaults())
	host, err := b.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Shutdown(context.Background()) })
	assert.Same(t, http.DefaultClient, host.HTTPClient())

	b, _ = newBuilder(t, "Production", nil)
	require.NoError(t, b.AddServiceDefaults())
	host, err = b.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Shutdown(context.Background()) })
	assert.IsType(t, &otelhttp.Transport{}, host.HTTPClient().Transport)
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}
