package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/IggyCloud/eShop/platform/config"
	"github.com/IggyCloud/eShop/platform/identity"
	"github.com/IggyCloud/eShop/platform/observability"
)

func newResolver(t *testing.T, values map[string]string) *identity.Resolver {
	t.Helper()
	cfg, err := config.New(config.Map("test", values))
	require.NoError(t, err)
	return identity.NewResolver(cfg)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetUser_NoAuthMockPrincipal(t *testing.T) {
	router := NewRouter(NewHandler(newResolver(t, nil)), http.NotFoundHandler(), RouterOptions{Development: true})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var user UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, identity.MockUserID, user.ID)
	assert.Equal(t, identity.MockUserName, user.Name)
}

func TestGetUser_DisableAuth(t *testing.T) {
	router := NewRouter(NewHandler(newResolver(t, map[string]string{"DisableAuth": "true"})), http.NotFoundHandler(), RouterOptions{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var user UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, identity.DemoUserID, user.ID)
	assert.Equal(t, identity.DemoUserName, user.Name)
}

func TestGetUser_Unauthenticated(t *testing.T) {
	h := NewHandler(newResolver(t, nil))

	// без NoAuthMiddleware в контексте нет пользователя
	rec := serve(http.HandlerFunc(h.GetUser), httptest.NewRequest(http.MethodGet, "/api/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductImagesProxy(t *testing.T) {
	var gotPath, gotForwarded string
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotForwarded = r.Header.Get("X-Forwarded-Host")
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp-bytes"))
	}))
	defer catalog.Close()

	base, err := url.Parse(catalog.URL)
	require.NoError(t, err)

	router := NewRouter(NewHandler(newResolver(t, nil)),
		NewProductImagesProxy(base, http.DefaultTransport, nil), RouterOptions{Development: true})

	req := httptest.NewRequest(http.MethodGet, "http://shop.eshop.local/product-images/7?v=2", nil)
	rec := serve(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "webp-bytes", rec.Body.String())
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "/api/catalog/items/7/pic", gotPath)
	assert.Equal(t, "shop.eshop.local", gotForwarded)

	assert.Equal(t, http.StatusNotFound, serve(router, httptest.NewRequest(http.MethodGet, "/product-images/abc", nil)).Code)
}

func TestProductImagesProxy_CatalogDown(t *testing.T) {
	base, err := url.Parse("http://127.0.0.1:1")
	require.NoError(t, err)

	router := NewRouter(NewHandler(newResolver(t, nil)),
		NewProductImagesProxy(base, http.DefaultTransport, nil), RouterOptions{Development: true})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/product-images/1", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouter_ProductionRecoversAndSetsHSTS(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	router := NewRouter(NewHandler(newResolver(t, nil)), panicking, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "https://shop.eshop.local/product-images/1", nil)
	rec := serve(router, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRouter_ProductionRecordsPanicInSpan(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	instrumentation := observability.HTTPMiddleware(
		observability.Providers{Tracer: tp, Meter: noopmetric.NewMeterProvider(), Propagator: propagation.TraceContext{}},
		observability.HTTPServerOptions{RecordException: true},
		nil,
	)
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	router := NewRouter(NewHandler(newResolver(t, nil)), panicking, RouterOptions{
		Middleware: []func(http.Handler) http.Handler{instrumentation},
	})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/product-images/1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	var exceptions int
	for _, e := range ended[0].Events() {
		if e.Name == "exception" {
			exceptions++
		}
	}
	assert.Equal(t, 1, exceptions)
}
