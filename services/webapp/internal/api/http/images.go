package httpapi

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/IggyCloud/eShop/platform/observability"
)

// NewProductImagesProxy проксирует /product-images/{id} в <catalog>/api/catalog/items/{id}/pic.
// transport - инструментированный транспорт, чтобы trace контекст доходил до каталога.
func NewProductImagesProxy(catalog *url.URL, transport http.RoundTripper, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			id := chi.URLParamFromCtx(pr.In.Context(), "id")
			pr.SetURL(catalog)
			pr.Out.URL.Path = singleJoin(catalog.Path, "/api/catalog/items/"+id+"/pic")
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = ""
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			observability.LoggerFromContext(r.Context(), logger).Warn("product image proxy failed",
				zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := strconv.Atoi(chi.URLParam(r, "id")); err != nil {
			http.NotFound(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	}
}

func singleJoin(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + path
}
