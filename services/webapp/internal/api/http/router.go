package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/IggyCloud/eShop/platform/identity"
	"github.com/IggyCloud/eShop/services/webapp/internal/api/http/middleware"
)

// RouterOptions параметры роутера WebApp
type RouterOptions struct {
	// Development отключает обработку паник и HSTS
	Development bool
	// Middleware применяются ко всем маршрутам (инструментация запросов и т.д.)
	Middleware []func(http.Handler) http.Handler
}

// NewRouter создаёт HTTP роутер WebApp в режиме без аутентификации:
// каждый запрос получает mock пользователя.
func NewRouter(handler *Handler, productImages http.Handler, opts RouterOptions) chi.Router {
	router := chi.NewRouter()

	// Recoverer снаружи инструментации: panic сначала попадает в span, затем превращается в 500
	if !opts.Development {
		router.Use(chimiddleware.Recoverer)
		router.Use(middleware.HSTS)
	}
	router.Use(opts.Middleware...)
	router.Use(identity.NoAuthMiddleware)

	router.Get("/api/user", handler.GetUser)
	router.Handle("/product-images/{id}", productImages)

	return router
}
