package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter создаёт HTTP роутер Catalog API.
// mw - middleware, применяемые ко всем маршрутам (инструментация запросов и т.д.);
// стандартные endpoint'ы (/metrics, /health, /alive) вешает вызывающий.
func NewRouter(handler *Handler, mw ...func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(mw...)

	router.Route("/api/catalog/items", func(r chi.Router) {
		r.Get("/", handler.GetItems)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			handler.GetItemByID(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/{id}/pic", func(w http.ResponseWriter, r *http.Request) {
			handler.GetItemPicture(w, r, chi.URLParam(r, "id"))
		})
	})

	return router
}
