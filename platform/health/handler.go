package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DefaultTimeout ограничение на выполнение всех проверок одного запроса
const DefaultTimeout = 5 * time.Second

// Handler возвращает HTTP handler для health check endpoint.
// 200 OK если ни одна выбранная проверка не Unhealthy (Degraded тоже 200),
// 503 Service Unavailable иначе. Тело: {"status":"Healthy","checks":{...}}.
func Handler(registry *Registry, predicate Predicate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), DefaultTimeout)
		defer cancel()

		report := registry.Run(ctx, predicate)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store, no-cache")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
