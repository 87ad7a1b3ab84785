package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/IggyCloud/eShop/platform/identity"
)

// UserResponse текущий пользователь
type UserResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Handler содержит HTTP-обработчики WebApp
type Handler struct {
	identity *identity.Resolver
}

// NewHandler создаёт новый HTTP handler
func NewHandler(resolver *identity.Resolver) *Handler {
	return &Handler{
		identity: resolver,
	}
}

// GetUser обрабатывает GET /api/user.
// Без идентичности пользователя в запросе возвращает 401.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.identity.UserIdentity(ctx)
	if !ok {
		http.Error(w, "user is not authenticated", http.StatusUnauthorized)
		return
	}
	name, _ := h.identity.UserName(ctx)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(UserResponse{ID: id, Name: name})
}
