package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/IggyCloud/eShop/platform/observability"
	"github.com/IggyCloud/eShop/services/catalog/internal/repository"
)

const (
	// DefaultPageSize размер страницы, если pageSize не передан
	DefaultPageSize = 10
	// MaxPageSize максимальный размер страницы
	MaxPageSize = 100
)

// Handler содержит HTTP-обработчики Catalog API
type Handler struct {
	repo        repository.CatalogRepository
	picturePath string
	logger      *zap.Logger
}

// NewHandler создаёт новый HTTP handler.
// picturePath - каталог с изображениями товаров.
func NewHandler(repo repository.CatalogRepository, picturePath string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:        repo,
		picturePath: picturePath,
		logger:      logger,
	}
}

// PaginatedItems страница товаров
type PaginatedItems struct {
	PageIndex int                      `json:"pageIndex"`
	PageSize  int                      `json:"pageSize"`
	Count     int64                    `json:"count"`
	Data      []repository.CatalogItem `json:"data"`
}

// GetItems обрабатывает GET /api/catalog/items?pageIndex=&pageSize=
func (h *Handler) GetItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)

	pageIndex, err := queryInt(r, "pageIndex", 0)
	if err != nil || pageIndex < 0 {
		http.Error(w, "Invalid pageIndex", http.StatusBadRequest)
		return
	}
	pageSize, err := queryInt(r, "pageSize", DefaultPageSize)
	if err != nil || pageSize <= 0 || pageSize > MaxPageSize {
		http.Error(w, fmt.Sprintf("Invalid pageSize: must be between 1 and %d", MaxPageSize), http.StatusBadRequest)
		return
	}
	// offset = pageIndex*pageSize не должен переполнять int
	if pageIndex > math.MaxInt/pageSize {
		http.Error(w, "Invalid pageIndex", http.StatusBadRequest)
		return
	}

	count, err := h.repo.Count(ctx)
	if err != nil {
		logger.Error("failed to count catalog items", zap.Error(err))
		http.Error(w, "Failed to load catalog", http.StatusInternalServerError)
		return
	}

	items, err := h.repo.List(ctx, pageIndex*pageSize, pageSize)
	if err != nil {
		logger.Error("failed to list catalog items", zap.Error(err))
		http.Error(w, "Failed to load catalog", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, PaginatedItems{
		PageIndex: pageIndex,
		PageSize:  pageSize,
		Count:     count,
		Data:      items,
	})
}

// GetItemByID обрабатывает GET /api/catalog/items/{id}
func (h *Handler) GetItemByID(w http.ResponseWriter, r *http.Request, rawID string) {
	item, ok := h.loadItem(w, r, rawID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GetItemPicture обрабатывает GET /api/catalog/items/{id}/pic
func (h *Handler) GetItemPicture(w http.ResponseWriter, r *http.Request, rawID string) {
	item, ok := h.loadItem(w, r, rawID)
	if !ok {
		return
	}
	if item.PictureFileName == "" {
		http.NotFound(w, r)
		return
	}

	// только имя файла, без выхода за пределы каталога изображений
	path := filepath.Join(h.picturePath, filepath.Base(item.PictureFileName))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		observability.LoggerFromContext(r.Context(), h.logger).Error("failed to open picture",
			zap.String("path", path), zap.Error(err))
		http.Error(w, "Failed to load picture", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Failed to load picture", http.StatusInternalServerError)
		return
	}

	if contentType := imageMimeType(path); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) loadItem(w http.ResponseWriter, r *http.Request, rawID string) (repository.CatalogItem, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid item id", http.StatusBadRequest)
		return repository.CatalogItem{}, false
	}

	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.NotFound(w, r)
			return repository.CatalogItem{}, false
		}
		observability.LoggerFromContext(r.Context(), h.logger).Error("failed to get catalog item",
			zap.Int("id", id), zap.Error(err))
		http.Error(w, "Failed to load catalog item", http.StatusInternalServerError)
		return repository.CatalogItem{}, false
	}
	return item, true
}

// imageMimeType тип изображения по расширению; webp и avif есть не во всех mime таблицах ОС
func imageMimeType(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	default:
		return mime.TypeByExtension(ext)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
