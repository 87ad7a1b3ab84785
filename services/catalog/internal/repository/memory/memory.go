package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/IggyCloud/eShop/services/catalog/internal/repository"
)

// MemoryRepository реализует CatalogRepository в памяти.
// Используется, когда строка подключения к БД не задана, и в тестах.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []repository.CatalogItem
}

// NewMemoryRepository создаёт репозиторий с начальным набором товаров
func NewMemoryRepository(items ...repository.CatalogItem) *MemoryRepository {
	r := &MemoryRepository{}
	for _, item := range items {
		r.put(item)
	}
	return r
}

// Put добавляет или заменяет товар
func (r *MemoryRepository) Put(item repository.CatalogItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(item)
}

func (r *MemoryRepository) put(item repository.CatalogItem) {
	for i := range r.items {
		if r.items[i].ID == item.ID {
			r.items[i] = item
			r.sort()
			return
		}
	}
	r.items = append(r.items, item)
	r.sort()
}

// порядок как у postgres реализации: по имени, затем по id
func (r *MemoryRepository) sort() {
	sort.SliceStable(r.items, func(i, j int) bool {
		if r.items[i].Name != r.items[j].Name {
			return r.items[i].Name < r.items[j].Name
		}
		return r.items[i].ID < r.items[j].ID
	})
}

// List возвращает страницу товаров
func (r *MemoryRepository) List(ctx context.Context, offset, limit int) ([]repository.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset < 0 || offset >= len(r.items) || limit <= 0 {
		return []repository.CatalogItem{}, nil
	}
	end := offset + limit
	if end > len(r.items) {
		end = len(r.items)
	}

	page := make([]repository.CatalogItem, end-offset)
	copy(page, r.items[offset:end])
	return page, nil
}

// Count общее количество товаров
func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

// GetByID получает товар по ID
func (r *MemoryRepository) GetByID(ctx context.Context, id int) (repository.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.ID == id {
			return item, nil
		}
	}
	return repository.CatalogItem{}, repository.ErrNotFound
}

// DemoItems набор товаров для запуска без БД, совпадает с seed миграцией
func DemoItems() []repository.CatalogItem {
	return []repository.CatalogItem{
		{ID: 1, Name: "Wanderer Black Hiking Boots", Description: "Waterproof leather hiking boots with a cushioned sole.", Price: "109.99", PictureFileName: "1.webp", CatalogTypeID: 2, CatalogBrandID: 1, AvailableStock: 100},
		{ID: 2, Name: "Summit Pro Harness", Description: "Lightweight climbing harness with adjustable leg loops.", Price: "120.00", PictureFileName: "2.webp", CatalogTypeID: 1, CatalogBrandID: 2, AvailableStock: 100},
		{ID: 3, Name: "Alpine Fusion Goggles", Description: "Anti-fog goggles with interchangeable lenses.", Price: "79.99", PictureFileName: "3.webp", CatalogTypeID: 3, CatalogBrandID: 3, AvailableStock: 100},
	}
}
