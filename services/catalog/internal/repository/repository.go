package repository

import (
	"context"
	"errors"
)

// ErrNotFound - товар каталога не найден
var ErrNotFound = errors.New("catalog item not found")

// CatalogItem доменная модель товара каталога
// Цена хранится строкой, чтобы не терять точность numeric из БД
type CatalogItem struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           string `json:"price"`
	PictureFileName string `json:"pictureFileName"`
	CatalogTypeID   int    `json:"catalogTypeId"`
	CatalogBrandID  int    `json:"catalogBrandId"`
	AvailableStock  int    `json:"availableStock"`
}

// CatalogRepository - доступ к товарам каталога только на чтение.
// List возвращает товары, упорядоченные по имени.
type CatalogRepository interface {
	List(ctx context.Context, offset, limit int) ([]CatalogItem, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int) (CatalogItem, error)
}
