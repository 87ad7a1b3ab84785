package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IggyCloud/eShop/services/catalog/internal/repository"
)

const itemColumns = `id, name, description, price::text, picture_file_name, catalog_type_id, catalog_brand_id, available_stock`

// Repository реализует CatalogRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// List возвращает страницу товаров, упорядоченных по имени
func (r *Repository) List(ctx context.Context, offset, limit int) ([]repository.CatalogItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+`
		 FROM catalog_items
		 ORDER BY name, id
		 OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, err
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []repository.CatalogItem{}
	}
	return items, nil
}

// Count общее количество товаров
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM catalog_items`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetByID получает товар по ID
func (r *Repository) GetByID(ctx context.Context, id int) (repository.CatalogItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+`
		 FROM catalog_items
		 WHERE id = $1`,
		id)
	if err != nil {
		return repository.CatalogItem{}, err
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.CatalogItem{}, repository.ErrNotFound
		}
		return repository.CatalogItem{}, err
	}
	return item, nil
}

func scanItem(row pgx.CollectableRow) (repository.CatalogItem, error) {
	var item repository.CatalogItem
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.PictureFileName,
		&item.CatalogTypeID,
		&item.CatalogBrandID,
		&item.AvailableStock,
	)
	return item, err
}
