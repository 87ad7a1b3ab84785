//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/IggyCloud/eShop/services/catalog/internal/migrate"
	"github.com/IggyCloud/eShop/services/catalog/internal/repository"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	// PostgreSQL в контейнере, ждём готовности по логам и порту
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("catalogdb"),
		tcpostgres.WithUsername("catalog_user"),
		tcpostgres.WithPassword("catalog_password"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	// Миграции тем же путём, что и при старте сервиса
	migrator, err := migrate.NewGooseMigrator(pool, nil)
	require.NoError(t, err)
	defer migrator.Close()
	require.NoError(t, migrate.ApplyMigrationsWithRetry(ctx, dsn, migrator, nil))

	repo := NewRepository(pool)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := repo.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Alpine Fusion Goggles", page[0].Name)
	assert.Equal(t, "79.99", page[0].Price)

	page, err = repo.List(ctx, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	item, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Summit Pro Harness", item.Name)
	assert.Equal(t, "2.webp", item.PictureFileName)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// повторное применение миграций ничего не меняет
	require.NoError(t, migrator.Up(ctx))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
