package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/IggyCloud/eShop/services/catalog/migrations"
)

// GooseMigrator применяет встроенные миграции через goose поверх pgxpool
type GooseMigrator struct {
	db       *sql.DB
	provider *goose.Provider
	logger   *zap.Logger
}

// NewGooseMigrator создаёт migrator. *sql.DB берёт соединения из pool,
// поэтому миграции проходят через тот же tracer, что и запросы сервиса.
func NewGooseMigrator(pool *pgxpool.Pool, logger *zap.Logger) (*GooseMigrator, error) {
	const op = "migrate.NewGooseMigrator"

	if logger == nil {
		logger = zap.NewNop()
	}

	db := stdlib.OpenDBFromPool(pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &GooseMigrator{db: db, provider: provider, logger: logger}, nil
}

// Up применяет все недостающие миграции
func (m *GooseMigrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	for _, r := range results {
		m.logger.Debug("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}
	return err
}

// Close закрывает *sql.DB, сам pool остаётся открытым
func (m *GooseMigrator) Close() error {
	return m.db.Close()
}
