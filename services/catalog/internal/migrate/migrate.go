// Package migrate накатывает миграции каталога при старте сервиса.
// БД в контейнере может подниматься дольше сервиса, поэтому миграции повторяются
// с линейно растущей задержкой.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MaxAttempts количество попыток применить миграции
const MaxAttempts = 10

// ErrMigrationsExhausted - все попытки исчерпаны, оборачивает последнюю ошибку
var ErrMigrationsExhausted = errors.New("database migrations failed after all retry attempts")

// Migrator применяет все недостающие миграции
type Migrator interface {
	Up(ctx context.Context) error
}

// RetryDelay задержка перед попыткой attempt+1: 2s, 4s, 6s...
func RetryDelay(attempt int) time.Duration {
	return time.Duration(2*attempt) * time.Second
}

// подменяется в тестах
var retryDelay = RetryDelay

// ApplyMigrationsWithRetry применяет миграции не более MaxAttempts раз.
// Пустой dsn - БД не настроена, миграции пропускаются.
func ApplyMigrationsWithRetry(ctx context.Context, dsn string, m Migrator, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dsn == "" {
		logger.Info("No database connection string configured, skipping migrations")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		logger.Info("Applying database migrations",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", MaxAttempts),
		)

		lastErr = m.Up(ctx)
		if lastErr == nil {
			logger.Info("Database migrations applied")
			return nil
		}
		if attempt == MaxAttempts {
			break
		}

		delay := retryDelay(attempt)
		logger.Warn("Database migration attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	logger.Error("Database migrations failed after all retry attempts",
		zap.Int("max_attempts", MaxAttempts),
		zap.Error(lastErr),
	)
	return fmt.Errorf("%w: %w", ErrMigrationsExhausted, lastErr)
}
