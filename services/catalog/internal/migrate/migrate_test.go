package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMigrator struct {
	failures int
	calls    int
}

func (m *fakeMigrator) Up(context.Context) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("connection refused")
	}
	return nil
}

func noDelay(t *testing.T) {
	t.Helper()
	prev := retryDelay
	retryDelay = func(int) time.Duration { return 0 }
	t.Cleanup(func() { retryDelay = prev })
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, RetryDelay(1))
	assert.Equal(t, 10*time.Second, RetryDelay(5))
}

func TestApplyMigrationsWithRetry_NoDSN(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, ApplyMigrationsWithRetry(context.Background(), "", m, nil))
	assert.Zero(t, m.calls)
}

func TestApplyMigrationsWithRetry_SucceedsAfterFailures(t *testing.T) {
	noDelay(t)
	core, logs := observer.New(zapcore.InfoLevel)

	m := &fakeMigrator{failures: 3}
	err := ApplyMigrationsWithRetry(context.Background(), "postgres://catalog", m, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 4, m.calls)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 3)
	assert.Equal(t, int64(1), warns[0].ContextMap()["attempt"])
	assert.Equal(t, int64(MaxAttempts), warns[0].ContextMap()["max_attempts"])
}

func TestApplyMigrationsWithRetry_Exhausted(t *testing.T) {
	noDelay(t)
	core, logs := observer.New(zapcore.InfoLevel)

	m := &fakeMigrator{failures: MaxAttempts}
	err := ApplyMigrationsWithRetry(context.Background(), "postgres://catalog", m, zap.New(core))
	require.ErrorIs(t, err, ErrMigrationsExhausted)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, MaxAttempts, m.calls)

	assert.Len(t, logs.FilterLevelExact(zapcore.WarnLevel).All(), MaxAttempts-1)
	assert.Len(t, logs.FilterLevelExact(zapcore.ErrorLevel).All(), 1)
}

func TestApplyMigrationsWithRetry_ContextCancelled(t *testing.T) {
	prev := retryDelay
	retryDelay = func(int) time.Duration { return time.Hour }
	t.Cleanup(func() { retryDelay = prev })

	ctx, cancel := context.WithCancel(context.Background())
	m := &fakeMigrator{failures: MaxAttempts}
	go cancel()

	err := ApplyMigrationsWithRetry(ctx, "postgres://catalog", m, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.calls)
}
