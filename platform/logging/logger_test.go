package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{ServiceName: "catalog-api", Env: "Production", Output: &buf})
	require.NoError(t, err)

	logger.Info("hello", zap.String("k", "v"))
	Sync(logger)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "catalog-api", line["service"])
	assert.Equal(t, "Production", line["env"])
	assert.Equal(t, "v", line["k"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Env: "Production", Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("skipped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.Error(t, err)

	_, err = New(Config{Format: "xml"})
	require.Error(t, err)
}

func TestIsDevelopmentEnv(t *testing.T) {
	assert.True(t, IsDevelopmentEnv("Development"))
	assert.True(t, IsDevelopmentEnv("development"))
	assert.True(t, IsDevelopmentEnv("local"))
	assert.False(t, IsDevelopmentEnv("Production"))
	assert.False(t, IsDevelopmentEnv(""))
}

// recordingExporter складывает записи в память
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) attrs(i int) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[string]string{}
	e.records[i].WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.String()
		return true
	})
	return out
}

func newBridgedLogger(t *testing.T, opts BridgeOptions) (*zap.Logger, *recordingExporter) {
	t.Helper()
	exp := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	base, err := New(Config{ServiceName: "test", Env: "Production", Output: &buf})
	require.NoError(t, err)
	return WithBridge(base, "test", provider, opts), exp
}

func TestWithBridge_StateValuesWithoutScopes(t *testing.T) {
	logger, exp := newBridgedLogger(t, BridgeOptions{ParseStateValues: true})

	logger.With(zap.String("request_id", "r-1")).Info("item loaded", zap.Int("item_id", 42))

	require.Len(t, exp.records, 1)
	assert.Equal(t, "item loaded", exp.records[0].Body().AsString())
	attrs := exp.attrs(0)
	assert.Contains(t, attrs, "item_id")
	assert.NotContains(t, attrs, "request_id")
}

func TestWithBridge_FormattedMessageAndScopes(t *testing.T) {
	logger, exp := newBridgedLogger(t, BridgeOptions{IncludeFormattedMessage: true, IncludeScopes: true})

	logger.With(zap.String("request_id", "r-1")).Info("item loaded", zap.Int("item_id", 42))

	require.Len(t, exp.records, 1)
	assert.Equal(t, "item loaded item_id=42", exp.records[0].Body().AsString())
	attrs := exp.attrs(0)
	assert.Contains(t, attrs, "request_id")
	assert.NotContains(t, attrs, "item_id")
}

func TestWithBridge_NilProvider(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithBridge(base, "test", nil, BridgeOptions{}))
}
