package logging

import (
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BridgeOptions управляет тем, что попадает в OpenTelemetry log record
type BridgeOptions struct {
	// IncludeFormattedMessage дописывать поля в текст сообщения (key=value)
	IncludeFormattedMessage bool
	// IncludeScopes передавать поля, добавленные через logger.With
	IncludeScopes bool
	// ParseStateValues передавать поля записи как атрибуты
	ParseStateValues bool
}

// WithBridge дублирует записи logger в OpenTelemetry log pipeline.
// Если provider == nil, logger возвращается без изменений.
func WithBridge(logger *zap.Logger, name string, provider log.LoggerProvider, opts BridgeOptions) *zap.Logger {
	if provider == nil {
		return logger
	}
	bridge := &bridgeCore{
		Core: otelzap.NewCore(name, otelzap.WithLoggerProvider(provider)),
		opts: opts,
	}
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, bridge)
	}))
}

// bridgeCore фильтрует поля перед передачей в otelzap
type bridgeCore struct {
	zapcore.Core
	opts BridgeOptions
}

func (c *bridgeCore) With(fields []zapcore.Field) zapcore.Core {
	if !c.opts.IncludeScopes {
		return c
	}
	return &bridgeCore{Core: c.Core.With(fields), opts: c.opts}
}

func (c *bridgeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *bridgeCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	if c.opts.IncludeFormattedMessage && len(fields) > 0 {
		e.Message = formatMessage(e.Message, fields)
	}
	if !c.opts.ParseStateValues {
		fields = nil
	}
	return c.Core.Write(e, fields)
}

func formatMessage(msg string, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
