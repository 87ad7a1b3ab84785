package observability

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const dbSystem = "postgresql"

// DBTracer трассирует работу с Postgres через pgx.
// Запросы пишутся в scope eshop.db, подключения и взятие соединения из пула - в scope драйвера.
// Текст запроса попадает в span только если это разрешено DatabaseOptions.
type DBTracer struct {
	queries trace.Tracer
	driver  trace.Tracer
	opts    DatabaseOptions
}

var (
	_ pgx.QueryTracer       = (*DBTracer)(nil)
	_ pgx.ConnectTracer     = (*DBTracer)(nil)
	_ pgxpool.AcquireTracer = (*DBTracer)(nil)
)

// NewDBTracer создаёт tracer для pgx.ConnConfig.Tracer
func NewDBTracer(p Providers, opts DatabaseOptions) *DBTracer {
	p = p.withDefaults()
	return &DBTracer{
		queries: p.Tracer.Tracer(ScopeDatabase),
		driver:  p.Tracer.Tracer(SourceDriver),
		opts:    opts,
	}
}

type ctxKeyDBSpan struct{}

func startDBSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) context.Context {
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append([]attribute.KeyValue{attribute.String("db.system", dbSystem)}, attrs...)...),
	)
	return context.WithValue(ctx, ctxKeyDBSpan{}, span)
}

func endDBSpan(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span, ok := ctx.Value(ctxKeyDBSpan{}).(trace.Span)
	if !ok {
		return
	}
	span.SetAttributes(attrs...)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceQueryStart вызывается pgx перед запросом
func (t *DBTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	attrs := []attribute.KeyValue{attribute.String("db.operation", op)}

	name := op
	if conn != nil {
		if db := conn.Config().Database; db != "" {
			attrs = append(attrs, attribute.String("db.name", db))
			name = op + " " + db
		}
	}
	if t.statementAllowed(op) {
		attrs = append(attrs, attribute.String("db.statement", data.SQL))
	}
	return startDBSpan(ctx, t.queries, name, attrs...)
}

// TraceQueryEnd вызывается pgx после запроса
func (t *DBTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	endDBSpan(ctx, data.Err, attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
}

// TraceConnectStart вызывается при установке соединения
func (t *DBTracer) TraceConnectStart(ctx context.Context, data pgx.TraceConnectStartData) context.Context {
	var attrs []attribute.KeyValue
	if data.ConnConfig != nil {
		attrs = append(attrs,
			attribute.String("server.address", data.ConnConfig.Host),
			attribute.Int("server.port", int(data.ConnConfig.Port)),
			attribute.String("db.name", data.ConnConfig.Database),
		)
	}
	return startDBSpan(ctx, t.driver, "connect", attrs...)
}

// TraceConnectEnd вызывается после установки соединения
func (t *DBTracer) TraceConnectEnd(ctx context.Context, data pgx.TraceConnectEndData) {
	endDBSpan(ctx, data.Err)
}

// TraceAcquireStart вызывается пулом перед выдачей соединения
func (t *DBTracer) TraceAcquireStart(ctx context.Context, _ *pgxpool.Pool, _ pgxpool.TraceAcquireStartData) context.Context {
	return startDBSpan(ctx, t.driver, "pool.acquire")
}

// TraceAcquireEnd вызывается пулом после выдачи соединения
func (t *DBTracer) TraceAcquireEnd(ctx context.Context, _ *pgxpool.Pool, data pgxpool.TraceAcquireEndData) {
	endDBSpan(ctx, data.Err)
}

func (t *DBTracer) statementAllowed(op string) bool {
	if op == "CALL" {
		return t.opts.SetStatementForStoredProcedure
	}
	return t.opts.SetStatementForText
}

// sqlOperation первое ключевое слово запроса: SELECT, INSERT, CALL...
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	return strings.ToUpper(strings.TrimRight(fields[0], ";("))
}
