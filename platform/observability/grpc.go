package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// metadataCarrier адаптирует metadata.MD к propagation.TextMapCarrier
type metadataCarrier struct {
	md metadata.MD
}

// NewMetadataCarrier создаёт carrier для gRPC metadata (incoming или outgoing)
func NewMetadataCarrier(md metadata.MD) *metadataCarrier {
	if md == nil {
		md = metadata.MD{}
	}
	return &metadataCarrier{md: md}
}

// Get возвращает первое значение по ключу (ключи gRPC metadata в нижнем регистре)
func (c *metadataCarrier) Get(key string) string {
	vals := c.md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (c *metadataCarrier) Set(key, value string) {
	c.md.Set(key, value)
}

func (c *metadataCarrier) Keys() []string {
	out := make([]string, 0, len(c.md))
	for k := range c.md {
		out = append(out, k)
	}
	return out
}

// parseGRPCFullMethod splits "/package.Service/Method" into serviceName ("package.Service") and method ("Method").
func parseGRPCFullMethod(fullMethod string) (serviceName, method string) {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	if trimmed == "" {
		return fullMethod, fullMethod
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed, trimmed
	}
	return trimmed[:idx], trimmed[idx+1:]
}

func rpcAttributes(fullMethod string) []attribute.KeyValue {
	rpcService, rpcMethod := parseGRPCFullMethod(fullMethod)
	return []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", rpcService),
		attribute.String("rpc.method", rpcMethod),
	}
}

func recordRPCError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if st, ok := status.FromError(err); ok {
		span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(st.Code())))
	}
}

// GRPCUnaryServerInterceptor возвращает unary server interceptor: извлекает trace из metadata, создаёт span на RPC.
func GRPCUnaryServerInterceptor(p Providers) grpc.UnaryServerInterceptor {
	p = p.withDefaults()
	tracer := p.Tracer.Tracer(ScopeGRPCServer)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = p.Propagator.Extract(ctx, NewMetadataCarrier(md))
		ctx, span := tracer.Start(ctx, strings.TrimPrefix(info.FullMethod, "/"),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(rpcAttributes(info.FullMethod)...),
		)
		defer span.End()

		resp, err := handler(ctx, req)
		if err != nil {
			recordRPCError(span, err)
		}
		return resp, err
	}
}

// GRPCUnaryClientInterceptor возвращает unary client interceptor: создаёт span, инжектит trace в outgoing metadata.
func GRPCUnaryClientInterceptor(p Providers) grpc.UnaryClientInterceptor {
	p = p.withDefaults()
	tracer := p.Tracer.Tracer(ScopeGRPCClient)
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span := tracer.Start(ctx, strings.TrimPrefix(method, "/"),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(rpcAttributes(method)...),
		)
		defer span.End()

		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			md = metadata.MD{}
		} else {
			md = md.Copy()
		}
		p.Propagator.Inject(ctx, NewMetadataCarrier(md))
		ctx = metadata.NewOutgoingContext(ctx, md)

		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			recordRPCError(span, err)
		}
		return err
	}
}
