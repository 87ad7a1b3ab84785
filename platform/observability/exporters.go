package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/IggyCloud/eShop/platform/config"
)

// Ключи конфигурации OTLP exporter'а
const (
	KeyOtlpEndpoint = "OpenTelemetry:Otlp:Endpoint"
	KeyOtlpProtocol = "OpenTelemetry:Otlp:Protocol"
	KeyOtlpHeaders  = "OpenTelemetry:Otlp:Headers"
	EnvOtlpEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOtlpProtocol = "OTEL_EXPORTER_OTLP_PROTOCOL"
)

// Пути сигналов для http/protobuf
const (
	tracesPath  = "/v1/traces"
	metricsPath = "/v1/metrics"
	logsPath    = "/v1/logs"
)

// Protocol транспорт OTLP
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
)

// ParseProtocol: "http/protobuf" в любом регистре - HTTP, всё остальное (включая пустое) - gRPC
func ParseProtocol(value string) Protocol {
	if strings.EqualFold(value, string(ProtocolHTTPProtobuf)) {
		return ProtocolHTTPProtobuf
	}
	return ProtocolGRPC
}

// ExporterOptions - настройки OTLP exporter'а, общие для логов, метрик и трасс
type ExporterOptions struct {
	Endpoint string
	Protocol Protocol
	Headers  map[string]string
}

// ResolveExporterOptions читает настройки exporter'а.
// ok=false если endpoint не задан: exporter'ы не подключаются.
func ResolveExporterOptions(cfg config.Reader) (ExporterOptions, bool) {
	endpoint := config.FirstOf("",
		config.NonEmpty(cfg, KeyOtlpEndpoint),
		config.NonEmpty(cfg, EnvOtlpEndpoint),
	)
	if endpoint == "" {
		return ExporterOptions{}, false
	}

	protocol := config.FirstOf("",
		config.NonEmpty(cfg, KeyOtlpProtocol),
		config.NonEmpty(cfg, EnvOtlpProtocol),
	)
	headers, _ := cfg.Lookup(KeyOtlpHeaders)

	return ExporterOptions{
		Endpoint: strings.TrimSpace(endpoint),
		Protocol: ParseProtocol(protocol),
		Headers:  ParseHeaders(headers),
	}, true
}

// ParseHeaders разбирает строку вида "k1=v1,k2=v2" (формат OTEL_EXPORTER_OTLP_HEADERS).
// Значения могут быть percent-encoded. Некорректные пары пропускаются.
func ParseHeaders(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// signalURL возвращает полный URL для сигнала, если endpoint задан как URL.
// Для http/protobuf к пути добавляется путь сигнала.
func (o ExporterOptions) signalURL(signalPath string) (string, bool) {
	u, err := url.Parse(o.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if o.Protocol == ProtocolHTTPProtobuf {
		u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	}
	return u.String(), true
}

func newSpanExporter(ctx context.Context, o ExporterOptions) (sdktrace.SpanExporter, error) {
	if o.Protocol == ProtocolHTTPProtobuf {
		opts := []otlptracehttp.Option{}
		if u, ok := o.signalURL(tracesPath); ok {
			opts = append(opts, otlptracehttp.WithEndpointURL(u))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(o.Endpoint), otlptracehttp.WithInsecure())
		}
		if len(o.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(o.Headers))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter (http): %w", err)
		}
		return exp, nil
	}

	opts := []otlptracegrpc.Option{}
	if u, ok := o.signalURL(tracesPath); ok {
		opts = append(opts, otlptracegrpc.WithEndpointURL(u))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(o.Endpoint), otlptracegrpc.WithInsecure())
	}
	if len(o.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(o.Headers))
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter (grpc): %w", err)
	}
	return exp, nil
}

func newMetricExporter(ctx context.Context, o ExporterOptions) (sdkmetric.Exporter, error) {
	if o.Protocol == ProtocolHTTPProtobuf {
		opts := []otlpmetrichttp.Option{}
		if u, ok := o.signalURL(metricsPath); ok {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(u))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(o.Endpoint), otlpmetrichttp.WithInsecure())
		}
		if len(o.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(o.Headers))
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter (http): %w", err)
		}
		return exp, nil
	}

	opts := []otlpmetricgrpc.Option{}
	if u, ok := o.signalURL(metricsPath); ok {
		opts = append(opts, otlpmetricgrpc.WithEndpointURL(u))
	} else {
		opts = append(opts, otlpmetricgrpc.WithEndpoint(o.Endpoint), otlpmetricgrpc.WithInsecure())
	}
	if len(o.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(o.Headers))
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter (grpc): %w", err)
	}
	return exp, nil
}

func newLogExporter(ctx context.Context, o ExporterOptions) (sdklog.Exporter, error) {
	if o.Protocol == ProtocolHTTPProtobuf {
		opts := []otlploghttp.Option{}
		if u, ok := o.signalURL(logsPath); ok {
			opts = append(opts, otlploghttp.WithEndpointURL(u))
		} else {
			opts = append(opts, otlploghttp.WithEndpoint(o.Endpoint), otlploghttp.WithInsecure())
		}
		if len(o.Headers) > 0 {
			opts = append(opts, otlploghttp.WithHeaders(o.Headers))
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp log exporter (http): %w", err)
		}
		return exp, nil
	}

	opts := []otlploggrpc.Option{}
	if u, ok := o.signalURL(logsPath); ok {
		opts = append(opts, otlploggrpc.WithEndpointURL(u))
	} else {
		opts = append(opts, otlploggrpc.WithEndpoint(o.Endpoint), otlploggrpc.WithInsecure())
	}
	if len(o.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(o.Headers))
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp log exporter (grpc): %w", err)
	}
	return exp, nil
}
