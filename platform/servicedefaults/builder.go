// Package servicedefaults - общая обвязка сервисов eShop: телеметрия, health checks
// и стандартные endpoint'ы. Сервис создаёт Builder, вызывает AddServiceDefaults,
// затем Build и MapDefaultEndpoints на своём роутере.
package servicedefaults

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/IggyCloud/eShop/platform/config"
	"github.com/IggyCloud/eShop/platform/health"
	"github.com/IggyCloud/eShop/platform/logging"
	"github.com/IggyCloud/eShop/platform/observability"
)

const (
	// EnvAppEnvironment переменная окружения с именем окружения (Development, Production...)
	EnvAppEnvironment = "APP_ENV"
	// KeyLogLevel уровень логирования в конфигурации
	KeyLogLevel = "Logging:LogLevel:Default"
	// SelfCheckName имя liveness проверки самого процесса
	SelfCheckName = "self"
	// DefaultHTTPClientTimeout таймаут исходящих HTTP запросов
	DefaultHTTPClientTimeout = 30 * time.Second
)

// HostEnvironment - сведения о приложении и окружении, в котором оно запущено
type HostEnvironment struct {
	ApplicationName string
	EnvironmentName string
	ContentRootPath string
}

// IsDevelopment true для Development и local
func (e HostEnvironment) IsDevelopment() bool {
	return logging.IsDevelopmentEnv(e.EnvironmentName)
}

// HostEnvironmentFromProcess окружение из APP_ENV, по умолчанию Production
func HostEnvironmentFromProcess(appName, contentRoot string) HostEnvironment {
	name := strings.TrimSpace(os.Getenv(EnvAppEnvironment))
	if name == "" {
		name = observability.DefaultEnvironment
	}
	return HostEnvironment{ApplicationName: appName, EnvironmentName: name, ContentRootPath: contentRoot}
}

// Builder накапливает настройки сервиса до старта
type Builder struct {
	Config      config.Reader
	Environment HostEnvironment
	// Env переменные окружения процесса, в которые пишутся настройки профилировщика
	Env    observability.Environment
	Logger *zap.Logger
	Health *health.Registry
	// Telemetry план телеметрии, заполняется ConfigureOpenTelemetry
	Telemetry observability.Settings

	httpClientDefaults bool
	httpClientTimeout  time.Duration
}

// NewBuilder создаёт Builder поверх готовой конфигурации
func NewBuilder(env HostEnvironment, cfg config.Reader, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		Config:            cfg,
		Environment:       env,
		Env:               observability.ProcessEnvironment{},
		Logger:            logger,
		Health:            health.NewRegistry(),
		Telemetry:         observability.NewSettings(observability.Identity{}, env.EnvironmentName),
		httpClientTimeout: DefaultHTTPClientTimeout,
	}
}

// CreateBuilder стандартный старт сервиса: окружение из APP_ENV, конфигурация из
// appsettings*.yaml в contentRoot и переменных окружения, logger по конфигурации.
func CreateBuilder(appName, contentRoot string) (*Builder, error) {
	const op = "servicedefaults.CreateBuilder"

	env := HostEnvironmentFromProcess(appName, contentRoot)
	cfg, err := config.New(config.Default(contentRoot, env.EnvironmentName)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	level, _ := cfg.Lookup(KeyLogLevel)
	logger, err := logging.New(logging.Config{
		ServiceName: appName,
		Env:         env.EnvironmentName,
		Level:       level,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewBuilder(env, cfg, logger), nil
}

// AddServiceDefaults - AddBasicServiceDefaults плюс инструментированный HTTP клиент по умолчанию
func (b *Builder) AddServiceDefaults() error {
	if err := b.AddBasicServiceDefaults(); err != nil {
		return err
	}
	b.httpClientDefaults = true
	return nil
}

// AddBasicServiceDefaults - health checks и телеметрия, без настроек исходящих HTTP вызовов
func (b *Builder) AddBasicServiceDefaults() error {
	if err := b.AddDefaultHealthChecks(); err != nil {
		return err
	}
	b.ConfigureOpenTelemetry()
	return nil
}

// ConfigureOpenTelemetry разрешает идентичность сервиса и строит план телеметрии.
// Perf режим читается один раз и одинаково влияет на логи, метрики и трассы.
// Ошибок не возвращает: неудачная настройка профилировщика только логируется.
func (b *Builder) ConfigureOpenTelemetry() {
	id := observability.ResolveIdentity(b.Config, b.Environment.ApplicationName)

	if !id.PerfMode {
		if err := observability.ConfigurePyroscopeEnvironment(b.Config, b.Env, id.ServiceName); err != nil {
			b.Logger.Warn("pyroscope environment not configured", zap.Error(err))
		}
	}

	s := observability.NewSettings(id, b.Environment.EnvironmentName)
	s.ConfigureLogs()
	s.ConfigureMetrics()
	s.ConfigureTraces()
	b.Telemetry = s

	b.AddOpenTelemetryExporters()
}

// AddOpenTelemetryExporters подключает OTLP exporter к логам, метрикам и трассам,
// если задан endpoint. Без endpoint ничего не делает.
func (b *Builder) AddOpenTelemetryExporters() {
	opts, ok := observability.ResolveExporterOptions(b.Config)
	if !ok {
		return
	}
	b.Telemetry.AddExporters(opts)
}

// AddDefaultHealthChecks регистрирует проверку "self" с тегом live
func (b *Builder) AddDefaultHealthChecks() error {
	return b.Health.Add(SelfCheckName, func(context.Context) health.Result {
		return health.Healthy("")
	}, health.TagLive)
}

// Build запускает телеметрию и возвращает Host.
// Logger хоста дублирует записи в OpenTelemetry, если мост логов включён.
func (b *Builder) Build(ctx context.Context) (*Host, error) {
	const op = "servicedefaults.Build"

	tel, err := observability.Start(ctx, b.Telemetry, b.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logs := tel.LogSettings()
	logger := logging.WithBridge(b.Logger, b.Telemetry.Identity.ServiceName, tel.LoggerProvider(), logs.BridgeOptions)

	h := &Host{
		Config:      b.Config,
		Environment: b.Environment,
		Logger:      logger,
		Health:      b.Health,
		Telemetry:   tel,
		settings:    b.Telemetry,
	}
	if b.httpClientDefaults {
		h.httpClient = &http.Client{
			Transport: observability.NewTransport(nil, tel.Providers()),
			Timeout:   b.httpClientTimeout,
		}
	}
	return h, nil
}
