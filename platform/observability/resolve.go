package observability

import (
	"math"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/IggyCloud/eShop/platform/config"
)

// Ключи конфигурации телеметрии
const (
	KeyServiceName        = "Telemetry:ServiceName"
	KeyPerfMode           = "Telemetry:PerfMode"
	KeyPerformanceMode    = "Telemetry:PerformanceMode"
	KeyPerfModeShort      = "PerfMode"
	KeyTraceSampleRatio   = "OpenTelemetry:TraceSampleRatio"
	EnvServiceName        = "OTEL_SERVICE_NAME"
	EnvPerfMode           = "PERF_MODE"
	EnvTraceSampleRatio   = "OTEL_TRACE_SAMPLE_RATIO"
	DefaultServiceName    = "eshop-service"
	DefaultServiceVersion = "1.0.0"
)

// Доли семплирования по умолчанию
const (
	DefaultSampleRatio     = 0.05
	PerfModeSampleRatio    = 0.01
	PerfModeMaxSampleRatio = 0.01
)

// Version подставляется при сборке: -ldflags "-X github.com/IggyCloud/eShop/platform/observability.Version=1.2.3"
var Version string

// Identity - разрешённая при старте идентичность сервиса для телеметрии.
// Вычисляется один раз и дальше не меняется.
type Identity struct {
	ServiceName      string
	ServiceVersion   string
	PerfMode         bool
	TraceSampleRatio float64
}

// Mode значение атрибута telemetry.mode
func (id Identity) Mode() string {
	if id.PerfMode {
		return "perf"
	}
	return "standard"
}

// ResolveIdentity собирает Identity из конфигурации
func ResolveIdentity(cfg config.Reader, appName string) Identity {
	perf := IsPerfMode(cfg)
	return Identity{
		ServiceName:      ResolveServiceName(cfg, appName),
		ServiceVersion:   ResolveServiceVersion(),
		PerfMode:         perf,
		TraceSampleRatio: ResolveTraceSampleRatio(cfg, perf),
	}
}

// ResolveServiceName - первое непустое из Telemetry:ServiceName, OTEL_SERVICE_NAME,
// имени приложения хоста, иначе "eshop-service".
func ResolveServiceName(cfg config.Reader, appName string) string {
	return config.FirstOf(DefaultServiceName,
		config.NonEmpty(cfg, KeyServiceName),
		config.NonEmpty(cfg, EnvServiceName),
		func() (string, bool) { return appName, strings.TrimSpace(appName) != "" },
	)
}

// IsPerfMode - первый разбираемый bool из списка ключей, иначе false.
// Нераспознанное значение пропускается, а не считается ошибкой.
func IsPerfMode(cfg config.Reader) bool {
	return config.FirstOf(false,
		config.Bool(cfg, KeyPerfMode),
		config.Bool(cfg, KeyPerformanceMode),
		config.Bool(cfg, KeyPerfModeShort),
		config.Bool(cfg, EnvPerfMode),
	)
}

// ResolveTraceSampleRatio разбирает долю семплирования.
// Разобранное значение зажимается в [0,1] и в perf режиме ограничивается 0.01.
// Без значения (или с мусором) - 0.01 в perf режиме, иначе 0.05.
func ResolveTraceSampleRatio(cfg config.Reader, perfMode bool) float64 {
	raw := config.FirstOf("",
		config.NonEmpty(cfg, KeyTraceSampleRatio),
		config.NonEmpty(cfg, EnvTraceSampleRatio),
	)

	ratio, ok := parseRatio(raw)
	if !ok {
		if perfMode {
			return PerfModeSampleRatio
		}
		return DefaultSampleRatio
	}

	ratio = math.Min(math.Max(ratio, 0), 1)
	if perfMode {
		ratio = math.Min(ratio, PerfModeMaxSampleRatio)
	}
	return ratio
}

func parseRatio(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ResolveServiceVersion - версия главного модуля из build info, затем Version, затем "1.0.0"
func ResolveServiceVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	if Version != "" {
		return Version
	}
	return DefaultServiceVersion
}
