package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/IggyCloud/eShop/platform/config"
)

// Секция конфигурации профилировщика и переменные окружения агента
const (
	PyroscopeSection = "Pyroscope"

	EnvPyroscopeServerAddress  = "PYROSCOPE_SERVER_ADDRESS"
	EnvPyroscopeApplication    = "PYROSCOPE_APPLICATION_NAME"
	EnvPyroscopeAPIKey         = "PYROSCOPE_API_KEY"
	EnvPyroscopeUploadInterval = "PYROSCOPE_UPLOAD_INTERVAL"
	EnvPyroscopeSamplingRate   = "PYROSCOPE_SAMPLING_RATE"
)

// Environment - переменные окружения процесса.
// Вынесено в интерфейс, чтобы тесты не трогали настоящее окружение.
type Environment interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
}

// ProcessEnvironment окружение текущего процесса
type ProcessEnvironment struct{}

func (ProcessEnvironment) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (ProcessEnvironment) Set(key, value string) error      { return os.Setenv(key, value) }

// ConfigurePyroscopeEnvironment переносит секцию Pyroscope в переменные окружения агента.
// Без секции ничего не делает. Уже заданные переменные не перезаписываются,
// пустые значения из конфигурации пропускаются.
func ConfigurePyroscopeEnvironment(cfg config.Reader, env Environment, serviceName string) error {
	section := config.SectionOf(cfg, PyroscopeSection)
	if !section.Exists() {
		return nil
	}

	appName, ok := section.Lookup("ApplicationName")
	if !ok {
		appName = "eshop." + serviceName
	}

	pairs := []struct {
		key   string
		value string
	}{
		{EnvPyroscopeServerAddress, value(section, "Server")},
		{EnvPyroscopeApplication, appName},
		{EnvPyroscopeAPIKey, value(section, "ApiKey")},
		{EnvPyroscopeUploadInterval, value(section, "UploadIntervalSeconds")},
		{EnvPyroscopeSamplingRate, value(section, "SampleRate")},
	}
	for _, p := range pairs {
		if err := setIfMissing(env, p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

func value(s config.Section, name string) string {
	v, _ := s.Lookup(name)
	return v
}

func setIfMissing(env Environment, key, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if current, ok := env.Lookup(key); ok && current != "" {
		return nil
	}
	if err := env.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
