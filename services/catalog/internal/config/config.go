package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"
)

// Config содержит конфигурацию Catalog service.
// Телеметрия и окружение читаются отдельно через servicedefaults.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	// GRPCAddr пустой - gRPC health endpoint не поднимается
	GRPCAddr string `env:"GRPC_ADDR"`
	// PostgresDSN пустой - сервис работает на in-memory каталоге без миграций
	PostgresDSN     string        `env:"CATALOG_POSTGRES_DSN"`
	PicturePath     string        `env:"CATALOG_PICTURE_PATH" envDefault:"Pics"`
	ContentRoot     string        `env:"CONTENT_ROOT" envDefault:"."`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load загружает конфигурацию из переменных окружения
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.PicturePath == "" {
		return fmt.Errorf("CATALOG_PICTURE_PATH is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Log выводит конфигурацию в лог (пароль в DSN скрыт)
func (c Config) Log(logger *zap.Logger) {
	logger.Info("Config loaded",
		zap.String("http_addr", c.HTTPAddr),
		zap.String("grpc_addr", c.GRPCAddr),
		zap.String("postgres_dsn", maskDSN(c.PostgresDSN)),
		zap.String("picture_path", c.PicturePath),
		zap.String("content_root", c.ContentRoot),
		zap.Duration("shutdown_timeout", c.ShutdownTimeout),
	)
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
