package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"
)

// Config содержит конфигурацию WebApp
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:5045"`
	// CatalogURL базовый адрес Catalog API, на него проксируются изображения товаров
	CatalogURL      string        `env:"CATALOG_URL" envDefault:"http://catalog-api:8080"`
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
	if _, err := c.CatalogBaseURL(); err != nil {
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// CatalogBaseURL разобранный CATALOG_URL, только http и https
func (c Config) CatalogBaseURL() (*url.URL, error) {
	u, err := url.Parse(c.CatalogURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid CATALOG_URL: %q must be an absolute http(s) URL", c.CatalogURL)
	}
	return u, nil
}

// Log выводит конфигурацию в лог
func (c Config) Log(logger *zap.Logger) {
	logger.Info("Config loaded",
		zap.String("http_addr", c.HTTPAddr),
		zap.String("catalog_url", c.CatalogURL),
		zap.String("content_root", c.ContentRoot),
		zap.Duration("shutdown_timeout", c.ShutdownTimeout),
	)
}
