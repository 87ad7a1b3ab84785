package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CATALOG_URL", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:5045", cfg.HTTPAddr)
	assert.Equal(t, "http://catalog-api:8080", cfg.CatalogURL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_InvalidCatalogURL(t *testing.T) {
	for _, raw := range []string{"catalog-api:8080", "ftp://catalog", "http://"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("CATALOG_URL", raw)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestCatalogBaseURL(t *testing.T) {
	u, err := Config{CatalogURL: "https://catalog.eshop.local/"}.CatalogBaseURL()
	require.NoError(t, err)
	assert.Equal(t, "catalog.eshop.local", u.Host)
}
