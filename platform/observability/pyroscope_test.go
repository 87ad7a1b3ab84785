package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv map[string]string

func (e fakeEnv) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func (e fakeEnv) Set(key, value string) error {
	e[key] = value
	return nil
}

func TestConfigurePyroscopeEnvironment_NoSection(t *testing.T) {
	env := fakeEnv{}
	require.NoError(t, ConfigurePyroscopeEnvironment(newConfig(t, nil), env, "catalog"))
	assert.Empty(t, env)
}

func TestConfigurePyroscopeEnvironment_SeedsMissing(t *testing.T) {
	cfg := newConfig(t, map[string]string{
		"Pyroscope:Server":                "http://pyroscope:4040",
		"Pyroscope:ApiKey":                " ",
		"Pyroscope:UploadIntervalSeconds": "15",
		"Pyroscope:SampleRate":            "100",
	})
	env := fakeEnv{
		EnvPyroscopeServerAddress: "http://already-set:4040",
		EnvPyroscopeSamplingRate:  "",
	}

	require.NoError(t, ConfigurePyroscopeEnvironment(cfg, env, "catalog"))

	assert.Equal(t, "http://already-set:4040", env[EnvPyroscopeServerAddress])
	assert.Equal(t, "eshop.catalog", env[EnvPyroscopeApplication])
	assert.Equal(t, "15", env[EnvPyroscopeUploadInterval])
	assert.Equal(t, "100", env[EnvPyroscopeSamplingRate])
	assert.NotContains(t, env, EnvPyroscopeAPIKey)
}

func TestConfigurePyroscopeEnvironment_ExplicitApplicationName(t *testing.T) {
	cfg := newConfig(t, map[string]string{"Pyroscope:ApplicationName": "catalog-profiles"})
	env := fakeEnv{}

	require.NoError(t, ConfigurePyroscopeEnvironment(cfg, env, "catalog"))
	assert.Equal(t, fakeEnv{EnvPyroscopeApplication: "catalog-profiles"}, env)
}

func TestConfigurePyroscopeEnvironment_KeepsExistingAPIKey(t *testing.T) {
	cfg := newConfig(t, map[string]string{"Pyroscope:ApiKey": "new"})
	env := fakeEnv{EnvPyroscopeAPIKey: "existing"}

	require.NoError(t, ConfigurePyroscopeEnvironment(cfg, env, "catalog"))
	assert.Equal(t, "existing", env[EnvPyroscopeAPIKey])
}

type failingEnv struct{ fakeEnv }

func (failingEnv) Set(string, string) error { return errors.New("read-only") }

func TestConfigurePyroscopeEnvironment_SetError(t *testing.T) {
	cfg := newConfig(t, map[string]string{"Pyroscope:Server": "http://pyroscope:4040"})
	err := ConfigurePyroscopeEnvironment(cfg, failingEnv{fakeEnv{}}, "catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPyroscopeServerAddress)
}
