package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, InitConfig(""))

	settings := Load()
	require.Equal(t, "10.5.5.9", settings.Host)
	require.Equal(t, time.Second, settings.ConnectTimeout)
	require.False(t, settings.LegacyCounters)
	require.Equal(t, "info", settings.LogLevel)
	require.Equal(t, ":9110", settings.ExporterListen)
}

func TestConfigFile(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "herocam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`host: 127.0.0.1:8081
connect_timeout: 250ms
legacy_counters: true
log_level: debug
`), 0o644))

	require.NoError(t, InitConfig(path))

	settings := Load()
	require.Equal(t, "127.0.0.1:8081", settings.Host)
	require.Equal(t, 250*time.Millisecond, settings.ConnectTimeout)
	require.True(t, settings.LegacyCounters)
	require.Equal(t, "debug", settings.LogLevel)
}

func TestEnvironment(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HEROCAM_HOST", "192.168.8.1")
	t.Setenv("HEROCAM_VERBOSE", "true")
	require.NoError(t, InitConfig(""))

	settings := Load()
	require.Equal(t, "192.168.8.1", settings.Host)
	require.True(t, settings.Verbose)
}

func TestMissingConfigFile(t *testing.T) {
	viper.Reset()
	require.Error(t, InitConfig(filepath.Join(t.TempDir(), "missing.yaml")))
}
