package main

import (
	"testing"
	"time"

	"github.com/jonas-koeritz/herocam/internal/config"
	"github.com/stretchr/testify/require"
)

func TestServiceArguments(t *testing.T) {
	settings := config.Settings{
		Host:           "10.5.5.9",
		ConnectTimeout: time.Second,
		LogLevel:       "info",
		ExporterListen: ":9110",
	}
	require.Equal(t, []string{
		"exporter",
		"--host", "10.5.5.9",
		"--listen", ":9110",
		"--timeout", "1s",
		"--log-level", "info",
	}, serviceArguments(settings, ""))

	settings.MediaURL = "http://10.5.5.9:8080"
	settings.ConnectTimeout = 2500 * time.Millisecond
	settings.Verbose = true
	settings.LegacyCounters = true
	settings.LogLevel = "debug"
	settings.LogFormat = "json"
	require.Equal(t, []string{
		"exporter",
		"--host", "10.5.5.9",
		"--listen", ":9110",
		"--timeout", "2.5s",
		"--log-level", "debug",
		"--log-format", "json",
		"--media-url", "http://10.5.5.9:8080",
		"--verbose",
		"--legacy-counters",
		"--config", "/etc/herocam.yaml",
	}, serviceArguments(settings, "/etc/herocam.yaml"))
}
