package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/jonas-koeritz/herocam/libgopro"
	"github.com/spf13/viper"
)

// Configuration keys, also usable as HEROCAM_<KEY> environment variables
const (
	KeyHost           = "host"
	KeyMediaURL       = "media_url"
	KeyConnectTimeout = "connect_timeout"
	KeyVerbose        = "verbose"
	KeyLegacyCounters = "legacy_counters"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyExporterListen = "exporter_listen"
	KeyJSON           = "json"
)

// Settings is the resolved configuration
type Settings struct {
	Host           string
	MediaURL       string
	ConnectTimeout time.Duration
	Verbose        bool
	LegacyCounters bool
	LogLevel       string
	LogFormat      string
	ExporterListen string
	JSON           bool
}

func setDefaults() {
	viper.SetDefault(KeyHost, libgopro.DefaultHost)
	viper.SetDefault(KeyMediaURL, "")
	viper.SetDefault(KeyConnectTimeout, libgopro.DefaultConnectTimeout)
	viper.SetDefault(KeyVerbose, false)
	viper.SetDefault(KeyLegacyCounters, false)
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFormat, "")
	viper.SetDefault(KeyExporterListen, ":9110")
	viper.SetDefault(KeyJSON, false)
}

// InitConfig reads in config file and ENV variables if set.
// A missing default config file is not an error.
func InitConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			// Search config in home directory with name ".herocam" (without extension).
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".herocam")
	}

	viper.SetEnvPrefix("herocam")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load returns the settings currently known to viper
func Load() Settings {
	return Settings{
		Host:           viper.GetString(KeyHost),
		MediaURL:       viper.GetString(KeyMediaURL),
		ConnectTimeout: viper.GetDuration(KeyConnectTimeout),
		Verbose:        viper.GetBool(KeyVerbose),
		LegacyCounters: viper.GetBool(KeyLegacyCounters),
		LogLevel:       viper.GetString(KeyLogLevel),
		LogFormat:      viper.GetString(KeyLogFormat),
		ExporterListen: viper.GetString(KeyExporterListen),
		JSON:           viper.GetBool(KeyJSON),
	}
}
