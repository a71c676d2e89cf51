package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".change-detection"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for service settings.
const envPrefix = "CHANGEDETECT"

// Load reads configuration from file, env vars and defaults. If configPath
// is non-empty it is used as the explicit config file path; otherwise the
// file is searched in CWD and $HOME. A missing config file is not an
// error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("imagery.endpoint", "http://localhost:9090/query")
	v.SetDefault("imagery.collection", "sar-grd")
	v.SetDefault("imagery.burnt_collection", "optical-sr")
	v.SetDefault("imagery.timeout_seconds", 60)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_seconds", 30)
	v.SetDefault("postgres.save_runs", false)
	v.SetDefault("detection.max_pixels", 10000000)
	v.SetDefault("detection.high_cutoff", 0.90)
	v.SetDefault("detection.very_high_cutoff", 0.95)
	v.SetDefault("detection.extreme_cutoff", 1.0)
	v.SetDefault("detection.burn_cutoff", 0.1)
	v.SetDefault("detection.tolerance_meters", 1.0)
	v.SetDefault("detection.single_image_window_days", 15)
	v.SetDefault("detection.percentile_on_abs", false)
}
