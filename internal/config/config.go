package config

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Imagery   ImageryConfig   `mapstructure:"imagery"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Detection DetectionConfig `mapstructure:"detection"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ImageryConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Collection      string `mapstructure:"collection"`
	BurntCollection string `mapstructure:"burnt_collection"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

type OverpassConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	SaveRuns bool   `mapstructure:"save_runs"`
}

type DetectionConfig struct {
	MaxPixels             int     `mapstructure:"max_pixels"`
	HighCutoff            float64 `mapstructure:"high_cutoff"`
	VeryHighCutoff        float64 `mapstructure:"very_high_cutoff"`
	ExtremeCutoff         float64 `mapstructure:"extreme_cutoff"`
	BurnCutoff            float64 `mapstructure:"burn_cutoff"`
	ToleranceMeters       float64 `mapstructure:"tolerance_meters"`
	SingleImageWindowDays int     `mapstructure:"single_image_window_days"`
	PercentileOnAbs       bool    `mapstructure:"percentile_on_abs"`
}
