// Package config loads application configuration from config.yaml and the
// STATIONMAP_* environment, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Style  StyleConfig  `yaml:"style" mapstructure:"style"`
	Map    MapConfig    `yaml:"map" mapstructure:"map"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig configures the entity source.
type DataConfig struct {
	// Driver selects the source: gpkg, shapefile, or postgres.
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	Dir         string      `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Files       FilesConfig `yaml:"files" mapstructure:"files"`
}

// FilesConfig names the per-collection GeoPackage files. Optional entries may
// be blank to skip the layer.
type FilesConfig struct {
	Stations  string `yaml:"stations" mapstructure:"stations"`
	Buffers   string `yaml:"buffers" mapstructure:"buffers"`
	Clusters  string `yaml:"clusters" mapstructure:"clusters"`
	GridCells string `yaml:"grid_cells" mapstructure:"grid_cells"`
	Centroids string `yaml:"centroids" mapstructure:"centroids"`
	Roads     string `yaml:"roads" mapstructure:"roads"`
	Villages  string `yaml:"villages" mapstructure:"villages"`
}

// StyleConfig points at optional style-rule override files.
type StyleConfig struct {
	BufferOverrides  string `yaml:"buffer_overrides" mapstructure:"buffer_overrides"`
	ClusterOverrides string `yaml:"cluster_overrides" mapstructure:"cluster_overrides"`
}

// MapConfig configures document defaults.
type MapConfig struct {
	Zoom int `yaml:"zoom" mapstructure:"zoom"`
}

// ServerConfig configures the map API server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateBurst    int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATIONMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.driver", "gpkg")
	v.SetDefault("data.dir", "data/processed")
	v.SetDefault("data.files.stations", "station_loc.gpkg")
	v.SetDefault("data.files.buffers", "station_buffers.gpkg")
	v.SetDefault("data.files.clusters", "sampled_clusters.gpkg")
	v.SetDefault("data.files.grid_cells", "grid_cells.gpkg")
	v.SetDefault("data.files.centroids", "grid_centroids.gpkg")
	v.SetDefault("data.files.roads", "nearest_roads.gpkg")
	v.SetDefault("data.files.villages", "nearest_villages.gpkg")
	v.SetDefault("map.zoom", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
