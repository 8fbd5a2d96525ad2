package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"cloudkv/internal/blobstore"
	"cloudkv/internal/database"
	"cloudkv/internal/logger"
	"cloudkv/internal/service"
)

// EnvPrefix is the environment variable prefix, e.g. CLOUDKV_SERVER_PORT.
const EnvPrefix = "CLOUDKV_"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	PublicBaseURL string `mapstructure:"publicbaseurl"`
	CORSOrigin    string `mapstructure:"corsorigin"`
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Database database.Config  `mapstructure:"database"`
	Blob     blobstore.Config `mapstructure:"blob"`
	Limits   service.Limits   `mapstructure:"limits"`
	Log      logger.Config    `mapstructure:"log"`
}

// Load loads configuration from an optional .env file and CLOUDKV_-prefixed
// environment variables, on top of production defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 1. Load from .env file (if exists)
	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		// The file is optional; only a parse error of an existing file matters.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && fileExists(".env") {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	// 2. Load from environment variables.
	// Viper's AutomaticEnv doesn't work well with Unmarshal when keys aren't
	// known up front, so iterate env vars and populate viper directly:
	// CLOUDKV_DATABASE_HOST -> database.host
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		propKey := strings.TrimPrefix(key, EnvPrefix)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
		v.Set(propKey, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.publicbaseurl", "http://localhost:8000")
	v.SetDefault("server.corsorigin", "*")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cloudkv")
	v.SetDefault("database.name", "cloudkv")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrationspath", "./migrations")

	v.SetDefault("blob.endpoint", "localhost:9000")
	v.SetDefault("blob.bucket", "cloudkv")
	v.SetDefault("blob.usessl", false)

	limits := service.DefaultLimits()
	v.SetDefault("limits.maxkeylength", limits.MaxKeyLength)
	v.SetDefault("limits.maxvaluesize", limits.MaxValueSize)
	v.SetDefault("limits.namespacequota", limits.NamespaceQuota)
	v.SetDefault("limits.minttl", limits.MinTTL)
	v.SetDefault("limits.maxttl", limits.MaxTTL)
	v.SetDefault("limits.createwindow", limits.CreateWindow)
	v.SetDefault("limits.globalcreatelimit", limits.GlobalCreateLimit)
	v.SetDefault("limits.origincreatelimit", limits.OriginCreateLimit)
	v.SetDefault("limits.pagesize", limits.PageSize)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "json")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
