// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gencache/gencache/internal/cache"
	"github.com/gencache/gencache/internal/cluster"
	"github.com/gencache/gencache/internal/metrics"
	"github.com/gencache/gencache/pkg/errors"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	Global  GlobalConfig   `yaml:"global"`
	Cache   cache.Config   `yaml:"cache"`
	Cluster cluster.Config `yaml:"cluster"`
	Metrics metrics.Config `yaml:"metrics"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// NewDefault returns a configuration with the reference defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "json",
		},
		Cache: *cache.DefaultConfig(),
		Cluster: cluster.Config{
			SyncInterval: 30 * time.Second,
			SyncTimeout:  5 * time.Second,
		},
		Metrics: metrics.Config{
			Enabled:   true,
			Namespace: "gencache",
		},
	}
}

// CacheConfig returns the cache engine configuration with the cluster sync
// section applied.
func (c *Configuration) CacheConfig() *cache.Config {
	cfg := c.Cache
	cfg.Cluster = c.Cluster
	return &cfg
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to read config file").
			WithDetail("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to parse config file").
			WithDetail("file", filename)
	}

	return nil
}

// LoadFromEnv overrides configuration from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("GENCACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("GENCACHE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	if val := os.Getenv("GENCACHE_MAX_ENTRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxEntries = n
		}
	}
	if val := os.Getenv("GENCACHE_DEFAULT_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.DefaultTTL = d
		}
	}
	if val := os.Getenv("GENCACHE_COST_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Cache.CostThreshold = f
		}
	}
	if val := os.Getenv("GENCACHE_MEMORY_LIMIT"); val != "" {
		if bytes, err := ParseSize(val); err == nil {
			c.Cache.MemoryLimitMB = bytes / (1024 * 1024)
		}
	}
	if val := os.Getenv("GENCACHE_EVICTION_STRATEGY"); val != "" {
		c.Cache.EvictionStrategy = val
	}
	if val := os.Getenv("GENCACHE_ENABLE_CLUSTERING"); val != "" {
		c.Cache.EnableClustering = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GENCACHE_CLUSTER_NODES"); val != "" {
		c.Cache.ClusterNodes = strings.Split(val, ",")
	}
	if val := os.Getenv("GENCACHE_ENABLE_ANALYTICS"); val != "" {
		c.Cache.EnableAnalytics = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GENCACHE_COMPRESSION_ENABLED"); val != "" {
		c.Cache.CompressionEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GENCACHE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigSave, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigSave, "failed to create config directory").
			WithDetail("file", filename)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigSave, "failed to write config file").
			WithDetail("file", filename)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	switch c.Cache.EvictionStrategy {
	case "", cache.StrategyLRU, cache.StrategyLFU, cache.StrategyCostAware, cache.StrategyPopularity:
	default:
		return errors.Newf(errors.ErrCodeConfigValidation,
			"invalid eviction_strategy: %s", c.Cache.EvictionStrategy)
	}

	if c.Cache.MemoryLimitMB < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "memory_limit_mb must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "max_entries must not be negative")
	}
	if c.Cache.CostThreshold < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "cost_threshold must not be negative")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Global.LogLevel, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return errors.Newf(errors.ErrCodeConfigValidation,
			"invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// ParseSize parses human-readable sizes like "512KB", "64MB", or "2GB" into
// bytes. A bare number is taken as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * multiplier, nil
}
