package config

import (
	"fmt"
	"maps"
	"strings"

	"image-fit-go/internal/cache"
	"image-fit-go/internal/compressor"
	"image-fit-go/internal/processor"
	"image-fit-go/internal/providers"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig contains compression engine settings
type CompressionConfig struct {
	TargetMultiplier  float64 `mapstructure:"target_multiplier"`
	MaxDimension      int     `mapstructure:"max_dimension"`
	FallbackDimension int     `mapstructure:"fallback_dimension"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
}

// ProvidersConfig contains destination limit settings
type ProvidersConfig struct {
	// Limits are merged over the built-in table.
	Limits map[string]int `mapstructure:"limits"`
	// Proxies replace the built-in proxy set when given.
	Proxies []string `mapstructure:"proxies"`
	// ModelPrefixes are consulted ahead of the built-in prefixes.
	ModelPrefixes      []providers.ModelPrefix `mapstructure:"model_prefixes"`
	DefaultDestination string                  `mapstructure:"default_destination"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Capacity int  `mapstructure:"capacity"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
	Format     string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	opts := compressor.DefaultOptions()
	return &Config{
		Compression: CompressionConfig{
			TargetMultiplier:  opts.TargetMultiplier,
			MaxDimension:      opts.MaxDimension,
			FallbackDimension: opts.FallbackDimension,
			MaxAttempts:       opts.MaxAttempts,
		},
		Providers: ProvidersConfig{
			Limits:             providers.DefaultLimits(),
			Proxies:            providers.DefaultProxies(),
			DefaultDestination: providers.DefaultID,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: cache.DefaultCapacity,
		},
		Performance: PerformanceConfig{
			WorkerThreads: 4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
			Console:    true,
			Format:     "json",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-fit")
		v.AddConfigPath("/etc/image-fit")
	}

	// IMAGE_FIT_PROVIDERS_LIMITS_AMAZON_BEDROCK -> providers.limits.amazon-bedrock
	v.SetEnvPrefix("IMAGE_FIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("compression.target_multiplier", d.Compression.TargetMultiplier)
	v.SetDefault("compression.max_dimension", d.Compression.MaxDimension)
	v.SetDefault("compression.fallback_dimension", d.Compression.FallbackDimension)
	v.SetDefault("compression.max_attempts", d.Compression.MaxAttempts)

	for id, limit := range d.Providers.Limits {
		v.SetDefault("providers.limits."+id, limit)
	}
	v.SetDefault("providers.proxies", d.Providers.Proxies)
	v.SetDefault("providers.model_prefixes", []map[string]string{})
	v.SetDefault("providers.default_destination", d.Providers.DefaultDestination)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.capacity", d.Cache.Capacity)

	v.SetDefault("performance.worker_threads", d.Performance.WorkerThreads)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file_path", d.Logging.FilePath)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Compression.TargetMultiplier <= 0 || c.Compression.TargetMultiplier > 1 {
		return fmt.Errorf("compression.target_multiplier must be in (0, 1], got %v", c.Compression.TargetMultiplier)
	}
	if c.Compression.MaxDimension < 1 {
		return fmt.Errorf("compression.max_dimension must be at least 1, got %d", c.Compression.MaxDimension)
	}
	if c.Compression.FallbackDimension < 1 {
		return fmt.Errorf("compression.fallback_dimension must be at least 1, got %d", c.Compression.FallbackDimension)
	}
	if c.Compression.MaxAttempts < 1 {
		return fmt.Errorf("compression.max_attempts must be at least 1, got %d", c.Compression.MaxAttempts)
	}

	limits := make(map[string]int, len(c.Providers.Limits))
	for id, limit := range c.Providers.Limits {
		if limit <= 0 {
			return fmt.Errorf("providers.limits.%s must be positive, got %d", id, limit)
		}
		limits[strings.ToLower(strings.TrimSpace(id))] = limit
	}
	c.Providers.Limits = limits

	for i, p := range c.Providers.ModelPrefixes {
		if strings.TrimSpace(p.Prefix) == "" || strings.TrimSpace(p.Provider) == "" {
			return fmt.Errorf("providers.model_prefixes[%d] needs both prefix and provider", i)
		}
	}

	c.Providers.DefaultDestination = strings.ToLower(strings.TrimSpace(c.Providers.DefaultDestination))
	if c.Providers.DefaultDestination == "" {
		c.Providers.DefaultDestination = providers.DefaultID
	}

	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}

	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = 4
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

// Resolver builds the provider limit resolver from the configured tables.
func (c *Config) Resolver() *providers.Resolver {
	limits := providers.DefaultLimits()
	maps.Copy(limits, c.Providers.Limits)

	prefixes := make([]providers.ModelPrefix, 0, len(c.Providers.ModelPrefixes)+len(providers.DefaultModelPrefixes()))
	prefixes = append(prefixes, c.Providers.ModelPrefixes...)
	prefixes = append(prefixes, providers.DefaultModelPrefixes()...)

	proxies := c.Providers.Proxies
	if proxies == nil {
		proxies = providers.DefaultProxies()
	}

	return providers.NewResolver(limits, prefixes, proxies)
}

// CompressorOptions returns the compression engine options.
func (c *Config) CompressorOptions() compressor.Options {
	return compressor.Options{
		TargetMultiplier:  c.Compression.TargetMultiplier,
		MaxDimension:      c.Compression.MaxDimension,
		FallbackDimension: c.Compression.FallbackDimension,
		MaxAttempts:       c.Compression.MaxAttempts,
	}
}

// ProcessorOptions returns the image part processor options.
func (c *Config) ProcessorOptions() processor.Options {
	return processor.Options{
		Workers: c.Performance.WorkerThreads,
	}
}

// NewCache returns the result cache, or nil when caching is disabled.
func (c *Config) NewCache(onEvict func(key string)) (*cache.Cache, error) {
	if !c.Cache.Enabled || c.Cache.Capacity == 0 {
		return nil, nil
	}
	return cache.New(c.Cache.Capacity, onEvict)
}

// Destination returns id, or the configured default destination when id is empty.
func (c *Config) Destination(id string) string {
	if strings.TrimSpace(id) == "" {
		return c.Providers.DefaultDestination
	}
	return id
}
