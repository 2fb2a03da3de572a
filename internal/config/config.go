package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/domain/vo"
)

// EnvPrefix prefixes environment overrides, e.g. PICCACHE_HTTP_BIND_ADDR
const EnvPrefix = "PICCACHE"

// Config represents the entire application configuration
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Download DownloadConfig `mapstructure:"download"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// StorageConfig contains disk cache placement settings. Sizes accept
// human-readable values such as "20MiB".
type StorageConfig struct {
	ExternalMountPoint string `mapstructure:"external_mount_point"`
	RequireMountPoint  bool   `mapstructure:"require_mount_point"`
	ExternalCacheDir   string `mapstructure:"external_cache_dir"`
	InternalCacheDir   string `mapstructure:"internal_cache_dir"`
	ExternalCap        string `mapstructure:"external_cap"`
	InternalCap        string `mapstructure:"internal_cap"`
	Margin             string `mapstructure:"margin"`
	ReplanInterval     string `mapstructure:"replan_interval"`
	TempFileMaxAge     string `mapstructure:"temp_file_max_age"`
}

// MemoryConfig contains memory cache settings
type MemoryConfig struct {
	MaxSize          string `mapstructure:"max_size"`
	ExpectedItemSize string `mapstructure:"expected_item_size"`
}

// DownloadConfig contains download queue settings
type DownloadConfig struct {
	Workers              int      `mapstructure:"workers"`
	Order                string   `mapstructure:"order"`
	QueueSize            int      `mapstructure:"queue_size"`
	Timeout              string   `mapstructure:"timeout"`
	MaxBodySize          string   `mapstructure:"max_body_size"`
	UserAgent            string   `mapstructure:"user_agent"`
	AllowedHosts         []string `mapstructure:"allowed_hosts"`
	ConnectivityURL      string   `mapstructure:"connectivity_url"`
	ConnectivityTimeout  string   `mapstructure:"connectivity_timeout"`
	ConnectivityInterval string   `mapstructure:"connectivity_interval"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr      string `mapstructure:"bind_addr"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	ReadTimeout   string `mapstructure:"read_timeout"`
	WriteTimeout  string `mapstructure:"write_timeout"`
	IdleTimeout   string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from configPath. An empty path loads defaults
// and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Storage.ExternalCacheDir == "" && config.Storage.ExternalMountPoint != "" {
		config.Storage.ExternalCacheDir = filepath.Join(config.Storage.ExternalMountPoint, "picture-cache")
	}
	if config.Database.Path == "" {
		config.Database.Path = filepath.Join(config.Storage.InternalCacheDir, "index.db")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.external_mount_point", "/mnt/sdcard")
	v.SetDefault("storage.require_mount_point", false)
	v.SetDefault("storage.external_cache_dir", "")
	v.SetDefault("storage.internal_cache_dir", "/var/cache/picture-cache")
	v.SetDefault("storage.external_cap", "20MiB")
	v.SetDefault("storage.internal_cap", "8MiB")
	v.SetDefault("storage.margin", "1MiB")
	v.SetDefault("storage.replan_interval", "1m")
	v.SetDefault("storage.temp_file_max_age", "24h")
	v.SetDefault("memory.max_size", "4MiB")
	v.SetDefault("memory.expected_item_size", "32KiB")
	v.SetDefault("download.workers", 3)
	v.SetDefault("download.order", "lifo")
	v.SetDefault("download.queue_size", 64)
	v.SetDefault("download.timeout", "20s")
	v.SetDefault("download.max_body_size", "10MiB")
	v.SetDefault("download.user_agent", "picture-cache")
	v.SetDefault("download.allowed_hosts", []string{})
	v.SetDefault("download.connectivity_url", "")
	v.SetDefault("download.connectivity_timeout", "3s")
	v.SetDefault("download.connectivity_interval", "10s")
	v.SetDefault("http.bind_addr", "0.0.0.0:8080")
	v.SetDefault("http.admin_username", "admin")
	v.SetDefault("http.admin_password", "")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.InternalCacheDir == "" {
		return fmt.Errorf("storage.internal_cache_dir is required")
	}

	positive := map[string]string{
		"storage.external_cap":   c.Storage.ExternalCap,
		"storage.internal_cap":   c.Storage.InternalCap,
		"memory.max_size":        c.Memory.MaxSize,
		"download.max_body_size": c.Download.MaxBodySize,
	}
	for key, value := range positive {
		size, err := vo.ParseByteSize(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if size.IsZero() {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if _, err := vo.ParseByteSize(c.Storage.Margin); err != nil {
		return fmt.Errorf("invalid storage.margin: %w", err)
	}

	if c.Download.Workers < 1 || c.Download.Workers > 16 {
		return fmt.Errorf("download.workers must be between 1 and 16")
	}
	switch c.Download.Order {
	case "lifo", "fifo":
	default:
		return fmt.Errorf("invalid download.order: %s", c.Download.Order)
	}
	for _, host := range c.Download.AllowedHosts {
		if host == "" || strings.ContainsAny(host, "/:@ ") {
			return fmt.Errorf("invalid download.allowed_hosts entry %q: want a host name or *.domain", host)
		}
	}

	durations := map[string]string{
		"storage.replan_interval":        c.Storage.ReplanInterval,
		"storage.temp_file_max_age":      c.Storage.TempFileMaxAge,
		"download.timeout":               c.Download.Timeout,
		"download.connectivity_timeout":  c.Download.ConnectivityTimeout,
		"download.connectivity_interval": c.Download.ConnectivityInterval,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func bytesOf(s string, fallback int64) int64 {
	size, err := vo.ParseByteSize(s)
	if err != nil || size.IsZero() {
		return fallback
	}
	return size.Bytes()
}

func durationOf(s string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(s)
	if d == 0 {
		return fallback
	}
	return d
}

// GetBudget returns the configured disk cache sizes
func (c *StorageConfig) GetBudget() domain.CacheBudget {
	margin, err := vo.ParseByteSize(c.Margin)
	if err != nil {
		margin, _ = vo.NewByteSize(vo.MiB)
	}
	return domain.CacheBudget{
		ExternalBytes: bytesOf(c.ExternalCap, 20*vo.MiB),
		InternalBytes: bytesOf(c.InternalCap, 8*vo.MiB),
		MarginBytes:   margin.Bytes(),
	}
}

// GetReplanInterval returns the storage re-evaluation interval
func (c *StorageConfig) GetReplanInterval() time.Duration {
	return durationOf(c.ReplanInterval, time.Minute)
}

// GetTempFileMaxAge returns the age after which partial writes are removed
func (c *StorageConfig) GetTempFileMaxAge() time.Duration {
	return durationOf(c.TempFileMaxAge, 24*time.Hour)
}

// GetMaxSize returns the memory cache size in bytes
func (c *MemoryConfig) GetMaxSize() int64 {
	return bytesOf(c.MaxSize, 4*vo.MiB)
}

// GetExpectedItemSize returns the typical image size used to size counters
func (c *MemoryConfig) GetExpectedItemSize() int64 {
	return bytesOf(c.ExpectedItemSize, 32*vo.KiB)
}

// GetTimeout returns the per-download timeout
func (c *DownloadConfig) GetTimeout() time.Duration {
	return durationOf(c.Timeout, 20*time.Second)
}

// GetMaxBodySize returns the largest accepted image in bytes
func (c *DownloadConfig) GetMaxBodySize() int64 {
	return bytesOf(c.MaxBodySize, 10*vo.MiB)
}

// GetConnectivityTimeout returns the connectivity probe timeout
func (c *DownloadConfig) GetConnectivityTimeout() time.Duration {
	return durationOf(c.ConnectivityTimeout, 3*time.Second)
}

// GetConnectivityInterval returns how long a connectivity probe result is reused
func (c *DownloadConfig) GetConnectivityInterval() time.Duration {
	return durationOf(c.ConnectivityInterval, 10*time.Second)
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return durationOf(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return durationOf(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return durationOf(c.IdleTimeout, 60*time.Second)
}
