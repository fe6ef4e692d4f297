package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMealLimit    = 3
	defaultModuleSize   = 10
	defaultMaxUploadMiB = 8
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Meals    MealsConfig    `yaml:"meals"`
	QR       QRConfig       `yaml:"qr"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	MaxUploadMiB int64  `yaml:"max_upload_mib"`
}

// DatabaseConfig holds database configuration.
// URL, when set, wins over the discrete fields.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// MealsConfig holds redemption settings
type MealsConfig struct {
	Limit int `yaml:"limit"`
}

// QRConfig holds code rendering settings
type QRConfig struct {
	ModuleSize int `yaml:"module_size"`
}

// ArchiveConfig holds the S3 scan archive configuration.
// The archive is disabled while Bucket is empty.
type ArchiveConfig struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadMiB == 0 {
		c.Server.MaxUploadMiB = defaultMaxUploadMiB
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Meals.Limit == 0 {
		c.Meals.Limit = defaultMealLimit
	}
	if c.QR.ModuleSize == 0 {
		c.QR.ModuleSize = defaultModuleSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadMiB < 0 {
		errs = append(errs, errors.New("server.max_upload_mib must not be negative"))
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.DBName == "") {
		errs = append(errs, errors.New("database.url or database.host and database.dbname are required"))
	}
	if c.Meals.Limit < 1 {
		errs = append(errs, fmt.Errorf("meals.limit must be positive, got %d", c.Meals.Limit))
	}
	if c.QR.ModuleSize < 1 {
		errs = append(errs, fmt.Errorf("qr.module_size must be positive, got %d", c.QR.ModuleSize))
	}
	if c.Archive.Bucket != "" && c.Archive.Region == "" {
		errs = append(errs, errors.New("archive.region is required when archive.bucket is set"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ArchiveEnabled reports whether accepted scans are copied to S3
func (c *ArchiveConfig) ArchiveEnabled() bool {
	return c.Bucket != ""
}

// MaxUploadBytes returns the upload limit for scan images in bytes
func (c *ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMiB << 20
}
