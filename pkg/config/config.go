package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for vigilo-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration for the duplicate-detection cache (optional)
	Redis RedisConfig `yaml:"redis"`

	// Upload ingestion configuration
	Upload UploadConfig `yaml:"upload"`

	// Drive integration configuration
	Drive DriveConfig `yaml:"drive"`

	// Retry policy for write conflicts and transient failures
	Retry RetryConfig `yaml:"retry"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"vigilo"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"vigilo_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. Redis is optional: an empty host
// disables the file-hash cache and duplicate checks hit the database only.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// UploadConfig holds inspection report ingestion settings.
type UploadConfig struct {
	// MaxFileSizeMB caps the size of an uploaded report.
	MaxFileSizeMB int `yaml:"max_file_size_mb" env:"UPLOAD_MAX_FILE_SIZE_MB" env-default:"25"`

	// AllowedExtensionsStr is a comma-separated list of accepted file
	// extensions, e.g. ".pdf,.docx".
	AllowedExtensionsStr string `yaml:"allowed_extensions" env:"UPLOAD_ALLOWED_EXTENSIONS" env-default:".pdf,.docx"`

	// AllowedExtensions is parsed from AllowedExtensionsStr (not from config file).
	AllowedExtensions []string `yaml:"-"`
}

// DriveConfig holds Google Drive integration settings.
type DriveConfig struct {
	// RootFolderID is the shared Drive folder that company folders live under.
	RootFolderID string `yaml:"root_folder_id" env:"DRIVE_ROOT_FOLDER_ID" env-default:""`

	// CredentialsPath points at the service-account JSON used by the
	// ingestion collaborator. Empty disables Drive-backed features.
	CredentialsPath string `yaml:"credentials_path" env:"DRIVE_CREDENTIALS_PATH" env-default:""`
}

// IsAvailable returns true if Drive integration is configured.
func (c *DriveConfig) IsAvailable() bool {
	return c.RootFolderID != "" && c.CredentialsPath != ""
}

// RetryConfig holds the retry policy for optimistic-concurrency conflicts and
// transient database errors.
type RetryConfig struct {
	MaxAttempts  int `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	BaseDelayMS  int `yaml:"base_delay_ms" env:"RETRY_BASE_DELAY_MS" env-default:"100"`
	MaxElapsedMS int `yaml:"max_elapsed_ms" env:"RETRY_MAX_ELAPSED_MS" env-default:"2000"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD) must come
// from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Upload.AllowedExtensions = parseExtensions(c.Upload.AllowedExtensionsStr)
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload.allowed_extensions must list at least one extension")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.max_file_size_mb must be positive, got %d", c.Upload.MaxFileSizeMB)
	}
	return nil
}

// parseExtensions parses the comma-separated extension list, normalizing each
// entry to a lower-case ".ext" form.
func parseExtensions(value string) []string {
	var exts []string
	for _, part := range strings.Split(value, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// IsAllowedExtension reports whether the given filename extension is accepted
// for upload. The comparison is case-insensitive.
func (c *UploadConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// MaxFileSizeBytes returns the upload cap in bytes.
func (c *UploadConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
