package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/mc-instance-manager/internal/backup"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Backup    BackupConfig    `yaml:"backup" json:"backup"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path           string `yaml:"path" json:"path"`
	MaxConnections int    `yaml:"max_connections" json:"max_connections"`
}

// AuthConfig contains authentication settings. The daemon serves a single
// operator account whose bcrypt password hash is supplied via configuration.
type AuthConfig struct {
	JWTSecret            string `yaml:"jwt_secret" json:"jwt_secret"`
	AccessTokenDuration  string `yaml:"access_token_duration" json:"access_token_duration"`
	OperatorUsername     string `yaml:"operator_username" json:"operator_username"`
	OperatorPasswordHash string `yaml:"operator_password_hash" json:"-"`
}

// StorageConfig contains storage paths
type StorageConfig struct {
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	InstancesDir string `yaml:"instances_dir" json:"instances_dir"`
	RuntimesDir  string `yaml:"runtimes_dir" json:"runtimes_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// SchedulerConfig contains restart scheduler settings
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// MetricsConfig contains resource sampling settings
type MetricsConfig struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds" json:"interval_seconds"`
	RetentionDays   int  `yaml:"retention_days" json:"retention_days"`
}

// BackupConfig contains backup settings
type BackupConfig struct {
	Enabled        bool                     `yaml:"enabled" json:"enabled"`
	RetentionCount int                      `yaml:"retention_count" json:"retention_count"`
	Destination    backup.DestinationConfig `yaml:"destination" json:"destination"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path:           "./data/instance-manager.db",
			MaxConnections: 25,
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			AccessTokenDuration:  "15m",
			OperatorUsername:     "operator",
			OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		},
		Storage: StorageConfig{
			DataDir:      "./data",
			InstancesDir: "./data/instances",
			RuntimesDir:  "./data/runtimes",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			IntervalSeconds: 30,
			RetentionDays:   7,
		},
		Backup: BackupConfig{
			Enabled:        true,
			RetentionCount: 10,
			Destination: backup.DestinationConfig{
				Type: "local",
				Path: "./data/backups",
			},
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.Auth.JWTSecret = jwtSecret
	}

	if operatorHash := os.Getenv("OPERATOR_PASSWORD_HASH"); operatorHash != "" {
		cfg.Auth.OperatorPasswordHash = operatorHash
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}

	if instancesDir := os.Getenv("INSTANCES_DIR"); instancesDir != "" {
		cfg.Storage.InstancesDir = instancesDir
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	cfg.normalizeStoragePaths(configPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set to a secure value")
	}

	if len(c.Auth.JWTSecret) > 1 && c.Auth.JWTSecret[0] == '$' && c.Auth.JWTSecret[1] == '{' {
		return fmt.Errorf("JWT_SECRET contains unexpanded environment variable")
	}

	if c.Auth.OperatorPasswordHash == "" {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH must be set (bcrypt hash of the operator password)")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func resolveConfigPath() string {
	candidates := []string{"../configs/config.yaml", "./configs/config.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "./configs/config.yaml"
}

func (c *Config) normalizeStoragePaths(configPath string) {
	baseDir := filepath.Dir(configPath)
	if !filepath.IsAbs(baseDir) {
		if absBase, err := filepath.Abs(baseDir); err == nil {
			baseDir = absBase
		}
	}

	rootDir := baseDir
	if filepath.Base(baseDir) == "configs" {
		rootDir = filepath.Dir(baseDir)
	}

	resolvePath := func(value string) string {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return ""
		}
		if filepath.IsAbs(trimmed) {
			return filepath.Clean(trimmed)
		}
		return filepath.Clean(filepath.Join(rootDir, trimmed))
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = filepath.Join(rootDir, "data")
	}
	c.Storage.DataDir = resolvePath(c.Storage.DataDir)

	if strings.TrimSpace(c.Storage.InstancesDir) == "" {
		c.Storage.InstancesDir = filepath.Join(c.Storage.DataDir, "instances")
	}
	c.Storage.InstancesDir = resolvePath(c.Storage.InstancesDir)

	if strings.TrimSpace(c.Storage.RuntimesDir) == "" {
		c.Storage.RuntimesDir = filepath.Join(c.Storage.DataDir, "runtimes")
	}
	c.Storage.RuntimesDir = resolvePath(c.Storage.RuntimesDir)

	// Remote destination paths are remote-side and stay untouched.
	if c.Backup.Destination.Type == "" || c.Backup.Destination.Type == "local" {
		if strings.TrimSpace(c.Backup.Destination.Path) == "" {
			c.Backup.Destination.Path = filepath.Join(c.Storage.DataDir, "backups")
		}
		c.Backup.Destination.Path = resolvePath(c.Backup.Destination.Path)
	}
}
