package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"database"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Lark     LarkConfig      `mapstructure:"lark"`
	Gateway  GatewayConfig   `mapstructure:"gateway"`
	Realtime RealtimeConfig  `mapstructure:"realtime"`
	Logger   LoggerConfig    `mapstructure:"logger"`
	Projects []ProjectConfig `mapstructure:"projects"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LarkConfig holds Lark messaging credentials
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// GatewayConfig holds the SMS/WhatsApp gateway configuration
type GatewayConfig struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	Channel      string        `mapstructure:"channel"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFailures  uint32        `mapstructure:"max_failures"`
	BreakerReset time.Duration `mapstructure:"breaker_reset"`
}

// RealtimeConfig holds websocket configuration
type RealtimeConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ProjectConfig is a project and its client contact
type ProjectConfig struct {
	ID     int64        `mapstructure:"id"`
	Name   string       `mapstructure:"name"`
	Client ClientConfig `mapstructure:"client"`
}

// ClientConfig is how a project's client is reached
type ClientConfig struct {
	Name       string `mapstructure:"name"`
	Phone      string `mapstructure:"phone"`
	Email      string `mapstructure:"email"`
	LarkChatID string `mapstructure:"lark_chat_id"`
}

// Load reads configuration from the file at configPath, if any, then
// applies environment overrides. Keys map to TASKDOC_ variables, so
// server.port is TASKDOC_SERVER_PORT.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TASKDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 25<<20)

	// SQLite serializes writers; one connection avoids busy errors
	v.SetDefault("database.path", "data/taskdoc.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)

	v.SetDefault("storage.base_dir", "storage")

	v.SetDefault("gateway.channel", "sms")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.max_failures", 3)
	v.SetDefault("gateway.breaker_reset", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 30)
}

// bindEnvVars binds the unprefixed credential variables
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"lark.app_id":     {"TASKDOC_LARK_APP_ID", "LARK_APP_ID"},
		"lark.app_secret": {"TASKDOC_LARK_APP_SECRET", "LARK_APP_SECRET"},
		"gateway.url":     {"TASKDOC_GATEWAY_URL", "GATEWAY_URL"},
		"gateway.token":   {"TASKDOC_GATEWAY_TOKEN", "GATEWAY_TOKEN"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	// Remaining checks live on the container config
	return c.ToContainerConfig().Validate()
}
