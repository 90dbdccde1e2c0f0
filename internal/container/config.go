// Package container provides dependency injection and lifecycle management
// for the task compliance service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/taskdoc/pkg/utils"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Server   ServerConfig
	Lark     LarkConfig
	Gateway  GatewayConfig
	Realtime RealtimeConfig

	// Projects are upserted into the database on start
	Projects []ProjectSeed
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir is the root for task attachments and compliance documents
	BaseDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// LarkConfig holds Lark messaging credentials. Empty credentials disable
// the Lark reminder channel.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

// GatewayConfig holds the SMS/WhatsApp gateway settings. An empty URL
// disables the gateway channel.
type GatewayConfig struct {
	URL          string
	Token        string
	Channel      string
	Timeout      time.Duration
	MaxFailures  uint32
	BreakerReset time.Duration
}

// RealtimeConfig holds websocket settings.
type RealtimeConfig struct {
	AllowedOrigins []string
}

// ProjectSeed is a project and its client contact, loaded from config.
type ProjectSeed struct {
	ID           int64
	Name         string
	ClientName   string
	ClientPhone  string
	ClientEmail  string
	ClientChatID string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/taskdoc.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 0,
		},
		Storage: StorageConfig{
			BaseDir: "storage",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxUploadBytes: 25 << 20,
		},
		Gateway: GatewayConfig{
			Channel:      "sms",
			Timeout:      10 * time.Second,
			MaxFailures:  3,
			BreakerReset: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}
	if c.Gateway.URL != "" && c.Gateway.Channel != "sms" && c.Gateway.Channel != "whatsapp" {
		return fmt.Errorf("gateway.channel must be sms or whatsapp, got %q", c.Gateway.Channel)
	}

	seen := make(map[int64]bool, len(c.Projects))
	for _, p := range c.Projects {
		if p.ID <= 0 {
			return fmt.Errorf("project id must be positive: %d", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate project id: %d", p.ID)
		}
		seen[p.ID] = true
		if utils.SanitizeString(p.Name) == "" {
			return fmt.Errorf("project %d: name is required", p.ID)
		}
		if p.ClientPhone != "" {
			if err := utils.ValidatePhone(p.ClientPhone); err != nil {
				return fmt.Errorf("project %d: %w", p.ID, err)
			}
		}
		if p.ClientEmail != "" {
			if err := utils.ValidateEmail(p.ClientEmail); err != nil {
				return fmt.Errorf("project %d: %w", p.ID, err)
			}
		}
	}

	return nil
}
