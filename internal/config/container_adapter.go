package config

import (
	"github.com/garyjia/taskdoc/internal/container"
	"github.com/garyjia/taskdoc/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	projects := make([]container.ProjectSeed, 0, len(c.Projects))
	for _, p := range c.Projects {
		projects = append(projects, container.ProjectSeed{
			ID:           p.ID,
			Name:         p.Name,
			ClientName:   p.Client.Name,
			ClientPhone:  p.Client.Phone,
			ClientEmail:  p.Client.Email,
			ClientChatID: p.Client.LarkChatID,
		})
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Storage: container.StorageConfig{
			BaseDir: c.Storage.BaseDir,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Gateway: container.GatewayConfig{
			URL:          c.Gateway.URL,
			Token:        c.Gateway.Token,
			Channel:      c.Gateway.Channel,
			Timeout:      c.Gateway.Timeout,
			MaxFailures:  c.Gateway.MaxFailures,
			BreakerReset: c.Gateway.BreakerReset,
		},
		Realtime: container.RealtimeConfig{
			AllowedOrigins: c.Realtime.AllowedOrigins,
		},
		Projects: projects,
	}
}

// LoggerSettings converts the logger settings for utils.NewLogger.
func (c *Config) LoggerSettings() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		MaxSizeMB:  c.Logger.MaxSizeMB,
		MaxBackups: c.Logger.MaxBackups,
		MaxAgeDays: c.Logger.MaxAgeDays,
		Compress:   c.Logger.Compress,
	}
}
