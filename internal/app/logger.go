package app

import (
	"github.com/modelgate/modelgate/pkg/logger"
)

// ConfigureLogging initializes the global logger from the server config.
func ConfigureLogging(cfg *Config) error {
	return logger.Init(cfg.Server.LogLevel)
}
