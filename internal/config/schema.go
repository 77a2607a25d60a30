package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackzampolin/binder/internal/flatten"
	"github.com/jackzampolin/binder/internal/layout"
)

// Config holds binder configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Layout  layout.Config `mapstructure:"layout" yaml:"layout"`
	Flatten FlattenConfig `mapstructure:"flatten" yaml:"flatten"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// FlattenConfig selects the Ghostscript engine.
type FlattenConfig struct {
	Engine          string `mapstructure:"engine" yaml:"engine"`                     // auto, local, docker, off
	GhostscriptPath string `mapstructure:"ghostscript_path" yaml:"ghostscript_path"` // skips discovery when set
	DockerImage     string `mapstructure:"docker_image" yaml:"docker_image"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // 0 means no limit
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Layout: layout.DefaultConfig(),
		Flatten: FlattenConfig{
			Engine:         flatten.EngineAuto,
			DockerImage:    flatten.DefaultImage,
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	switch c.Flatten.Engine {
	case flatten.EngineAuto, flatten.EngineLocal, flatten.EngineDocker, flatten.EngineOff:
	default:
		return fmt.Errorf("flatten: unknown engine %q", c.Flatten.Engine)
	}
	if c.Flatten.TimeoutSeconds < 0 {
		return fmt.Errorf("flatten: timeout_seconds must be non-negative, got %d", c.Flatten.TimeoutSeconds)
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("server: invalid port %q", c.Server.Port)
	}
	return nil
}

// FlattenerConfig converts the flatten section for flatten.New.
func (c *Config) FlattenerConfig(scratchDir string, logger *slog.Logger) flatten.Config {
	return flatten.Config{
		Engine:          c.Flatten.Engine,
		GhostscriptPath: c.Flatten.GhostscriptPath,
		DockerImage:     c.Flatten.DockerImage,
		Timeout:         time.Duration(c.Flatten.TimeoutSeconds) * time.Second,
		ScratchDir:      scratchDir,
		Logger:          logger,
	}
}
