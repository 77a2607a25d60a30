package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// configDir is searched for config.yaml when cfgFile is empty.
func NewManager(cfgFile, configDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile, configDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload errors.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		cm.logger = logger
	}
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, configDir string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	// Environment variables with BINDER_ prefix, e.g. BINDER_FLATTEN_ENGINE
	v.SetEnvPrefix("BINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if configDir != "" {
			v.AddConfigPath(configDir)
		}
		v.AddConfigPath("$HOME/.binder")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("layout.merge", d.Layout.Merge)
	v.SetDefault("layout.blank_page", d.Layout.BlankPage)
	v.SetDefault("layout.flatten", d.Layout.Flatten)
	v.SetDefault("layout.orientation", string(d.Layout.Orientation))
	v.SetDefault("layout.format", d.Layout.Format)
	v.SetDefault("layout.position.horizontal", string(d.Layout.Position.Horizontal))
	v.SetDefault("layout.position.vertical", string(d.Layout.Position.Vertical))
	v.SetDefault("layout.margin", d.Layout.Margin)
	v.SetDefault("layout.font_size", d.Layout.FontSize)
	v.SetDefault("layout.auto_update", d.Layout.AutoUpdate)

	v.SetDefault("flatten.engine", d.Flatten.Engine)
	v.SetDefault("flatten.ghostscript_path", d.Flatten.GhostscriptPath)
	v.SetDefault("flatten.docker_image", d.Flatten.DockerImage)
	v.SetDefault("flatten.timeout_seconds", d.Flatten.TimeoutSeconds)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Layout = cfg.Layout.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// File returns the config file in use, or "" when running on defaults.
func (cm *Manager) File() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An edit that fails to
// parse or validate is logged and the previous configuration is kept.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Error("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Binder configuration
# Every key can be overridden with a BINDER_ environment variable,
# e.g. BINDER_FLATTEN_ENGINE=docker or BINDER_LAYOUT_MARGIN=20

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
