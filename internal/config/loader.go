package config

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Loader manages configuration file loading
type Loader struct {
	configDir     string
	logger        *zap.Logger
	heatingConfig *HeatingConfig
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// LoadAll loads all configuration files
func (l *Loader) LoadAll() error {
	l.logger.Info("Loading configuration files", zap.String("dir", l.configDir))

	if err := l.LoadHeatingConfig(); err != nil {
		return fmt.Errorf("failed to load heating config: %w", err)
	}

	l.logger.Info("All configuration files loaded successfully")
	return nil
}

// LoadHeatingConfig loads and validates heating_config.yaml
func (l *Loader) LoadHeatingConfig() error {
	path := filepath.Join(l.configDir, HeatingConfigFile)
	l.logger.Debug("Loading heating config", zap.String("path", path))

	cfg, err := LoadHeatingConfig(path)
	if err != nil {
		return err
	}

	l.heatingConfig = cfg
	l.logger.Info("Heating config loaded successfully",
		zap.Int("rooms", len(cfg.Heating.Rooms)),
		zap.Float64("hysteresis", cfg.HysteresisValue()))
	return nil
}

// GetHeatingConfig returns the last loaded heating config, or nil
func (l *Loader) GetHeatingConfig() *HeatingConfig {
	return l.heatingConfig
}
