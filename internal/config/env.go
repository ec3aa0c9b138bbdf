package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Settings is the process configuration taken from the environment
type Settings struct {
	HAURL     string
	HAToken   string
	ReadOnly  bool
	ConfigDir string
	APIPort   int
	LogLevel  zapcore.Level
	// ResetEntity is an optional input_boolean that triggers a reset of
	// every plugin when switched on.
	ResetEntity string
}

const (
	defaultConfigDir = "./configs"
	defaultAPIPort   = 8081
)

// LoadSettings reads Settings through getenv (normally os.Getenv, after
// godotenv has loaded any .env file).
func LoadSettings(getenv func(string) string) (*Settings, error) {
	s := &Settings{
		HAURL:       getenv("HA_URL"),
		HAToken:     getenv("HA_TOKEN"),
		ReadOnly:    strings.EqualFold(getenv("READ_ONLY"), "true"),
		ConfigDir:   getenv("CONFIG_DIR"),
		ResetEntity: strings.TrimSpace(getenv("RESET_ENTITY")),
		APIPort:     defaultAPIPort,
		LogLevel:    zapcore.InfoLevel,
	}

	if s.HAURL == "" || s.HAToken == "" {
		return nil, errors.New("HA_URL and HA_TOKEN environment variables must be set")
	}
	if s.ConfigDir == "" {
		s.ConfigDir = defaultConfigDir
	}

	if port := getenv("API_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid API_PORT %q", port)
		}
		s.APIPort = p
	}

	if level := getenv("LOG_LEVEL"); level != "" {
		if err := s.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
	}

	return s, nil
}
