package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	defaultConfigName   = "config.json"
	defaultLogsDir      = "logs"
	defaultMetricsDir   = "metrics"
	defaultDatabaseFile = "procpilot.db"
)

// DefaultPort is the daemon's API port when the config file sets none.
const DefaultPort = 8642

type Config struct {
	LogsPath     string `json:"logs_path"`
	MetricsPath  string `json:"metrics_path"`
	DatabasePath string `json:"database_path"`
	Port         int    `json:"port"`
}

func LoadConfig(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, defaultConfigName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return createDefaultConfig(configPath, configDir)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	return &cfg, nil
}

func createDefaultConfig(configPath, configDir string) (*Config, error) {
	cfg := Config{
		LogsPath:     filepath.Join(configDir, defaultLogsDir),
		MetricsPath:  filepath.Join(configDir, defaultMetricsDir),
		DatabasePath: filepath.Join(configDir, defaultDatabaseFile),
		Port:         DefaultPort,
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return nil, err
	}

	return &cfg, nil
}
