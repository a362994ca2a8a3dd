package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIBaseURL      string `yaml:"apiBaseURL"`
	SearchBaseURL   string `yaml:"searchBaseURL"`
	SearchAPIKey    string `yaml:"searchApiKey"`
	LogLevel        string `yaml:"logLevel"`
	RequestTimeout  string `yaml:"requestTimeout"`
	StoragePath     string `yaml:"storagePath"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	ErrorClearAfter string `yaml:"errorClearAfter"`
	CartFlushDelay  string `yaml:"cartFlushDelay"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("BOOKMART_API_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKMART_SEARCH_URL"); v != "" {
		cfg.SearchBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKMART_SEARCH_API_KEY"); v != "" {
		cfg.SearchAPIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKMART_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("BOOKMART_STORAGE_PATH"); v != "" {
		cfg.StoragePath = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return errors.New("config: apiBaseURL is required (set in config.yaml or BOOKMART_API_URL)")
	}
	if strings.TrimSpace(cfg.StoragePath) == "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: storagePath or redisAddr is required for the credential store")
	}
	return nil
}

// ParseDuration parses an optional duration field, falling back when
// the field is empty.
func ParseDuration(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return dur, nil
}
