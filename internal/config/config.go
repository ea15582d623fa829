package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Index   IndexConfig   `mapstructure:"index"`
	Extract ExtractConfig `mapstructure:"extract"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig contains path-related configuration
type PathsConfig struct {
	InstallPath string `mapstructure:"install_path"`
	LogFile     string `mapstructure:"log_file"`
}

// IndexConfig contains package index configuration
type IndexConfig struct {
	URL       string `mapstructure:"url"`
	VerifyTLS bool   `mapstructure:"verify_tls"`
}

// ExtractConfig contains archive extraction configuration
type ExtractConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("toml")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "upip"))
	}
	v.AddConfigPath(".")

	return load(v)
}

// LoadFile loads configuration from an explicit file plus the environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Environment variable overrides
	v.SetEnvPrefix("UPIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Extract.BufferSize <= 0 {
		return nil, fmt.Errorf("invalid extract.buffer_size %d: must be positive", cfg.Extract.BufferSize)
	}

	cfg.Paths.InstallPath = expandPath(cfg.Paths.InstallPath)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = "."
	}

	v.SetDefault("paths.install_path", "")
	v.SetDefault("paths.log_file", filepath.Join(homeDir, ".local", "share", "upip", "upip.log"))

	v.SetDefault("index.url", "https://pypi.org/pypi")
	v.SetDefault("index.verify_tls", false)

	v.SetDefault("extract.buffer_size", 512)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.color", "auto")
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
