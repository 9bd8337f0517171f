package main

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/sfmexport/internal/dataset"
	"github.com/23skdu/sfmexport/internal/nvm"
)

const envPrefix = "SFMEXPORT"

// Config validation errors
var (
	ErrInvalidLogFormat  = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel   = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidTrackCount = errors.New("track_count must be 'nominal' or 'emitted'")
	ErrInvalidOutputName = errors.New("output_name must be a plain file name")
)

// Config is read from SFMEXPORT_* environment variables. Command line flags
// take precedence.
type Config struct {
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string `envconfig:"LOG_FORMAT" default:"console"`
	TrackCount      string `envconfig:"TRACK_COUNT" default:"nominal"`
	Undistorted     bool   `envconfig:"UNDISTORTED" default:"false"`
	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`
	OutputName      string `envconfig:"OUTPUT_NAME" default:"reconstruction.nvm"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		LogFormat:  "console",
		TrackCount: string(nvm.CountNominal),
		OutputName: dataset.DefaultOutputName,
	}
}

// LoadConfig loads envFile into the environment when it exists, without
// overriding variables that are already set, and then processes the
// environment.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if _, err := nvm.ParseTrackCountPolicy(cfg.TrackCount); err != nil {
		return ErrInvalidTrackCount
	}
	name := cfg.OutputName
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsRune(name, '/') {
		return ErrInvalidOutputName
	}
	return nil
}
