// Package config loads gobby settings from config file, environment, and
// defaults, in that order of increasing precedence for the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DataDirName is the per-repository data directory holding the database,
// the JSONL file, and the config.
const DataDirName = ".gobby"

// Config holds all runtime settings.
type Config struct {
	// ProjectID identifies this project in task records. Defaults to the
	// name of the working directory.
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`

	// IDPrefix is the prefix of generated task identifiers.
	IDPrefix string `yaml:"id_prefix" mapstructure:"id_prefix"`

	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`

	// ExportPath is the JSONL interchange file location.
	ExportPath string `yaml:"export_path" mapstructure:"export_path"`

	// FlushInterval is the debounce window for automatic exports.
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
}

// Default returns the built-in settings rooted at dir.
func Default(dir string) Config {
	return Config{
		ProjectID:     filepath.Base(dir),
		IDPrefix:      "gb",
		DBPath:        filepath.Join(dir, DataDirName, "gobby.db"),
		ExportPath:    filepath.Join(dir, DataDirName, "tasks.jsonl"),
		FlushInterval: 5 * time.Second,
	}
}

// Load reads config.yaml from dir's data directory if present, then applies
// GOBBY_* environment overrides (GOBBY_PROJECT_ID, GOBBY_DB_PATH, ...).
func Load(dir string) (Config, error) {
	def := Default(dir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(dir, DataDirName))
	v.SetEnvPrefix("GOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("project_id", def.ProjectID)
	v.SetDefault("id_prefix", def.IDPrefix)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("export_path", def.ExportPath)
	v.SetDefault("flush_interval", def.FlushInterval)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks for settings that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id must not be empty")
	}
	if c.IDPrefix == "" {
		return fmt.Errorf("id_prefix must not be empty")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive (got %s)", c.FlushInterval)
	}
	return nil
}

// WriteDefault creates the data directory and writes a commented starter
// config.yaml. Fails if the file already exists.
func WriteDefault(dir string) (string, error) {
	dataDir := filepath.Join(dir, DataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dataDir, err)
	}

	path := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s already exists", path)
	}

	out, err := yaml.Marshal(Default(dir))
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	header := "# gobby configuration. Environment variables with the GOBBY_ prefix\n# override these values, e.g. GOBBY_PROJECT_ID.\n"
	if err := os.WriteFile(path, append([]byte(header), out...), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
