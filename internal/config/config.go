package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sternelee/fleet-chat/internal/logger"
)

// Config holds packaging settings.
type Config struct {
	// FleetChatVersion is the host compatibility version sealed into metadata.json.
	FleetChatVersion string `yaml:"fleet_chat_version"`
	// CompressionLevel is the deflate level used for archive entries (-2..9).
	CompressionLevel int `yaml:"compression_level"`
	// StagingDir is the name of the staging directory created inside the plugin directory.
	StagingDir string `yaml:"staging_dir"`
	// LogLevel is the minimum level of progress messages.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "fleet-pack.yaml"

	// DefaultFleetChatVersion is the host version targeted when none is configured.
	DefaultFleetChatVersion = "1.0.0"

	// DefaultStagingDir is the staging directory created inside the plugin directory.
	DefaultStagingDir = ".fleet-pack"

	// DefaultLogLevel is the level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the permission for saved settings files.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet       = errors.New("configuration is not set")
	errBadFleetChatVersion  = errors.New("fleet chat version must look like MAJOR.MINOR.PATCH")
	errBadCompressionLevel  = errors.New("compression level must be between -2 and 9")
	errBadStagingDir        = errors.New("staging dir must be a plain directory name")
	errUnknownLogLevel      = errors.New("unknown log level")
	fleetChatVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?$`)
)

// Default returns settings with every field at its default.
func Default() *Config {
	return &Config{
		FleetChatVersion: DefaultFleetChatVersion,
		CompressionLevel: flate.DefaultCompression,
		StagingDir:       DefaultStagingDir,
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads settings from path. Keys absent from the file keep their defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := afero.ReadFile(fs, filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns defaults when the file does not exist.
func LoadOrDefault(fs afero.Fs, path string) (*Config, error) {
	cfg, err := Load(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Resolve loads the settings file at path, or fleet-pack.yaml when path is empty.
// Only the implicit file may be absent, in which case defaults are returned.
func Resolve(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		return LoadOrDefault(fs, DefaultConfigFilename)
	}

	return Load(fs, path)
}

// Save writes settings to path.
func Save(fs afero.Fs, path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = afero.WriteFile(fs, filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty string settings with defaults and rejects malformed values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.FleetChatVersion == "" {
		cfg.FleetChatVersion = DefaultFleetChatVersion
	}

	if !fleetChatVersionPattern.MatchString(cfg.FleetChatVersion) {
		return fmt.Errorf("%w: %q", errBadFleetChatVersion, cfg.FleetChatVersion)
	}

	if cfg.CompressionLevel < flate.HuffmanOnly || cfg.CompressionLevel > flate.BestCompression {
		return fmt.Errorf("%w: %d", errBadCompressionLevel, cfg.CompressionLevel)
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDir
	}

	if cfg.StagingDir == "." || cfg.StagingDir == ".." ||
		strings.ContainsAny(cfg.StagingDir, `/\`) {
		return fmt.Errorf("%w: %q", errBadStagingDir, cfg.StagingDir)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	return nil
}
