package config

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFSName   = "versfs"
	DefaultLogLevel = "info"
)

// Config is the mount configuration. Command-line arguments and flags
// take precedence over values read from a file.
type Config struct {
	Storage     string `yaml:"storage"`               // absolute path of the backing directory
	Mountpoint  string `yaml:"mountpoint,omitempty"`  // absolute path the filesystem is mounted at
	FSName      string `yaml:"fsname,omitempty"`      // name reported in the mount table
	AllowOther  bool   `yaml:"allowOther,omitempty"`  // let other users access the mount
	LogLevel    string `yaml:"logLevel,omitempty"`    // debug, info, warn or error
	MetricsAddr string `yaml:"metricsAddr,omitempty"` // serve prometheus metrics here when set
}

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrStorageMissing           = errors.New("storage is missing in config")
	ErrStorageRelative          = errors.New("storage must be an absolute path")
	ErrMountpointRelative       = errors.New("mountpoint must be an absolute path")
	ErrLogLevelInvalid          = errors.New("logLevel must be one of debug, info, warn, error")
)

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		FSName:   DefaultFSName,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads a YAML config file. Fields the file leaves out keep their
// defaults. The result is not validated.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WithMessage(ErrConfigFileUnreadable, err.Error())
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithMessage(ErrConfigFileUnmarshallable, err.Error())
	}
	return cfg, nil
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	if c.Storage == "" {
		return ErrStorageMissing
	}
	if !filepath.IsAbs(c.Storage) {
		return ErrStorageRelative
	}
	if c.Mountpoint != "" && !filepath.IsAbs(c.Mountpoint) {
		return ErrMountpointRelative
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return ErrLogLevelInvalid
	}
	return nil
}

// Level returns the configured log level, info if it does not parse.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Save writes c to path as YAML.
func (c *Config) Save(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrapf(afero.WriteFile(fs, path, data, 0o644), "write config %s", path)
}
