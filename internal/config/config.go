// Package config holds the runtime settings of a migration run. Values come
// from defaults, an optional YAML file and command-line flags, in that order,
// and are checked once by Validate before anything touches the host.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	structValidator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"authormigrate/internal/errors"
	"authormigrate/internal/filter"
	"authormigrate/internal/parser"
)

// LogFormat is the format of the entry log.
type LogFormat string

// Supported entry log formats.
const (
	LogFormatJSON LogFormat = "json"
	LogFormatCSV  LogFormat = "csv"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
	DriverMongo    = "mongo"
)

// Defaults applied by Default.
const (
	DefaultAuthor      = "1"
	DefaultDriver      = DriverSQLite
	DefaultTablePrefix = "wp_"
	DefaultTimeout     = 10 * time.Second
)

var tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Config holds every option of a run.
type Config struct {
	AuthorMap      string        `yaml:"author_map"`
	DefaultAuthor  string        `yaml:"default_author"`
	SetDefault     bool          `yaml:"set_default"`
	PostType       string        `yaml:"post_type"`
	Driver         string        `yaml:"driver" validate:"required,oneof=postgres pgx sqlite3 mongo"`
	DSN            string        `yaml:"dsn"`
	TablePrefix    string        `yaml:"table_prefix" validate:"max=64"`
	ValidPostTypes []string      `yaml:"valid_post_types" validate:"dive,required"`
	DryRun         bool          `yaml:"dry_run"`
	Workers        int           `yaml:"workers" validate:"gte=0,lte=16"`
	Rate           float64       `yaml:"rate" validate:"gte=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gte=0"`
	LogFile        string        `yaml:"log_file"`
	LogFormat      LogFormat     `yaml:"log_format" validate:"omitempty,oneof=json csv"`
	MetricsFile    string        `yaml:"metrics_file"`
	Revert         string        `yaml:"-"`
	Apply          string        `yaml:"-"`
	Verbose        bool          `yaml:"verbose"`
	Debug          bool          `yaml:"debug"`
	Quiet          bool          `yaml:"quiet"`
	ConfigFile     string        `yaml:"-"`
}

// Default returns a Config carrying the documented defaults.
func Default() *Config {
	return &Config{
		DefaultAuthor: DefaultAuthor,
		SetDefault:    true,
		PostType:      filter.AnyType,
		Driver:        DefaultDriver,
		TablePrefix:   DefaultTablePrefix,
		Workers:       1,
		Timeout:       DefaultTimeout,
		LogFormat:     LogFormatJSON,
	}
}

// ReadLocalConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default value.
func ReadLocalConfig(configPath string) (*Config, error) {
	cfg := Default()

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.NewConfigErrorWithPath(configPath, "unable to read config file", err)
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, errors.NewConfigErrorWithPath(configPath, "invalid config file", err)
	}

	cfg.ConfigFile = configPath
	return cfg, nil
}

// Validate checks the settings and fills in derived values.
func (c *Config) Validate() error {
	if err := c.validateMode(); err != nil {
		return err
	}

	if err := c.validateAuthorMap(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if c.SetDefault && strings.TrimSpace(c.DefaultAuthor) == "" && c.isMigration() {
		return errors.NewConfigError("default author is required unless --set-default=false", nil)
	}

	if err := structValidator.New().Struct(c); err != nil {
		return errors.NewConfigError("invalid configuration", err)
	}

	c.normalizeConfig()
	return nil
}

func (c *Config) validateMode() error {
	if c.Revert != "" && c.Apply != "" {
		return errors.NewConfigError("--revert and --apply cannot be used together", nil)
	}

	for _, path := range []string{c.Revert, c.Apply} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return errors.NewConfigErrorWithPath(path, "log file not found", err)
		}
	}
	return nil
}

func (c *Config) validateAuthorMap() error {
	if !c.isMigration() {
		return nil
	}

	if strings.TrimSpace(c.AuthorMap) == "" {
		return errors.NewConfigError("author map is required", nil)
	}

	if parser.IsRemote(c.AuthorMap) {
		return nil
	}

	abs, err := filepath.Abs(c.AuthorMap)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.AuthorMap, "invalid author map path", err)
	}
	c.AuthorMap = abs
	return nil
}

func (c *Config) validateStore() error {
	if c.DSN == "" {
		return errors.NewConfigError("a data source name is required (use --dsn)", nil)
	}

	if !tablePrefixPattern.MatchString(c.TablePrefix) {
		return errors.NewConfigError("table prefix may only contain letters, digits and underscores", nil)
	}
	return nil
}

func (c *Config) normalizeConfig() {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if strings.TrimSpace(c.PostType) == "" {
		c.PostType = filter.AnyType
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	c.DefaultAuthor = strings.TrimSpace(c.DefaultAuthor)
}

func (c *Config) isMigration() bool {
	return c.Revert == "" && c.Apply == ""
}

// IsRevert reports whether the run restores authors from a log.
func (c *Config) IsRevert() bool {
	return c.Revert != ""
}

// IsApply reports whether the run replays authors from a log.
func (c *Config) IsApply() bool {
	return c.Apply != ""
}

// IsVerbose reports whether verbose logging is on. Quiet wins.
func (c *Config) IsVerbose() bool {
	return c.Verbose && !c.Quiet
}

// IsDebug reports whether debug logging is on. Quiet wins.
func (c *Config) IsDebug() bool {
	return c.Debug && !c.Quiet
}

// ShouldLog reports whether any output besides errors should be written.
func (c *Config) ShouldLog() bool {
	return !c.Quiet
}

// LogLevel maps the verbosity flags to a logging level name.
func (c *Config) LogLevel() string {
	switch {
	case c.Quiet:
		return "error"
	case c.IsDebug():
		return "debug"
	case c.IsVerbose():
		return "info"
	default:
		return "warn"
	}
}

// DefaultIdentifier returns the default author identifier, or "" when
// defaulting is disabled.
func (c *Config) DefaultIdentifier() string {
	if !c.SetDefault {
		return ""
	}
	return c.DefaultAuthor
}
