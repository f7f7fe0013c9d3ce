package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authormigrate/internal/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.AuthorMap = "users.json"
	cfg.DSN = "file:wp.db"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(logFile, []byte("{}"), 0o600))

	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
	}{
		{
			name:   "valid config",
			modify: func(*Config) {},
		},
		{
			name:   "remote author map",
			modify: func(c *Config) { c.AuthorMap = "https://example.com/users.json" },
		},
		{
			name:        "missing author map",
			modify:      func(c *Config) { c.AuthorMap = "" },
			expectError: true,
		},
		{
			name: "author map not needed for revert",
			modify: func(c *Config) {
				c.AuthorMap = ""
				c.Revert = logFile
			},
		},
		{
			name: "revert and apply together",
			modify: func(c *Config) {
				c.Revert = logFile
				c.Apply = logFile
			},
			expectError: true,
		},
		{
			name:        "revert log missing",
			modify:      func(c *Config) { c.Revert = filepath.Join(t.TempDir(), "missing.json") },
			expectError: true,
		},
		{
			name:        "missing dsn",
			modify:      func(c *Config) { c.DSN = "" },
			expectError: true,
		},
		{
			name:        "unknown driver",
			modify:      func(c *Config) { c.Driver = "oracle" },
			expectError: true,
		},
		{
			name:        "invalid table prefix",
			modify:      func(c *Config) { c.TablePrefix = "wp; DROP" },
			expectError: true,
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.LogFormat = "xml" },
			expectError: true,
		},
		{
			name:        "too many workers",
			modify:      func(c *Config) { c.Workers = 64 },
			expectError: true,
		},
		{
			name:        "negative rate",
			modify:      func(c *Config) { c.Rate = -1 },
			expectError: true,
		},
		{
			name:        "empty default author",
			modify:      func(c *Config) { c.DefaultAuthor = " " },
			expectError: true,
		},
		{
			name: "empty default author with defaulting off",
			modify: func(c *Config) {
				c.DefaultAuthor = ""
				c.SetDefault = false
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if !tt.expectError {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.MigrateError{Type: errors.ErrTypeConfig})
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := validConfig()
	cfg.LogFormat = ""
	cfg.PostType = " "
	cfg.Workers = 0
	cfg.Timeout = 0
	cfg.DefaultAuthor = " admin "

	require.NoError(t, cfg.Validate())

	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, "any", cfg.PostType)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "admin", cfg.DefaultAuthor)
	assert.True(t, filepath.IsAbs(cfg.AuthorMap))
}

func TestReadLocalConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authormigrate.yaml")
	content := `
author_map: https://old.example.com/users.json
default_author: editor
driver: postgres
dsn: postgres://wp@localhost/wp?sslmode=disable
table_prefix: blog_
valid_post_types: [post, page]
workers: 4
timeout: 30s
log_file: run.csv
log_format: csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := ReadLocalConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://old.example.com/users.json", cfg.AuthorMap)
	assert.Equal(t, "editor", cfg.DefaultAuthor)
	assert.True(t, cfg.SetDefault, "keys missing from the file keep their default")
	assert.Equal(t, "any", cfg.PostType)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "blog_", cfg.TablePrefix)
	assert.Equal(t, []string{"post", "page"}, cfg.ValidPostTypes)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, LogFormatCSV, cfg.LogFormat)
	assert.Equal(t, path, cfg.ConfigFile)

	require.NoError(t, cfg.Validate())
}

func TestReadLocalConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadLocalConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workers: [1, 2"), 0o600))
	_, err = ReadLocalConfig(bad)
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{name: "default", config: Config{}, expected: "warn"},
		{name: "verbose", config: Config{Verbose: true}, expected: "info"},
		{name: "debug", config: Config{Debug: true, Verbose: true}, expected: "debug"},
		{name: "quiet overrides debug", config: Config{Debug: true, Quiet: true}, expected: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.LogLevel())
			assert.Equal(t, !tt.config.Quiet, tt.config.ShouldLog())
		})
	}
}

func TestDefaultIdentifier(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1", cfg.DefaultIdentifier())

	cfg.SetDefault = false
	assert.Equal(t, "", cfg.DefaultIdentifier())
}
