// Package config loads and validates the fbdigen YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	ScalarDB     ScalarDBConfig     `yaml:"scalar_db"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	ControlFiles ControlFilesConfig `yaml:"control_files"`
	Generate     GenerateConfig     `yaml:"generate"`
	Log          LogConfig          `yaml:"log"`
}

// ScalarDBConfig holds the connection settings for the database that backs
// "sql"-typed default values. Leaving Type empty disables SQL defaults;
// they then resolve to empty columns.
type ScalarDBConfig struct {
	Type            string `yaml:"type"` // "postgres", "mssql" or "sqlite"
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Database        string `yaml:"database"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`          // postgres: disable, require, verify-ca, verify-full
	TrustServerCert bool   `yaml:"trust_server_cert"` // mssql: trust server certificate
	Path            string `yaml:"path"`              // sqlite: database file path
	QueryTimeout    string `yaml:"query_timeout"`     // e.g. "30s"
}

// CatalogConfig locates the SQLite object catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ControlFilesConfig holds control-file URL composition and fetch settings.
// URLs are composed as prefix + version + suffix + "/" + filename.
type ControlFilesConfig struct {
	URLPrefix    string `yaml:"url_prefix"`
	Version      string `yaml:"version"`
	URLSuffix    string `yaml:"url_suffix"`
	FetchTimeout string `yaml:"fetch_timeout"` // e.g. "30s"
}

// GenerateConfig holds transformation settings.
type GenerateConfig struct {
	Workers         int    `yaml:"workers"`          // parallel mapping groups
	SourceDelimiter string `yaml:"source_delimiter"` // single character, default "|"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a usable configuration without a config file. SQL
// defaults are disabled until a scalar_db section is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ScalarDB.Type == "postgres" && c.ScalarDB.Port == 0 {
		c.ScalarDB.Port = 5432
	}
	if c.ScalarDB.Type == "mssql" && c.ScalarDB.Port == 0 {
		c.ScalarDB.Port = 1433
	}
	if c.ScalarDB.Type == "postgres" && c.ScalarDB.SSLMode == "" {
		c.ScalarDB.SSLMode = "require"
	}
	if c.ScalarDB.QueryTimeout == "" {
		c.ScalarDB.QueryTimeout = "30s"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "fbdigen.db"
	}
	if c.ControlFiles.FetchTimeout == "" {
		c.ControlFiles.FetchTimeout = "30s"
	}
	if c.Generate.Workers <= 0 {
		c.Generate.Workers = 4
	}
	if c.Generate.SourceDelimiter == "" {
		c.Generate.SourceDelimiter = "|"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	switch c.ScalarDB.Type {
	case "", "postgres", "mssql", "sqlite":
	default:
		return fmt.Errorf("scalar_db.type must be postgres, mssql or sqlite, got %q", c.ScalarDB.Type)
	}
	if c.ScalarDB.Type == "sqlite" && c.ScalarDB.Path == "" {
		return fmt.Errorf("scalar_db.path is required for sqlite")
	}
	if (c.ScalarDB.Type == "postgres" || c.ScalarDB.Type == "mssql") && c.ScalarDB.Host == "" {
		return fmt.Errorf("scalar_db.host is required for %s", c.ScalarDB.Type)
	}
	if _, err := time.ParseDuration(c.ScalarDB.QueryTimeout); err != nil {
		return fmt.Errorf("invalid scalar_db.query_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.ControlFiles.FetchTimeout); err != nil {
		return fmt.Errorf("invalid control_files.fetch_timeout: %w", err)
	}
	if n := len([]rune(c.Generate.SourceDelimiter)); n != 1 {
		return fmt.Errorf("generate.source_delimiter must be a single character, got %q", c.Generate.SourceDelimiter)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// QueryTimeoutDuration returns the parsed scalar query timeout.
func (c *ScalarDBConfig) QueryTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// FetchTimeoutDuration returns the parsed control-file fetch timeout.
func (c *ControlFilesConfig) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// DelimiterRune returns the source delimiter as a rune.
func (c *GenerateConfig) DelimiterRune() rune {
	return []rune(c.SourceDelimiter)[0]
}

// Enabled reports whether a scalar query database is configured.
func (c *ScalarDBConfig) Enabled() bool {
	return c.Type != ""
}

// DriverName returns the database/sql driver name for the configured type.
func (c *ScalarDBConfig) DriverName() string {
	switch c.Type {
	case "postgres":
		return "pgx"
	case "mssql":
		return "sqlserver"
	case "sqlite":
		return "sqlite"
	default:
		return ""
	}
}

// DSN builds the connection string for the configured scalar database.
func (c *ScalarDBConfig) DSN() string {
	switch c.Type {
	case "postgres":
		return c.buildPostgresDSN()
	case "mssql":
		return c.buildMSSQLDSN()
	case "sqlite":
		return c.Path
	default:
		return ""
	}
}

// buildPostgresDSN builds a PostgreSQL URL. Credentials and database names
// may contain reserved characters, so each part is escaped individually.
func (c *ScalarDBConfig) buildPostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host, c.Port,
		url.PathEscape(c.Database),
		c.SSLMode)
}

// buildMSSQLDSN builds a SQL Server URL.
func (c *ScalarDBConfig) buildMSSQLDSN() string {
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&TrustServerCertificate=%t",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host, c.Port,
		url.QueryEscape(c.Database),
		c.TrustServerCert)
}
