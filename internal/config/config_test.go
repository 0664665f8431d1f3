package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMSSQLDSNURLEncoding(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		database string
		wantUser string
		wantPass string
		wantDB   string
	}{
		{
			name:     "plain credentials",
			user:     "admin",
			password: "secret",
			database: "mydb",
			wantUser: "admin",
			wantPass: "secret",
			wantDB:   "mydb",
		},
		{
			name:     "password with @",
			user:     "admin",
			password: "pass@word",
			database: "mydb",
			wantUser: "admin",
			wantPass: "pass%40word",
			wantDB:   "mydb",
		},
		{
			name:     "password with colon",
			user:     "admin",
			password: "pass:word",
			database: "mydb",
			wantUser: "admin",
			wantPass: "pass%3Aword",
			wantDB:   "mydb",
		},
		{
			name:     "password with slash",
			user:     "admin",
			password: "pass/word",
			database: "mydb",
			wantUser: "admin",
			wantPass: "pass%2Fword",
			wantDB:   "mydb",
		},
		{
			name:     "user with @",
			user:     "user@domain",
			password: "secret",
			database: "mydb",
			wantUser: "user%40domain",
			wantPass: "secret",
			wantDB:   "mydb",
		},
		{
			name:     "database with spaces",
			user:     "admin",
			password: "secret",
			database: "my database",
			wantUser: "admin",
			wantPass: "secret",
			wantDB:   "my+database", // QueryEscape uses + for spaces
		},
		{
			name:     "complex password",
			user:     "admin",
			password: "P@ss:w/rd?123",
			database: "mydb",
			wantUser: "admin",
			wantPass: "P%40ss%3Aw%2Frd%3F123",
			wantDB:   "mydb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ScalarDBConfig{
				Type:     "mssql",
				Host:     "localhost",
				Port:     1433,
				Database: tt.database,
				User:     tt.user,
				Password: tt.password,
			}
			dsn := cfg.buildMSSQLDSN()

			if !strings.Contains(dsn, tt.wantUser+":") {
				t.Errorf("MSSQL DSN missing encoded user %q in %q", tt.wantUser, dsn)
			}
			if !strings.Contains(dsn, ":"+tt.wantPass+"@") {
				t.Errorf("MSSQL DSN missing encoded password %q in %q", tt.wantPass, dsn)
			}
			if !strings.Contains(dsn, "database="+tt.wantDB) {
				t.Errorf("MSSQL DSN missing encoded database %q in %q", tt.wantDB, dsn)
			}
		})
	}
}

func TestPostgresDSNURLEncoding(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		database string
		wantUser string
		wantPass string
		wantDB   string
	}{
		{
			name:     "plain credentials",
			user:     "admin",
			password: "secret",
			database: "mydb",
			wantUser: "admin",
			wantPass: "secret",
			wantDB:   "mydb",
		},
		{
			name:     "password with @",
			user:     "admin",
			password: "pass@word",
			database: "mydb",
			wantUser: "admin",
			wantPass: "pass%40word",
			wantDB:   "mydb",
		},
		{
			name:     "password with colon",
			user:     "admin",
			password: "pass:word",
			database: "mydb",
			wantUser: "admin",
			wantPass: "pass%3Aword",
			wantDB:   "mydb",
		},
		{
			name:     "database with spaces",
			user:     "admin",
			password: "secret",
			database: "my database",
			wantUser: "admin",
			wantPass: "secret",
			wantDB:   "my%20database", // PathEscape uses %20 for spaces
		},
		{
			name:     "complex password",
			user:     "admin",
			password: "P@ss:w/rd?123",
			database: "mydb",
			wantUser: "admin",
			wantPass: "P%40ss%3Aw%2Frd%3F123",
			wantDB:   "mydb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ScalarDBConfig{
				Type:     "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: tt.database,
				User:     tt.user,
				Password: tt.password,
				SSLMode:  "disable",
			}
			dsn := cfg.buildPostgresDSN()

			if !strings.Contains(dsn, tt.wantUser+":") {
				t.Errorf("Postgres DSN missing encoded user %q in %q", tt.wantUser, dsn)
			}
			if !strings.Contains(dsn, ":"+tt.wantPass+"@") {
				t.Errorf("Postgres DSN missing encoded password %q in %q", tt.wantPass, dsn)
			}
			if !strings.Contains(dsn, "/"+tt.wantDB+"?") {
				t.Errorf("Postgres DSN missing encoded database %q in %q", tt.wantDB, dsn)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
scalar_db:
  type: postgres
  host: db.example.com
  database: fusion
  user: fbdi
  password: secret
catalog:
  path: /var/lib/fbdigen/catalog.db
control_files:
  url_prefix: https://downloads.example.com/fbdi/
  version: 24C
  url_suffix: /controlfiles
generate:
  workers: 8
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ScalarDB.Port != 5432 {
		t.Errorf("default postgres port not applied, got %d", cfg.ScalarDB.Port)
	}
	if cfg.ScalarDB.SSLMode != "require" {
		t.Errorf("default sslmode not applied, got %q", cfg.ScalarDB.SSLMode)
	}
	if cfg.Generate.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Generate.Workers)
	}
	if cfg.Generate.SourceDelimiter != "|" {
		t.Errorf("default delimiter not applied, got %q", cfg.Generate.SourceDelimiter)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log config = %+v", cfg.Log)
	}
	if cfg.ControlFiles.Version != "24C" {
		t.Errorf("Version = %q", cfg.ControlFiles.Version)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "unknown scalar db type",
			mutate:  func(c *Config) { c.ScalarDB.Type = "oracle" },
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.ScalarDB.Type = "sqlite" },
			wantErr: true,
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.ScalarDB.Type = "postgres" },
			wantErr: true,
		},
		{
			name:    "bad query timeout",
			mutate:  func(c *Config) { c.ScalarDB.QueryTimeout = "soon" },
			wantErr: true,
		},
		{
			name:    "multi-character delimiter",
			mutate:  func(c *Config) { c.Generate.SourceDelimiter = "||" },
			wantErr: true,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDriverName(t *testing.T) {
	tests := []struct {
		dbType   string
		expected string
	}{
		{"postgres", "pgx"},
		{"mssql", "sqlserver"},
		{"sqlite", "sqlite"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			cfg := &ScalarDBConfig{Type: tt.dbType}
			if got := cfg.DriverName(); got != tt.expected {
				t.Errorf("DriverName() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSQLiteDSNIsPath(t *testing.T) {
	cfg := &ScalarDBConfig{Type: "sqlite", Path: "/tmp/lookups.db"}
	if got := cfg.DSN(); got != "/tmp/lookups.db" {
		t.Errorf("DSN() = %q, want the file path", got)
	}
}
