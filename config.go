package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// adminPasswordEnv overrides seed.admin_password when set.
const adminPasswordEnv = "SHEETBRIDGE_ADMIN_PASSWORD"

// AppConfig holds the TOML-driven application configuration.
type AppConfig struct {
	Store    StoreConfig `toml:"store"`
	Seed     SeedSection `toml:"seed"`
	Hooks    HooksConfig `toml:"hooks"`
	LogLevel string      `toml:"log_level"` // debug|info|warn|error
	// TestTimeout bounds a data source connection test, e.g. "10s".
	TestTimeout string `toml:"test_timeout"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir   string
	backend     BackendKind
	testTimeout time.Duration
}

// StoreConfig identifies the application database.
type StoreConfig struct {
	Type string `toml:"type"` // sqlite|mysql|postgres|sqlserver|oracle
	DSN  string `toml:"dsn"`
}

// SeedSection configures the reference data written on first start.
type SeedSection struct {
	AdminUsername     string `toml:"admin_username"`
	AdminPassword     string `toml:"admin_password"`
	DefaultSourceName string `toml:"default_source_name"`
	BcryptCost        int    `toml:"bcrypt_cost"`
}

// HooksConfig lists SQL files run after the schema is ready.
type HooksConfig struct {
	AfterInit []string `toml:"after_init"`
}

// loadConfig reads a TOML config file and returns an AppConfig with defaults applied.
func loadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := AppConfig{
		Seed: SeedSection{
			AdminUsername:     "admin",
			DefaultSourceName: "Local",
		},
		LogLevel:    "info",
		TestTimeout: "10s",
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrInvalidConfiguration, err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, configError("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if pw, ok := os.LookupEnv(adminPasswordEnv); ok && pw != "" {
		cfg.Seed.AdminPassword = pw
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Store.Type == "" {
		return configError("store.type is required (must be sqlite, mysql, postgres, sqlserver or oracle)")
	}
	kind, err := parseBackendKind(c.Store.Type)
	if err != nil {
		return err
	}
	c.backend = kind

	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		return configError("store.dsn is required")
	}
	// Relative SQLite paths are relative to the config file, like hook files.
	if kind == BackendSQLite {
		if p, ok := sqliteFilePath(c.Store.DSN); ok && !filepath.IsAbs(p) && !strings.HasPrefix(c.Store.DSN, "file:") {
			c.Store.DSN = c.resolvePath(c.Store.DSN)
		}
	}

	c.Seed.AdminUsername = strings.TrimSpace(c.Seed.AdminUsername)
	if c.Seed.AdminUsername == "" {
		return configError("seed.admin_username must not be empty")
	}
	c.Seed.DefaultSourceName = strings.TrimSpace(c.Seed.DefaultSourceName)
	if c.Seed.DefaultSourceName == "" {
		return configError("seed.default_source_name must not be empty")
	}
	if c.Seed.BcryptCost != 0 && (c.Seed.BcryptCost < 4 || c.Seed.BcryptCost > 31) {
		return configError("seed.bcrypt_cost must be between 4 and 31")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return configError("log_level must be one of: debug, info, warn, error")
	}

	d, err := time.ParseDuration(c.TestTimeout)
	if err != nil || d <= 0 {
		return configError("test_timeout must be a positive duration")
	}
	c.testTimeout = d
	return nil
}

// seedConfig is the seed input for the initializer. The default data source
// points at the application database itself.
func (c *AppConfig) seedConfig() SeedConfig {
	return SeedConfig{
		AdminUsername:     c.Seed.AdminUsername,
		AdminPassword:     c.Seed.AdminPassword,
		DefaultSourceName: c.Seed.DefaultSourceName,
		DefaultSourceKind: c.backend,
		DefaultSourceDSN:  c.Store.DSN,
		BcryptCost:        c.Seed.BcryptCost,
	}
}

// resolvePath resolves a path relative to the config file directory.
func (c *AppConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}
