package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/munchie/internal/derive"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Library LibraryConfig     `yaml:"library"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Scan    ScanConfig        `yaml:"scan"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Scan.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig locates the models directory and the collection store file.
type LibraryConfig struct {
	ModelsDir       string `yaml:"models_dir"`
	CollectionsFile string `yaml:"collections_file"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ModelsDir, validation.Required),
		validation.Field(&c.CollectionsFile, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ScanConfig holds folder scan and hashing defaults.
type ScanConfig struct {
	DefaultStrategy string `yaml:"default_strategy"`
	ClearPrevious   bool   `yaml:"clear_previous"`
	HashWorkers     int    `yaml:"hash_workers"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = string(derive.StrategySmart)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultStrategy, validation.In(
			string(derive.StrategySmart), string(derive.StrategyStrict), string(derive.StrategyTopLevel))),
		validation.Field(&c.HashWorkers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// Strategy returns the configured default as a derive.Strategy.
func (c *ScanConfig) Strategy() derive.Strategy {
	return derive.Strategy(c.DefaultStrategy)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			ModelsDir:       "./models",
			CollectionsFile: "./data/collections.json",
		},
		SQLite: SQLiteConfig{
			Path: "./data/munchie.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Scan: ScanConfig{
			DefaultStrategy: string(derive.StrategySmart),
			HashWorkers:     4,
		},
	}
}
