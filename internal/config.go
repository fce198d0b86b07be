package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Editor EditorConfig      `yaml:"editor"`
	Render RenderConfig      `yaml:"render"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Render.Validate()
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

// VaultConfig holds the Markdown mirror settings. Path is only required
// when the mirror is enabled.
type VaultConfig struct {
	Path   string `yaml:"path"`
	Mirror bool   `yaml:"mirror"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Mirror, validation.Required)),
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

// EditorConfig holds suggestion session settings.
type EditorConfig struct {
	// Trigger opens a session offering memos and tags.
	Trigger string `yaml:"trigger"`
	// TagTrigger, when set, opens a session offering tags only.
	TagTrigger        string `yaml:"tag_trigger"`
	CandidateLimit    int    `yaml:"candidate_limit"`
	CandidatePool     int    `yaml:"candidate_pool"`
	DefaultVisibility string `yaml:"default_visibility"`
}

var errSingleRune = errors.New("must be a single character")

func singleRune(value any) error {
	s, _ := value.(string)
	if s != "" && utf8.RuneCountInString(s) != 1 {
		return errSingleRune
	}
	return nil
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Trigger, validation.Required, validation.By(singleRune)),
		validation.Field(&c.TagTrigger, validation.By(singleRune)),
		validation.Field(&c.CandidateLimit, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.CandidatePool, validation.Min(0), validation.Max(10000)),
		validation.Field(&c.DefaultVisibility, validation.In(
			string(models.Public), string(models.Protected), string(models.Private))),
	)
}

// RenderConfig holds view path settings.
type RenderConfig struct {
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	PreviewLength int           `yaml:"preview_length"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.PreviewLength, validation.Min(0)),
	)
}

// Service returns the memo service settings described by the configuration.
func (c *Config) Service() memoservice.Config {
	cfg := memoservice.DefaultConfig()
	cfg.Trigger, _ = utf8.DecodeRuneInString(c.Editor.Trigger)
	if c.Editor.TagTrigger != "" {
		cfg.TagTrigger, _ = utf8.DecodeRuneInString(c.Editor.TagTrigger)
	}
	cfg.CandidateLimit = c.Editor.CandidateLimit
	if c.Editor.CandidatePool > 0 {
		cfg.CandidatePool = c.Editor.CandidatePool
	}
	if c.Editor.DefaultVisibility != "" {
		cfg.DefaultVisibility = models.Visibility(c.Editor.DefaultVisibility)
	}
	cfg.CacheTTL = c.Render.CacheTTL
	cfg.PreviewLength = c.Render.PreviewLength
	return cfg
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
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./memos.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			Trigger:           "@",
			CandidateLimit:    10,
			CandidatePool:     200,
			DefaultVisibility: string(models.Private),
		},
		Render: RenderConfig{
			CacheTTL:      10 * time.Minute,
			PreviewLength: 120,
		},
	}
}
