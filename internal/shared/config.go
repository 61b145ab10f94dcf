package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

var configValidator = validator.New()

// Config represents the application configuration loaded from a TOML file.
//
// Environment variables (and a .env file, when present) override file values.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the most recent tokens.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string    `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string    `toml:"redirect_uri" env:"SPOTIFY_REDIRECT_URI" validate:"omitempty,url"`
	AccessToken  string    `toml:"access_token,omitempty" env:"SPOTIFY_ACCESS_TOKEN"`
	RefreshToken string    `toml:"refresh_token,omitempty" env:"SPOTIFY_REFRESH_TOKEN"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"SPM_DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host" env:"SPM_SERVER_HOST"`
	Port         int    `toml:"port" env:"SPM_SERVER_PORT" validate:"gte=0,lte=65535"`
	CookieSecure bool   `toml:"cookie_secure" env:"SPM_COOKIE_SECURE"`
}

// SyncConfig tunes export and import behavior against the Spotify Web API.
type SyncConfig struct {
	PageSize       int      `toml:"page_size" env:"SPM_PAGE_SIZE" validate:"gte=0,lte=100"`
	MaxPages       int      `toml:"max_pages" env:"SPM_MAX_PAGES" validate:"gte=0"`
	Concurrency    int      `toml:"concurrency" env:"SPM_CONCURRENCY" validate:"gte=0"`
	RateLimit      float64  `toml:"rate_limit" env:"SPM_RATE_LIMIT" validate:"gte=0"`
	RequestTimeout Duration `toml:"request_timeout" env:"SPM_REQUEST_TIMEOUT"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `toml:"level" env:"SPM_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error fatal"`
}

// Duration wraps [time.Duration] so it can be read from TOML and environment strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Token returns the stored tokens as an [oauth2.Token], or nil if no access token has been saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry,
	}
}

// Update stores a new token. An empty refresh token keeps the previously saved one.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrInvalidToken)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.Expiry = token.Expiry
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyEnv loads a .env file if present and overrides fields from environment variables.
//
// Variables that are unset leave the TOML value untouched.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks struct constraints on the configuration.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SaveConfig writes the configuration as TOML to path with owner-only permissions, since it holds tokens.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrDefault loads path when it exists and falls back to [DefaultConfig] with environment overrides otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		config := DefaultConfig()
		if err := config.ApplyEnv(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return LoadConfig(path)
}
