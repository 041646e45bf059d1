package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tuumday/hotdeal-console/internal/auth"
	"github.com/tuumday/hotdeal-console/internal/observability"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// StorageType represents the media a token scope can be kept in.
type StorageType string

const (
	StorageTypeFile    StorageType = "file"
	StorageTypeKeyring StorageType = "keyring"
	StorageTypeRedis   StorageType = "redis"
	StorageTypeMemory  StorageType = "memory"
)

// Default configuration values
const (
	DefaultConfigLogLevel         = slog.LevelWarn
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigTelemetry        = observability.ExporterNone
	DefaultConfigAPIOrigin        = "https://tuum.day"
	DefaultConfigAPITimeout       = 30 * time.Second
	DefaultConfigDurableStorage   = StorageTypeFile
	DefaultConfigSessionStorage   = StorageTypeFile
	DefaultConfigRedisAddr        = "localhost:6379"
	DefaultConfigRedisKeyPrefix   = "hotdeal:token:"
	DefaultConfigKeyringService   = "hotdeal-console"
	appDirName                    = "hotdeal"
	defaultTokenFileName          = "token.json"
	defaultSessionTokenFileName   = "session.json"
	defaultCookieFileName         = "cookies.json"
)

// TelemetryConfig holds log export configuration.
type TelemetryConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
}

// APIConfig holds the API location and client settings.
type APIConfig struct {
	// Origin is the web front end address the API base URL is derived from.
	Origin string `json:"origin" validate:"required,url"`
	// BaseURL overrides derivation from Origin when set.
	BaseURL string        `json:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// RedisConfig holds settings for the redis durable scope.
type RedisConfig struct {
	Addr     string        `json:"addr" validate:"omitempty,hostname_port"`
	Password string        `json:"password"`
	DB       int           `json:"db" validate:"gte=0"`
	TTL      time.Duration `json:"ttl" validate:"gte=0"`
	Key      string        `json:"key"`
}

// StorageConfig describes where the durable ("remember me") and session token scopes live.
type StorageConfig struct {
	Durable StorageType `json:"durable" validate:"required,oneof=file keyring redis memory"`
	Session StorageType `json:"session" validate:"required,oneof=file memory"`

	// Backend-specific settings
	File        string      `json:"file,omitempty"`         // durable file scope
	SessionFile string      `json:"session_file,omitempty"` // session file scope
	KeyringUser string      `json:"keyring_user,omitempty"` // keyring scope
	Redis       RedisConfig `json:"redis"`                  // redis scope
}

// CookiesConfig holds where credential cookies are persisted.
type CookiesConfig struct {
	File string `json:"file"`
}

// Config holds the application's configuration.
type Config struct {
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	API       APIConfig       `json:"api"`
	Storage   StorageConfig   `json:"storage"`
	Cookies   CookiesConfig   `json:"cookies"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{LogLevel: DefaultConfigLogLevel}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
// LogLevel is not touched since its zero value (info) is a valid setting.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetry
	}
	if c.API.Origin == "" {
		c.API.Origin = DefaultConfigAPIOrigin
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.Storage.Durable == "" {
		c.Storage.Durable = DefaultConfigDurableStorage
	}
	if c.Storage.Session == "" {
		c.Storage.Session = DefaultConfigSessionStorage
	}

	if c.Storage.Durable == StorageTypeFile && c.Storage.File == "" {
		dir, err := configDir()
		if err != nil {
			return fmt.Errorf("storage.file required (auto-detect failed: %w)", err)
		}
		c.Storage.File = filepath.Join(dir, defaultTokenFileName)
	}
	if c.Storage.Session == StorageTypeFile && c.Storage.SessionFile == "" {
		c.Storage.SessionFile = filepath.Join(runtimeDir(), defaultSessionTokenFileName)
	}
	if c.Cookies.File == "" {
		dir, err := configDir()
		if err != nil {
			return fmt.Errorf("cookies.file required (auto-detect failed: %w)", err)
		}
		c.Cookies.File = filepath.Join(dir, defaultCookieFileName)
	}

	switch c.Storage.Durable {
	case StorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("storage.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Storage.KeyringUser = currentUser.Username
		}
	case StorageTypeRedis:
		if c.Storage.Redis.Addr == "" {
			c.Storage.Redis.Addr = DefaultConfigRedisAddr
		}
		if c.Storage.Redis.Key == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("storage.redis.key required (auto-detect failed: %w)", err)
			}
			c.Storage.Redis.Key = DefaultConfigRedisKeyPrefix + currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Durable {
	case StorageTypeFile:
		if c.Storage.File == "" {
			return errors.New("storage.file required for file storage")
		}
	case StorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			return errors.New("storage.keyring_user required for keyring storage")
		}
	case StorageTypeRedis:
		if c.Storage.Redis.Addr == "" || c.Storage.Redis.Key == "" {
			return errors.New("storage.redis.addr and storage.redis.key required for redis storage")
		}
	}
	if c.Storage.Session == StorageTypeFile && c.Storage.SessionFile == "" {
		return errors.New("storage.session_file required for file session storage")
	}

	return nil
}

// BaseURL returns the configured API base URL, or derives it from the origin.
func (c *Config) BaseURL() (string, error) {
	if c.API.BaseURL != "" {
		return c.API.BaseURL, nil
	}
	return auth.ResolveBaseURL(c.API.Origin)
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

// runtimeDir returns a per-user directory cleared when the login session ends.
// Falls back to the temp dir, which at least does not survive a reboot.
func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	return filepath.Join(os.TempDir(), appDirName+"-"+strconv.Itoa(os.Getuid()))
}
