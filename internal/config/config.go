package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"jobtalk/internal/store"
	"jobtalk/pkg/types"
)

var (
	ErrMissingAPIBaseURL = errors.New("API base URL is required")
	ErrMissingSocketURL  = errors.New("socket URL is required")
	ErrMissingCredential = errors.New("credential is required")
	ErrInvalidRoleConfig = errors.New("role must be applicant or recruiter")
	ErrInvalidPageSize   = errors.New("history page size must be positive")
	ErrInvalidBackoff    = errors.New("backoff bounds must be positive and ordered")
)

// APIConfig covers the request/response endpoints.
type APIConfig struct {
	BaseURL    string
	Credential string
	Timeout    time.Duration
}

// TransportConfig covers the persistent socket connection.
type TransportConfig struct {
	URL                  string
	DialTimeout          time.Duration
	WriteTimeout         time.Duration
	MaxReconnectAttempts int
	BaseBackoff          time.Duration
	MaxBackoff           time.Duration
}

// TypingConfig tunes the typing indicator timers.
type TypingConfig struct {
	Debounce time.Duration
	Idle     time.Duration
}

// Config is the complete runtime configuration.
type Config struct {
	Role       string
	SessionKey string

	API       APIConfig
	Transport TransportConfig
	Typing    TypingConfig

	HistoryPageSize int
	Store           store.Config
	LogLevel        string
}

// DefaultConfig returns a configuration with sensible defaults. URL and
// credential fields must still be supplied.
func DefaultConfig() *Config {
	return &Config{
		Role: types.RoleApplicant,
		API: APIConfig{
			Timeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			DialTimeout:          10 * time.Second,
			WriteTimeout:         5 * time.Second,
			MaxReconnectAttempts: 8,
			BaseBackoff:          500 * time.Millisecond,
			MaxBackoff:           30 * time.Second,
		},
		Typing: TypingConfig{
			Debounce: 2 * time.Second,
			Idle:     4 * time.Second,
		},
		HistoryPageSize: 30,
		Store: store.Config{
			Driver: store.DriverSQLite,
			Path:   "jobtalk.db",
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is complete and coherent.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if c.Transport.URL == "" {
		return ErrMissingSocketURL
	}
	if c.API.Credential == "" {
		return ErrMissingCredential
	}
	if !types.IsValidRole(c.Role) {
		return ErrInvalidRoleConfig
	}
	if c.HistoryPageSize <= 0 {
		return ErrInvalidPageSize
	}
	if c.Transport.BaseBackoff <= 0 || c.Transport.MaxBackoff < c.Transport.BaseBackoff {
		return ErrInvalidBackoff
	}
	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	return nil
}

// LoadFromEnv builds a configuration from environment variables on top of
// the defaults. A .env file in the working directory is loaded first if
// present; real environment variables win over the file.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	c := DefaultConfig()

	if v := os.Getenv("JOBTALK_ROLE"); v != "" {
		c.Role = v
	}
	if v := os.Getenv("JOBTALK_SESSION_KEY"); v != "" {
		c.SessionKey = v
	}
	if v := os.Getenv("JOBTALK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("JOBTALK_CREDENTIAL"); v != "" {
		c.API.Credential = v
	}
	if v := os.Getenv("JOBTALK_SOCKET_URL"); v != "" {
		c.Transport.URL = v
	}
	if v := os.Getenv("JOBTALK_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("JOBTALK_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("JOBTALK_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("JOBTALK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	var err error
	if c.HistoryPageSize, err = envInt("JOBTALK_PAGE_SIZE", c.HistoryPageSize); err != nil {
		return nil, err
	}
	if c.Transport.MaxReconnectAttempts, err = envInt("JOBTALK_MAX_RECONNECTS", c.Transport.MaxReconnectAttempts); err != nil {
		return nil, err
	}
	if c.API.Timeout, err = envDuration("JOBTALK_API_TIMEOUT", c.API.Timeout); err != nil {
		return nil, err
	}
	if c.Transport.DialTimeout, err = envDuration("JOBTALK_DIAL_TIMEOUT", c.Transport.DialTimeout); err != nil {
		return nil, err
	}
	if c.Transport.BaseBackoff, err = envDuration("JOBTALK_BASE_BACKOFF", c.Transport.BaseBackoff); err != nil {
		return nil, err
	}
	if c.Transport.MaxBackoff, err = envDuration("JOBTALK_MAX_BACKOFF", c.Transport.MaxBackoff); err != nil {
		return nil, err
	}
	if c.Typing.Debounce, err = envDuration("JOBTALK_TYPING_DEBOUNCE", c.Typing.Debounce); err != nil {
		return nil, err
	}
	if c.Typing.Idle, err = envDuration("JOBTALK_TYPING_IDLE", c.Typing.Idle); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
