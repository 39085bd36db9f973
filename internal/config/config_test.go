package config

import (
	"errors"
	"testing"
	"time"

	"jobtalk/internal/store"
	"jobtalk/pkg/types"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.SessionKey = "sess-1"
	c.API.BaseURL = "https://api.example.test"
	c.API.Credential = "token"
	c.Transport.URL = "wss://ws.example.test/socket"
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing api url", func(c *Config) { c.API.BaseURL = "" }, ErrMissingAPIBaseURL},
		{"missing socket url", func(c *Config) { c.Transport.URL = "" }, ErrMissingSocketURL},
		{"missing credential", func(c *Config) { c.API.Credential = "" }, ErrMissingCredential},
		{"bad role", func(c *Config) { c.Role = "admin" }, ErrInvalidRoleConfig},
		{"zero page size", func(c *Config) { c.HistoryPageSize = 0 }, ErrInvalidPageSize},
		{"inverted backoff", func(c *Config) { c.Transport.MaxBackoff = c.Transport.BaseBackoff / 2 }, ErrInvalidBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JOBTALK_ROLE", types.RoleRecruiter)
	t.Setenv("JOBTALK_SESSION_KEY", "sess-env")
	t.Setenv("JOBTALK_API_URL", "https://api.example.test")
	t.Setenv("JOBTALK_CREDENTIAL", "token-env")
	t.Setenv("JOBTALK_SOCKET_URL", "wss://ws.example.test/socket")
	t.Setenv("JOBTALK_PAGE_SIZE", "50")
	t.Setenv("JOBTALK_TYPING_DEBOUNCE", "1500ms")
	t.Setenv("JOBTALK_STORE_DRIVER", store.DriverMemory)

	c, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if c.Role != types.RoleRecruiter {
		t.Errorf("Role = %q", c.Role)
	}
	if c.HistoryPageSize != 50 {
		t.Errorf("HistoryPageSize = %d, want 50", c.HistoryPageSize)
	}
	if c.Typing.Debounce != 1500*time.Millisecond {
		t.Errorf("Debounce = %v", c.Typing.Debounce)
	}
	if c.Store.Driver != store.DriverMemory {
		t.Errorf("Store.Driver = %q", c.Store.Driver)
	}
	// Untouched values keep their defaults.
	if c.Transport.MaxReconnectAttempts != DefaultConfig().Transport.MaxReconnectAttempts {
		t.Error("unset env should leave the default reconnect attempts")
	}
}

func TestLoadFromEnv_RejectsBadDuration(t *testing.T) {
	t.Setenv("JOBTALK_SESSION_KEY", "sess-env")
	t.Setenv("JOBTALK_API_URL", "https://api.example.test")
	t.Setenv("JOBTALK_CREDENTIAL", "token-env")
	t.Setenv("JOBTALK_SOCKET_URL", "wss://ws.example.test/socket")
	t.Setenv("JOBTALK_API_TIMEOUT", "not-a-duration")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}
