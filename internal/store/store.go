package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"jobtalk/pkg/interfaces"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

var ErrUnknownDriver = errors.New("unknown selection store driver")

// Config selects and parameterizes a selection store backend.
type Config struct {
	Driver string
	Path   string // sqlite file path
	URL    string // redis URL
}

// Open creates the configured SelectionStore backend.
func Open(cfg Config, logger zerolog.Logger) (interfaces.SelectionStore, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return NewSQLiteStore(cfg.Path, logger)
	case DriverRedis:
		return NewRedisStore(cfg.URL, logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
