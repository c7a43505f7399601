package runtime

import (
	"fmt"
	"log/slog"

	fileconfig "github.com/tjfontaine/interview-conductor/internal/adapters/config/file"
	"github.com/tjfontaine/interview-conductor/internal/adapters/events/direct"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/storage/jsonfile"
	"github.com/tjfontaine/interview-conductor/internal/storage/memory"
	"github.com/tjfontaine/interview-conductor/internal/storage/sqlite"
)

// Option is a functional option for configuring a Conductor.
type Option func(*Conductor) error

// WithFileConfig loads configuration from a YAML file and watches it for
// changes.
func WithFileConfig(path string) Option {
	return func(c *Conductor) error {
		provider, err := fileconfig.NewProvider(path)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		c.config = provider
		return nil
	}
}

// WithSQLite uses a SQLite database for interview, response, and event
// storage.
func WithSQLite(dbPath string) Option {
	return func(c *Conductor) error {
		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		c.storage = store
		return nil
	}
}

// WithMemoryStorage uses in-process storage. Nothing survives a restart;
// intended for tests and console sessions.
func WithMemoryStorage() Option {
	return func(c *Conductor) error {
		c.storage = memory.New()
		return nil
	}
}

// WithJSONFileStorage persists interviews, responses, and events as JSON
// files under dir.
func WithJSONFileStorage(dir string) Option {
	return func(c *Conductor) error {
		store, err := jsonfile.New(dir)
		if err != nil {
			return fmt.Errorf("create jsonfile storage: %w", err)
		}
		c.storage = store
		return nil
	}
}

// WithDirectEvents publishes session events straight into the configured
// storage provider. This is the default when no publisher is set.
func WithDirectEvents() Option {
	return func(c *Conductor) error {
		if c.storage == nil {
			return fmt.Errorf("direct events require storage (set a storage option first)")
		}
		publisher, err := direct.NewPublisher(c.storage)
		if err != nil {
			return fmt.Errorf("create direct event publisher: %w", err)
		}
		c.events = publisher
		return nil
	}
}

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conductor) error {
		c.logger = logger
		return nil
	}
}

// WithConfigProvider sets a custom config provider implementation.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(c *Conductor) error {
		c.config = provider
		return nil
	}
}

// WithStorageProvider sets a custom storage provider implementation.
func WithStorageProvider(provider ports.StorageProvider) Option {
	return func(c *Conductor) error {
		c.storage = provider
		return nil
	}
}

// WithEventPublisher sets a custom event publisher implementation.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(c *Conductor) error {
		c.events = publisher
		return nil
	}
}

// WithCapabilities overrides the capability set assembled from config.
// Useful for tests and for embedding custom speech or generation adapters.
func WithCapabilities(caps ports.Capabilities) Option {
	return func(c *Conductor) error {
		c.caps = &caps
		return nil
	}
}
