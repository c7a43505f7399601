// Package conductor provides the public API for embedding the interview
// engine. This is the stable API for external consumers.
package conductor

import (
	"github.com/tjfontaine/interview-conductor/internal/runtime"
)

// Conductor is the main entry point for running interview sessions and
// the record API. See internal/runtime.Conductor for full documentation.
type Conductor = runtime.Conductor

// Option is a functional option for configuring a Conductor.
type Option = runtime.Option

// New creates a new Conductor with the given options.
// Example:
//
//	c, err := conductor.New(
//	    conductor.WithFileConfig("config.yaml"),
//	    conductor.WithSQLite("./data/conductor.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig

	// Storage
	WithSQLite          = runtime.WithSQLite
	WithMemoryStorage   = runtime.WithMemoryStorage
	WithJSONFileStorage = runtime.WithJSONFileStorage

	// Events
	WithDirectEvents = runtime.WithDirectEvents

	// Advanced options
	WithLogger          = runtime.WithLogger
	WithConfigProvider  = runtime.WithConfigProvider
	WithStorageProvider = runtime.WithStorageProvider
	WithEventPublisher  = runtime.WithEventPublisher
	WithCapabilities    = runtime.WithCapabilities
)
