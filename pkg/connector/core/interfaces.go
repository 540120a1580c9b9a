// Package core defines the connector contracts the extraction pipeline is
// built against.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/pool"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
)

// State represents connector state
type State map[string]interface{}

// Position represents a position in the data stream
type Position interface {
	// String returns a string representation of the position
	String() string
	// Compare returns -1 if this < other, 0 if equal, 1 if this > other
	Compare(other Position) int
}

// StreamSchema describes one stream's record shape. RawSchema is the
// embedded JSON Schema document with every property nullable.
type StreamSchema struct {
	Name           string          `json:"name"`
	PrimaryKeys    []string        `json:"primary_keys"`
	ReplicationKey string          `json:"replication_key,omitempty"`
	RawSchema      json.RawMessage `json:"schema"`
}

// Catalog is the set of streams a source exposes.
type Catalog struct {
	Streams []StreamSchema `json:"streams"`
}

// RecordStream represents a stream of records
type RecordStream struct {
	Records <-chan *pool.Record
	Errors  <-chan error
}

// Source is the interface all source connectors implement.
type Source interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Discover(ctx context.Context) (*Catalog, error)
	Read(ctx context.Context) (*RecordStream, error)
	Close(ctx context.Context) error

	// State management
	GetPosition() Position
	SetPosition(position Position) error
	GetState() State
	SetState(state State) error

	// Capabilities
	SupportsIncremental() bool

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Connector is the base interface for all connectors
type Connector interface {
	// Metadata
	Name() string
	Type() ConnectorType
	Version() string

	// Lifecycle
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Close(ctx context.Context) error

	// Health and monitoring
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// HealthStatus represents the health status of a connector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}

// ErrorHandler defines how connectors handle errors
type ErrorHandler interface {
	HandleError(ctx context.Context, err error, record *pool.Record) error
	ShouldRetry(err error) bool
	GetRetryDelay(attempt int) time.Duration
	RecordError(err error, details map[string]interface{})
}
