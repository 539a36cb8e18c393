// Package graphstore provides clients for the memory graph services whose
// nodes and edges are maintained by zepsync.
//
// Every backend returns nodes and edges as record.Record values so that the
// consistency analyzer can classify them without knowing where they came from.
// Lookups and deletions of an element that does not exist fail with an error
// wrapping ErrNotFound.
package graphstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/go-zepsync/pkg/record"
)

var (
	// ErrNotFound is returned when a node or edge does not exist in the graph.
	ErrNotFound = errors.New("not found")
	// ErrMissingAPIKey is returned when a remote client is built without credentials.
	ErrMissingAPIKey = errors.New("api key is required")
)

// Client defines the graph operations the maintenance tooling relies on.
type Client interface {
	// ListNodes returns up to limit nodes of the graph.
	ListNodes(ctx context.Context, graphID string, limit int) ([]record.Record, error)
	// ListEdges returns up to limit edges of the graph.
	ListEdges(ctx context.Context, graphID string, limit int) ([]record.Record, error)

	GetNode(ctx context.Context, graphID, uuid string) (record.Record, error)
	GetEdge(ctx context.Context, graphID, uuid string) (record.Record, error)

	DeleteNode(ctx context.Context, graphID, uuid string) error
	DeleteEdge(ctx context.Context, graphID, uuid string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// Backend names accepted by configuration.
const (
	BackendZep      = "zep"
	BackendNeo4j    = "neo4j"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

func notFound(kind record.Kind, uuid string) error {
	return fmt.Errorf("%s %s: %w", kind, uuid, ErrNotFound)
}
