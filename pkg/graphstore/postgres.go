package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/types"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Schema creates the tables PostgresStore reads. Edges deliberately carry no
// foreign keys: a mirror of a remote graph may hold dangling references.
const Schema = `
CREATE TABLE IF NOT EXISTS graph_nodes (
	uuid       TEXT NOT NULL,
	graph_id   TEXT NOT NULL,
	name       TEXT,
	labels     TEXT[],
	summary    TEXT,
	attributes JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (graph_id, uuid)
);
CREATE TABLE IF NOT EXISTS graph_edges (
	uuid             TEXT NOT NULL,
	graph_id         TEXT NOT NULL,
	name             TEXT,
	fact             TEXT,
	source_node_uuid TEXT,
	target_node_uuid TEXT,
	attributes       JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (graph_id, uuid)
);`

const (
	selectNodes = `SELECT uuid, COALESCE(name, ''), COALESCE(labels, '{}'), COALESCE(summary, ''), attributes, created_at
		FROM graph_nodes WHERE graph_id = $1`
	selectEdges = `SELECT uuid, COALESCE(name, ''), COALESCE(fact, ''), COALESCE(source_node_uuid, ''), COALESCE(target_node_uuid, ''), attributes, created_at
		FROM graph_edges WHERE graph_id = $1`
)

// PostgresStore implements Client over graph_nodes and graph_edges tables.
type PostgresStore struct {
	pool   DBPool
	logger *slog.Logger
}

var _ Client = (*PostgresStore)(nil)

// NewPostgresStore creates a store and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *slog.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// ConnectPostgres opens a pgx pool for databaseURL and wraps it in a store.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	store, err := NewPostgresStore(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the graph tables if they do not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ListNodes implements Client.
func (p *PostgresStore) ListNodes(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	rows, err := p.pool.Query(ctx, selectNodes+" ORDER BY created_at, uuid"+limitClause(limit), graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of graph %s: %w", graphID, err)
	}
	defer rows.Close()

	nodes := []record.Record{}
	for rows.Next() {
		node, err := p.scanNode(rows, graphID)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, record.FromFields(record.KindNode, node))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}
	return nodes, nil
}

// ListEdges implements Client.
func (p *PostgresStore) ListEdges(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	rows, err := p.pool.Query(ctx, selectEdges+" ORDER BY created_at, uuid"+limitClause(limit), graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges of graph %s: %w", graphID, err)
	}
	defer rows.Close()

	edges := []record.Record{}
	for rows.Next() {
		edge, err := p.scanEdge(rows, graphID)
		if err != nil {
			return nil, err
		}
		edges = append(edges, record.FromFields(record.KindEdge, edge))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return edges, nil
}

// GetNode implements Client.
func (p *PostgresStore) GetNode(ctx context.Context, graphID, uuid string) (record.Record, error) {
	node, err := p.scanNode(p.pool.QueryRow(ctx, selectNodes+" AND uuid = $2", graphID, uuid), graphID)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Record{}, notFound(record.KindNode, uuid)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("node %s: %w", uuid, err)
	}
	return record.FromFields(record.KindNode, node), nil
}

// GetEdge implements Client.
func (p *PostgresStore) GetEdge(ctx context.Context, graphID, uuid string) (record.Record, error) {
	edge, err := p.scanEdge(p.pool.QueryRow(ctx, selectEdges+" AND uuid = $2", graphID, uuid), graphID)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Record{}, notFound(record.KindEdge, uuid)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("edge %s: %w", uuid, err)
	}
	return record.FromFields(record.KindEdge, edge), nil
}

// DeleteNode implements Client. Edges that referenced the node are kept.
func (p *PostgresStore) DeleteNode(ctx context.Context, graphID, uuid string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM graph_nodes WHERE graph_id = $1 AND uuid = $2`, graphID, uuid)
	if err != nil {
		return fmt.Errorf("node %s: %w", uuid, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(record.KindNode, uuid)
	}
	return nil
}

// DeleteEdge implements Client.
func (p *PostgresStore) DeleteEdge(ctx context.Context, graphID, uuid string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM graph_edges WHERE graph_id = $1 AND uuid = $2`, graphID, uuid)
	if err != nil {
		return fmt.Errorf("edge %s: %w", uuid, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(record.KindEdge, uuid)
	}
	return nil
}

// Ping implements Client.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *PostgresStore) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) scanNode(row pgx.Row, graphID string) (*types.Node, error) {
	var (
		node  types.Node
		attrs []byte
		at    time.Time
	)
	if err := row.Scan(&node.UUID, &node.Name, &node.Labels, &node.Summary, &attrs, &at); err != nil {
		return nil, err
	}
	node.GroupID = graphID
	node.CreatedAt = at
	node.Attributes = p.decodeAttributes(attrs, node.UUID)
	return &node, nil
}

func (p *PostgresStore) scanEdge(row pgx.Row, graphID string) (*types.Edge, error) {
	var (
		edge  types.Edge
		attrs []byte
		at    time.Time
	)
	if err := row.Scan(&edge.UUID, &edge.Name, &edge.Fact, &edge.SourceNodeUUID, &edge.TargetNodeUUID, &attrs, &at); err != nil {
		return nil, err
	}
	edge.GroupID = graphID
	edge.CreatedAt = at
	edge.Attributes = p.decodeAttributes(attrs, edge.UUID)
	return &edge, nil
}

func (p *PostgresStore) decodeAttributes(raw []byte, uuid string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		p.logger.Warn("Ignoring malformed attributes", "uuid", uuid, "error", err)
		return nil
	}
	return attrs
}
