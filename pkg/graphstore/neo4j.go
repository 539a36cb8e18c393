package graphstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/go-zepsync/pkg/record"
)

// Neo4jConfig holds connection settings for a self-hosted graph.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore implements Client over a Neo4j database laid out the way
// Graphiti writes it: (:Entity) nodes joined by [:RELATES_TO] relationships,
// both carrying uuid and group_id properties. The graph id is the group_id.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var _ Client = (*Neo4jStore)(nil)

// NewNeo4jStore creates a new Neo4j store. It does not connect until first use.
func NewNeo4jStore(config *Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	if config == nil || config.URI == "" {
		return nil, errors.New("neo4j uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	database := config.Database
	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Neo4jStore{
		client:   driver,
		database: database,
		logger:   logger,
	}, nil
}

func limitClause(limit int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}

// ListNodes implements Client.
func (n *Neo4jStore) ListNodes(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	query := `
		MATCH (n:Entity {group_id: $group_id})
		RETURN n
		ORDER BY n.uuid` + limitClause(limit)

	records, err := n.read(ctx, query, map[string]any{"group_id": graphID})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of graph %s: %w", graphID, err)
	}

	nodes := make([]record.Record, 0, len(records))
	for _, rec := range records {
		value, ok := rec.Get("n")
		if !ok {
			continue
		}
		if node, ok := value.(dbtype.Node); ok {
			nodes = append(nodes, nodeRecord(node))
		}
	}
	return nodes, nil
}

// ListEdges implements Client. Endpoint uuids are read from the relationship
// properties when present, and from the matched nodes otherwise.
func (n *Neo4jStore) ListEdges(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	query := `
		MATCH (s)-[r:RELATES_TO {group_id: $group_id}]->(t)
		RETURN r, s.uuid AS source_node_uuid, t.uuid AS target_node_uuid
		ORDER BY r.uuid` + limitClause(limit)

	records, err := n.read(ctx, query, map[string]any{"group_id": graphID})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges of graph %s: %w", graphID, err)
	}

	edges := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if edge, ok := edgeRecord(rec); ok {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

// GetNode implements Client.
func (n *Neo4jStore) GetNode(ctx context.Context, graphID, uuid string) (record.Record, error) {
	query := `
		MATCH (n:Entity {uuid: $uuid, group_id: $group_id})
		RETURN n
		LIMIT 1`

	records, err := n.read(ctx, query, map[string]any{"uuid": uuid, "group_id": graphID})
	if err != nil {
		return record.Record{}, fmt.Errorf("node %s: %w", uuid, err)
	}
	if len(records) == 0 {
		return record.Record{}, notFound(record.KindNode, uuid)
	}

	value, _ := records[0].Get("n")
	node, ok := value.(dbtype.Node)
	if !ok {
		return record.Record{}, notFound(record.KindNode, uuid)
	}
	return nodeRecord(node), nil
}

// GetEdge implements Client.
func (n *Neo4jStore) GetEdge(ctx context.Context, graphID, uuid string) (record.Record, error) {
	query := `
		MATCH (s)-[r:RELATES_TO {uuid: $uuid, group_id: $group_id}]->(t)
		RETURN r, s.uuid AS source_node_uuid, t.uuid AS target_node_uuid
		LIMIT 1`

	records, err := n.read(ctx, query, map[string]any{"uuid": uuid, "group_id": graphID})
	if err != nil {
		return record.Record{}, fmt.Errorf("edge %s: %w", uuid, err)
	}
	if len(records) == 0 {
		return record.Record{}, notFound(record.KindEdge, uuid)
	}

	edge, ok := edgeRecord(records[0])
	if !ok {
		return record.Record{}, notFound(record.KindEdge, uuid)
	}
	return edge, nil
}

// DeleteNode implements Client. The node's relationships go with it.
func (n *Neo4jStore) DeleteNode(ctx context.Context, graphID, uuid string) error {
	query := `
		MATCH (n:Entity {uuid: $uuid, group_id: $group_id})
		DETACH DELETE n
		RETURN count(n) AS deleted`

	deleted, err := n.writeCount(ctx, query, map[string]any{"uuid": uuid, "group_id": graphID})
	if err != nil {
		return fmt.Errorf("node %s: %w", uuid, err)
	}
	if deleted == 0 {
		return notFound(record.KindNode, uuid)
	}
	return nil
}

// DeleteEdge implements Client.
func (n *Neo4jStore) DeleteEdge(ctx context.Context, graphID, uuid string) error {
	query := `
		MATCH ()-[r:RELATES_TO {uuid: $uuid, group_id: $group_id}]->()
		DELETE r
		RETURN count(r) AS deleted`

	deleted, err := n.writeCount(ctx, query, map[string]any{"uuid": uuid, "group_id": graphID})
	if err != nil {
		return fmt.Errorf("edge %s: %w", uuid, err)
	}
	if deleted == 0 {
		return notFound(record.KindEdge, uuid)
	}
	return nil
}

// Ping implements Client.
func (n *Neo4jStore) Ping(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// Close closes the underlying driver.
func (n *Neo4jStore) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

func (n *Neo4jStore) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func (n *Neo4jStore) writeCount(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := rec.Get("deleted")
		count, _ := deleted.(int64)
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func nodeRecord(node dbtype.Node) record.Record {
	props := make(map[string]any, len(node.Props)+1)
	for k, v := range node.Props {
		props[k] = v
	}
	if _, ok := props["labels"]; !ok && len(node.Labels) > 0 {
		props["labels"] = node.Labels
	}
	return record.FromMap(record.KindNode, props)
}

func edgeRecord(rec *neo4j.Record) (record.Record, bool) {
	value, ok := rec.Get("r")
	if !ok {
		return record.Record{}, false
	}
	rel, ok := value.(dbtype.Relationship)
	if !ok {
		return record.Record{}, false
	}

	props := make(map[string]any, len(rel.Props)+3)
	for k, v := range rel.Props {
		props[k] = v
	}
	if _, ok := props["name"]; !ok && rel.Type != "" {
		props["name"] = rel.Type
	}
	for _, key := range []string{"source_node_uuid", "target_node_uuid"} {
		if existing, ok := props[key]; ok && existing != nil {
			continue
		}
		if v, ok := rec.Get(key); ok && v != nil {
			props[key] = v
		}
	}
	return record.FromMap(record.KindEdge, props), true
}
