package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/soundprediction/go-zepsync/pkg/record"
)

// Snapshot is the on-disk form of one graph: its nodes and edges as mappings.
type Snapshot struct {
	Nodes []map[string]any `json:"nodes"`
	Edges []map[string]any `json:"edges"`
}

type memoryGraph struct {
	nodes []record.Record
	edges []record.Record
}

// MemoryStore is an in-process Client. It keeps insertion order so that
// listings are deterministic.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*memoryGraph
}

var _ Client = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{graphs: make(map[string]*memoryGraph)}
}

func (m *MemoryStore) graph(graphID string) *memoryGraph {
	g, ok := m.graphs[graphID]
	if !ok {
		g = &memoryGraph{}
		m.graphs[graphID] = g
	}
	return g
}

// AddNode appends a node to a graph.
func (m *MemoryStore) AddNode(graphID string, node record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.graph(graphID)
	g.nodes = append(g.nodes, node)
}

// AddEdge appends an edge to a graph. Its endpoints are not checked.
func (m *MemoryStore) AddEdge(graphID string, edge record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.graph(graphID)
	g.edges = append(g.edges, edge)
}

// LoadSnapshot reads a JSON snapshot into graphID, replacing its contents.
func (m *MemoryStore) LoadSnapshot(graphID string, r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	g := &memoryGraph{
		nodes: make([]record.Record, 0, len(snap.Nodes)),
		edges: make([]record.Record, 0, len(snap.Edges)),
	}
	for _, n := range snap.Nodes {
		g.nodes = append(g.nodes, record.FromMap(record.KindNode, n))
	}
	for _, e := range snap.Edges {
		g.edges = append(g.edges, record.FromMap(record.KindEdge, e))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graphID] = g
	return nil
}

// LoadSnapshotFile opens path and loads it into graphID.
func (m *MemoryStore) LoadSnapshotFile(graphID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return m.LoadSnapshot(graphID, f)
}

// BuildSnapshot converts listed nodes and edges into a Snapshot.
func BuildSnapshot(nodes, edges []record.Record) Snapshot {
	snap := Snapshot{
		Nodes: make([]map[string]any, 0, len(nodes)),
		Edges: make([]map[string]any, 0, len(edges)),
	}
	for _, n := range nodes {
		snap.Nodes = append(snap.Nodes, n.Map())
	}
	for _, e := range edges {
		snap.Edges = append(snap.Edges, e.Map())
	}
	return snap
}

// WriteSnapshot encodes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ListNodes implements Client.
func (m *MemoryStore) ListNodes(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return []record.Record{}, nil
	}
	return truncate(g.nodes, limit), nil
}

// ListEdges implements Client.
func (m *MemoryStore) ListEdges(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return []record.Record{}, nil
	}
	return truncate(g.edges, limit), nil
}

// GetNode implements Client.
func (m *MemoryStore) GetNode(ctx context.Context, graphID, uuid string) (record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.graphs[graphID]; ok {
		if i := indexOf(g.nodes, uuid); i >= 0 {
			return g.nodes[i], nil
		}
	}
	return record.Record{}, notFound(record.KindNode, uuid)
}

// GetEdge implements Client.
func (m *MemoryStore) GetEdge(ctx context.Context, graphID, uuid string) (record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.graphs[graphID]; ok {
		if i := indexOf(g.edges, uuid); i >= 0 {
			return g.edges[i], nil
		}
	}
	return record.Record{}, notFound(record.KindEdge, uuid)
}

// DeleteNode implements Client. Edges touching the node are left in place,
// the way a remote service that does not cascade would.
func (m *MemoryStore) DeleteNode(ctx context.Context, graphID, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.graphs[graphID]; ok {
		if i := indexOf(g.nodes, uuid); i >= 0 {
			g.nodes = append(g.nodes[:i:i], g.nodes[i+1:]...)
			return nil
		}
	}
	return notFound(record.KindNode, uuid)
}

// DeleteEdge implements Client.
func (m *MemoryStore) DeleteEdge(ctx context.Context, graphID, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.graphs[graphID]; ok {
		if i := indexOf(g.edges, uuid); i >= 0 {
			g.edges = append(g.edges[:i:i], g.edges[i+1:]...)
			return nil
		}
	}
	return notFound(record.KindEdge, uuid)
}

// Ping implements Client.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Client.
func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func indexOf(recs []record.Record, uuid string) int {
	if uuid == "" {
		return -1
	}
	for i, r := range recs {
		if r.UUID() == uuid {
			return i
		}
	}
	return -1
}

// truncate returns a copy of at most limit records. A limit <= 0 means all.
func truncate(recs []record.Record, limit int) []record.Record {
	n := len(recs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]record.Record, n)
	copy(out, recs[:n])
	return out
}
