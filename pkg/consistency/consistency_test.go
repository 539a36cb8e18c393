package consistency

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/types"
	"github.com/stretchr/testify/assert"
)

func node(id string) record.Record {
	return record.FromMap(record.KindNode, map[string]any{"uuid": id, "name": "node " + id})
}

func edge(id, src, dst string) record.Record {
	m := map[string]any{"uuid": id}
	if src != "" {
		m["source_node_uuid"] = src
	}
	if dst != "" {
		m["target_node_uuid"] = dst
	}
	return record.FromMap(record.KindEdge, m)
}

func uuids(recs []record.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.UUID())
	}
	return out
}

func TestFindIsolatedNodes(t *testing.T) {
	tests := []struct {
		name  string
		nodes []record.Record
		edges []record.Record
		want  []string
	}{
		{
			name:  "fully connected pair",
			nodes: []record.Record{node("n1"), node("n2")},
			edges: []record.Record{edge("e1", "n1", "n2")},
			want:  []string{},
		},
		{
			name:  "one unreferenced node",
			nodes: []record.Record{node("n1"), node("n2"), node("n3")},
			edges: []record.Record{edge("e1", "n1", "n2")},
			want:  []string{"n3"},
		},
		{
			name:  "no nodes",
			edges: []record.Record{edge("e1", "n1", "n2")},
			want:  []string{},
		},
		{
			name:  "no edges keeps input order",
			nodes: []record.Record{node("n3"), node("n1"), node("n2")},
			want:  []string{"n3", "n1", "n2"},
		},
		{
			name:  "node without uuid is never classified",
			nodes: []record.Record{record.FromMap(record.KindNode, map[string]any{"name": "anon"}), node("n1")},
			want:  []string{"n1"},
		},
		{
			name:  "node id field is not an alias",
			nodes: []record.Record{record.FromMap(record.KindNode, map[string]any{"id": "n7"})},
			want:  []string{},
		},
		{
			name:  "half-attached edge still references its endpoint",
			nodes: []record.Record{node("n1"), node("n2")},
			edges: []record.Record{edge("e1", "n1", "")},
			want:  []string{"n2"},
		},
		{
			name:  "uuid_ alias on nodes",
			nodes: []record.Record{record.FromMap(record.KindNode, map[string]any{"uuid_": "n1"}), node("n2")},
			edges: []record.Record{edge("e1", "n2", "n2")},
			want:  []string{"n1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uuids(FindIsolatedNodes(tt.nodes, tt.edges))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindIsolatedNodes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindIsolatedEdges(t *testing.T) {
	tests := []struct {
		name  string
		nodes []record.Record
		edges []record.Record
		want  []string
	}{
		{
			name:  "all endpoints present",
			nodes: []record.Record{node("n1"), node("n2")},
			edges: []record.Record{edge("e1", "n1", "n2")},
			want:  []string{},
		},
		{
			name:  "missing target",
			nodes: []record.Record{node("n1")},
			edges: []record.Record{edge("e1", "n1", "n9")},
			want:  []string{"e1"},
		},
		{
			name:  "missing source",
			nodes: []record.Record{node("n2")},
			edges: []record.Record{edge("e1", "n9", "n2"), edge("e2", "n2", "n2")},
			want:  []string{"e1"},
		},
		{
			name:  "no nodes flags every edge with a reference",
			edges: []record.Record{edge("e1", "n1", ""), edge("e2", "", ""), edge("e3", "", "n3")},
			want:  []string{"e1", "e3"},
		},
		{
			name:  "edge with both references empty is never dangling",
			nodes: []record.Record{node("n1")},
			edges: []record.Record{edge("e1", "", "")},
			want:  []string{},
		},
		{
			name:  "no edges",
			nodes: []record.Record{node("n1")},
			want:  []string{},
		},
		{
			name:  "edge identified by id",
			nodes: []record.Record{node("n1")},
			edges: []record.Record{record.FromMap(record.KindEdge, map[string]any{"id": "e5", "source_node_uuid": "n1", "target_node_uuid": "gone"})},
			want:  []string{"e5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uuids(FindIsolatedEdges(tt.nodes, tt.edges))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindIsolatedEdges() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTypedAndMappingRecordsMix(t *testing.T) {
	nodes := []record.Record{
		record.FromFields(record.KindNode, &types.Node{UUID: "n1"}),
		node("n2"),
	}
	edges := []record.Record{
		record.FromFields(record.KindEdge, &types.Edge{UUID: "e1", SourceNodeUUID: "n1", TargetNodeUUID: "n3"}),
	}

	assert.Equal(t, []string{"n2"}, uuids(FindIsolatedNodes(nodes, edges)))
	assert.Equal(t, []string{"e1"}, uuids(FindIsolatedEdges(nodes, edges)))
}

// randomGraph builds a graph whose edges reference a mix of existing and
// missing nodes, with some empty references and some uuid-less nodes.
func randomGraph(r *rand.Rand) ([]record.Record, []record.Record) {
	var nodes, edges []record.Record
	nNodes := r.Intn(20)
	for i := 0; i < nNodes; i++ {
		if r.Intn(10) == 0 {
			nodes = append(nodes, record.FromMap(record.KindNode, map[string]any{"name": "anon"}))
			continue
		}
		nodes = append(nodes, node(fmt.Sprintf("n%d", i)))
	}
	ref := func() string {
		switch r.Intn(6) {
		case 0:
			return ""
		case 1:
			return fmt.Sprintf("missing%d", r.Intn(5))
		default:
			return fmt.Sprintf("n%d", r.Intn(25))
		}
	}
	nEdges := r.Intn(30)
	for i := 0; i < nEdges; i++ {
		edges = append(edges, edge(fmt.Sprintf("e%d", i), ref(), ref()))
	}
	return nodes, edges
}

func TestClassificationProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		nodes, edges := randomGraph(r)

		endpoints := map[string]struct{}{}
		for _, e := range edges {
			endpoints[e.SourceNodeUUID()] = struct{}{}
			endpoints[e.TargetNodeUUID()] = struct{}{}
		}
		present := NodeIndex(nodes)

		isolated := FindIsolatedNodes(nodes, edges)
		for _, n := range isolated {
			assert.NotEmpty(t, n.UUID())
			assert.NotContains(t, endpoints, n.UUID())
			assert.Contains(t, present, n.UUID())
		}

		dangling := FindIsolatedEdges(nodes, edges)
		for _, e := range dangling {
			_, srcOK := present[e.SourceNodeUUID()]
			_, dstOK := present[e.TargetNodeUUID()]
			assert.True(t, (e.SourceNodeUUID() != "" && !srcOK) || (e.TargetNodeUUID() != "" && !dstOK))
		}

		// Pure functions: a second run over the same snapshot is identical.
		assert.Equal(t, uuids(isolated), uuids(FindIsolatedNodes(nodes, edges)))
		assert.Equal(t, uuids(dangling), uuids(FindIsolatedEdges(nodes, edges)))

		// Completeness with an empty counterpart.
		var withUUID []string
		for _, n := range nodes {
			if n.UUID() != "" {
				withUUID = append(withUUID, n.UUID())
			}
		}
		assert.ElementsMatch(t, withUUID, uuids(FindIsolatedNodes(nodes, nil)))

		var withRef []string
		for _, e := range edges {
			if e.SourceNodeUUID() != "" || e.TargetNodeUUID() != "" {
				withRef = append(withRef, e.UUID())
			}
		}
		assert.ElementsMatch(t, withRef, uuids(FindIsolatedEdges(nil, edges)))
	}
}
