package consistency

import (
	"github.com/soundprediction/go-zepsync/pkg/record"
)

// NodeReport describes one isolated node.
type NodeReport struct {
	UUID   string   `json:"uuid"`
	Name   string   `json:"name"`
	Labels []string `json:"labels,omitempty"`
}

// EdgeReport describes one dangling edge and which of its endpoints resolve.
type EdgeReport struct {
	UUID           string `json:"uuid"`
	Name           string `json:"name"`
	SourceNodeUUID string `json:"source_node_uuid"`
	TargetNodeUUID string `json:"target_node_uuid"`
	SourceExists   bool   `json:"source_exists"`
	TargetExists   bool   `json:"target_exists"`
}

// Summary holds element counts for one graph snapshot.
type Summary struct {
	NodeCount     int `json:"node_count"`
	EdgeCount     int `json:"edge_count"`
	IsolatedNodes int `json:"isolated_nodes"`
	DanglingEdges int `json:"dangling_edges"`
}

// DescribeNodes renders nodes for display. Missing text becomes "Unknown".
func DescribeNodes(nodes []record.Record) []NodeReport {
	reports := make([]NodeReport, 0, len(nodes))
	for _, node := range nodes {
		reports = append(reports, NodeReport{
			UUID:   orUnknown(node.UUID()),
			Name:   orUnknown(node.Name()),
			Labels: labels(node),
		})
	}
	return reports
}

// DescribeEdges renders edges for display, resolving their endpoints against
// the node snapshot they were classified with.
func DescribeEdges(nodes, edges []record.Record) []EdgeReport {
	present := NodeIndex(nodes)

	reports := make([]EdgeReport, 0, len(edges))
	for _, edge := range edges {
		src, dst := edge.SourceNodeUUID(), edge.TargetNodeUUID()
		_, srcOK := present[src]
		_, dstOK := present[dst]
		reports = append(reports, EdgeReport{
			UUID:           orUnknown(edge.UUID()),
			Name:           orUnknown(edge.Name()),
			SourceNodeUUID: orUnknown(src),
			TargetNodeUUID: orUnknown(dst),
			SourceExists:   src != "" && srcOK,
			TargetExists:   dst != "" && dstOK,
		})
	}
	return reports
}

// Summarize counts elements and inconsistencies in one snapshot.
func Summarize(nodes, edges []record.Record) Summary {
	return Summary{
		NodeCount:     len(nodes),
		EdgeCount:     len(edges),
		IsolatedNodes: len(FindIsolatedNodes(nodes, edges)),
		DanglingEdges: len(FindIsolatedEdges(nodes, edges)),
	}
}

func labels(node record.Record) []string {
	switch v := node.Get("labels", nil).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, l := range v {
			if s, ok := l.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
