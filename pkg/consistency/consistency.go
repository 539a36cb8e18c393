// Package consistency classifies the nodes and edges of one graph snapshot.
//
// An isolated node has a uuid that no edge references as source or target.
// A dangling edge references a source or target uuid that is not present in
// the node set. Both classifications are pure functions of their inputs and are
// recomputed on every call; nothing here performs I/O or keeps state.
//
// Edges whose source and target references are both empty are never reported
// as dangling: there is nothing to validate on them.
package consistency

import (
	"github.com/soundprediction/go-zepsync/pkg/record"
)

const unknown = "Unknown"

// FindIsolatedNodes returns, in input order, every node with a non-empty uuid
// that is not referenced by any edge.
func FindIsolatedNodes(nodes, edges []record.Record) []record.Record {
	referenced := make(map[string]struct{}, len(edges)*2)
	for _, edge := range edges {
		if src := edge.SourceNodeUUID(); src != "" {
			referenced[src] = struct{}{}
		}
		if dst := edge.TargetNodeUUID(); dst != "" {
			referenced[dst] = struct{}{}
		}
	}

	isolated := []record.Record{}
	for _, node := range nodes {
		id := node.UUID()
		if id == "" {
			continue
		}
		if _, ok := referenced[id]; !ok {
			isolated = append(isolated, node)
		}
	}
	return isolated
}

// FindIsolatedEdges returns, in input order, every edge whose non-empty source
// or target reference does not resolve to a node in nodes.
func FindIsolatedEdges(nodes, edges []record.Record) []record.Record {
	present := NodeIndex(nodes)

	dangling := []record.Record{}
	for _, edge := range edges {
		if isDangling(edge, present) {
			dangling = append(dangling, edge)
		}
	}
	return dangling
}

// NodeIndex returns the set of non-empty node uuids.
func NodeIndex(nodes []record.Record) map[string]struct{} {
	index := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if id := node.UUID(); id != "" {
			index[id] = struct{}{}
		}
	}
	return index
}

func isDangling(edge record.Record, present map[string]struct{}) bool {
	return missing(edge.SourceNodeUUID(), present) || missing(edge.TargetNodeUUID(), present)
}

// missing reports whether a non-empty reference is absent from present.
func missing(ref string, present map[string]struct{}) bool {
	if ref == "" {
		return false
	}
	_, ok := present[ref]
	return !ok
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
