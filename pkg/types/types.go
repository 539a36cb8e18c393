package types

import (
	"time"
)

// Node represents an entity node in a memory graph.
type Node struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Source-specific metadata, e.g. the JIRA issue key a requirement came from.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Edge represents a fact connecting two nodes in a memory graph.
type Edge struct {
	UUID           string    `json:"uuid"`
	Name           string    `json:"name,omitempty"`
	GroupID        string    `json:"group_id,omitempty"`
	Fact           string    `json:"fact,omitempty"`
	SourceNodeUUID string    `json:"source_node_uuid"`
	TargetNodeUUID string    `json:"target_node_uuid"`
	CreatedAt      time.Time `json:"created_at"`

	Attributes map[string]any `json:"attributes,omitempty"`
}

// Field implements record.Fields. Empty values are reported as absent.
func (n *Node) Field(name string) (any, bool) {
	switch name {
	case "uuid":
		return n.UUID, n.UUID != ""
	case "name":
		return n.Name, n.Name != ""
	case "group_id":
		return n.GroupID, n.GroupID != ""
	case "labels":
		return n.Labels, len(n.Labels) > 0
	case "summary":
		return n.Summary, n.Summary != ""
	case "created_at":
		return n.CreatedAt, !n.CreatedAt.IsZero()
	case "attributes":
		return n.Attributes, n.Attributes != nil
	}
	return nil, false
}

// Map returns the node as a mapping.
func (n *Node) Map() map[string]any {
	m := map[string]any{"uuid": n.UUID}
	if n.Name != "" {
		m["name"] = n.Name
	}
	if n.GroupID != "" {
		m["group_id"] = n.GroupID
	}
	if len(n.Labels) > 0 {
		m["labels"] = n.Labels
	}
	if n.Summary != "" {
		m["summary"] = n.Summary
	}
	if !n.CreatedAt.IsZero() {
		m["created_at"] = n.CreatedAt.Format(time.RFC3339)
	}
	if n.Attributes != nil {
		m["attributes"] = n.Attributes
	}
	return m
}

// Field implements record.Fields. Empty values are reported as absent.
func (e *Edge) Field(name string) (any, bool) {
	switch name {
	case "uuid":
		return e.UUID, e.UUID != ""
	case "name":
		return e.Name, e.Name != ""
	case "group_id":
		return e.GroupID, e.GroupID != ""
	case "fact":
		return e.Fact, e.Fact != ""
	case "source_node_uuid":
		return e.SourceNodeUUID, e.SourceNodeUUID != ""
	case "target_node_uuid":
		return e.TargetNodeUUID, e.TargetNodeUUID != ""
	case "created_at":
		return e.CreatedAt, !e.CreatedAt.IsZero()
	case "attributes":
		return e.Attributes, e.Attributes != nil
	}
	return nil, false
}

// Map returns the edge as a mapping.
func (e *Edge) Map() map[string]any {
	m := map[string]any{
		"uuid":             e.UUID,
		"source_node_uuid": e.SourceNodeUUID,
		"target_node_uuid": e.TargetNodeUUID,
	}
	if e.Name != "" {
		m["name"] = e.Name
	}
	if e.GroupID != "" {
		m["group_id"] = e.GroupID
	}
	if e.Fact != "" {
		m["fact"] = e.Fact
	}
	if !e.CreatedAt.IsZero() {
		m["created_at"] = e.CreatedAt.Format(time.RFC3339)
	}
	if e.Attributes != nil {
		m["attributes"] = e.Attributes
	}
	return m
}
