// Package record normalizes access to graph elements returned by a graph store.
//
// Stores hand back nodes and edges in two shapes: decoded key-value mappings
// (Zep JSON responses, Neo4j properties, snapshot files) and typed values that
// expose their attributes through an explicit accessor. Record wraps either shape
// behind one lookup function with a per-field alias table, so callers never
// care which one they hold.
package record

import (
	"fmt"
	"strings"
)

// Kind tags a record as node-like or edge-like. Some aliases only apply to edges.
type Kind int

const (
	// KindNode marks a node-like record.
	KindNode Kind = iota
	// KindEdge marks an edge-like record.
	KindEdge
)

func (k Kind) String() string {
	if k == KindEdge {
		return "edge"
	}
	return "node"
}

// Fields is implemented by typed graph elements. Field reports the value of a
// named attribute and whether it is present.
type Fields interface {
	Field(name string) (any, bool)
}

type shape int

const (
	shapeMapping shape = iota
	shapeFields
)

// Record is a node or edge in either mapping or typed form.
type Record struct {
	kind    Kind
	shape   shape
	mapping map[string]any
	fields  Fields
}

// FromMap wraps a key-value mapping.
func FromMap(kind Kind, m map[string]any) Record {
	return Record{kind: kind, shape: shapeMapping, mapping: m}
}

// FromFields wraps a typed value.
func FromFields(kind Kind, f Fields) Record {
	return Record{kind: kind, shape: shapeFields, fields: f}
}

// Kind returns the record kind.
func (r Record) Kind() Kind { return r.kind }

// IsMapping reports whether the record wraps a key-value mapping.
func (r Record) IsMapping() bool { return r.shape == shapeMapping }

// IsZero reports whether the record wraps nothing.
func (r Record) IsZero() bool {
	return r.mapping == nil && r.fields == nil
}

// alias is an alternate attribute name tried when the requested one is absent.
type alias struct {
	name string
	// edgeOnly restricts the alias to edge-like records.
	edgeOnly bool
}

// aliases lists, per requested attribute, the fallbacks tried in order.
// Zep returns node ids as uuid or uuid_ depending on the endpoint, and some
// edge payloads only carry id.
var aliases = map[string][]alias{
	"uuid": {
		{name: "uuid_"},
		{name: "id", edgeOnly: true},
	},
}

// Get resolves a dot-separated attribute path. Any segment that is missing or
// nil yields def. Get never panics.
func (r Record) Get(path string, def any) any {
	if r.IsZero() || path == "" {
		return def
	}

	var current any = r
	for _, segment := range strings.Split(path, ".") {
		v, ok := resolve(current, segment)
		if !ok || v == nil {
			return def
		}
		current = v
	}
	return current
}

// String resolves path and renders it as a string. Missing values yield "".
func (r Record) String(path string) string {
	switch v := r.Get(path, nil).(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// UUID returns the element identifier, honoring the uuid aliases.
func (r Record) UUID() string { return r.String("uuid") }

// Name returns the element name.
func (r Record) Name() string { return r.String("name") }

// SourceNodeUUID returns the edge source reference.
func (r Record) SourceNodeUUID() string { return r.String("source_node_uuid") }

// TargetNodeUUID returns the edge target reference.
func (r Record) TargetNodeUUID() string { return r.String("target_node_uuid") }

// Map returns a mapping view of the record, suitable for JSON encoding.
func (r Record) Map() map[string]any {
	switch {
	case r.shape == shapeMapping:
		return r.mapping
	case r.fields == nil:
		return nil
	}
	if m, ok := r.fields.(interface{ Map() map[string]any }); ok {
		return m.Map()
	}
	out := map[string]any{}
	for _, key := range []string{"uuid", "name", "source_node_uuid", "target_node_uuid"} {
		if v, ok := r.fields.Field(key); ok {
			out[key] = v
		}
	}
	return out
}

// resolve looks up one path segment on whatever the previous segment produced.
func resolve(v any, name string) (any, bool) {
	switch cur := v.(type) {
	case Record:
		return cur.lookup(name)
	case map[string]any:
		return lookupMapping(cur, name, KindNode)
	case Fields:
		return cur.Field(name)
	default:
		return nil, false
	}
}

func (r Record) lookup(name string) (any, bool) {
	if r.shape == shapeMapping {
		return lookupMapping(r.mapping, name, r.kind)
	}
	if r.fields == nil {
		return nil, false
	}
	if v, ok := r.fields.Field(name); ok {
		return v, true
	}
	for _, a := range aliases[name] {
		if a.edgeOnly && r.kind != KindEdge {
			continue
		}
		if v, ok := r.fields.Field(a.name); ok {
			return v, true
		}
	}
	return nil, false
}

func lookupMapping(m map[string]any, name string, kind Kind) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[name]; ok && v != nil {
		return v, true
	}
	for _, a := range aliases[name] {
		if a.edgeOnly && kind != KindEdge {
			continue
		}
		if v, ok := m[a.name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
