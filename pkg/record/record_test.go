package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEdge struct {
	id, source, target string
}

func (e fakeEdge) Field(name string) (any, bool) {
	switch name {
	case "id":
		return e.id, e.id != ""
	case "source_node_uuid":
		return e.source, e.source != ""
	case "target_node_uuid":
		return e.target, e.target != ""
	}
	return nil, false
}

func TestGetMapping(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		path string
		def  any
		want any
	}{
		{
			name: "direct key",
			rec:  FromMap(KindNode, map[string]any{"uuid": "n1"}),
			path: "uuid",
			want: "n1",
		},
		{
			name: "uuid_ alias",
			rec:  FromMap(KindNode, map[string]any{"uuid_": "n2"}),
			path: "uuid",
			want: "n2",
		},
		{
			name: "uuid wins over uuid_",
			rec:  FromMap(KindNode, map[string]any{"uuid": "a", "uuid_": "b"}),
			path: "uuid",
			want: "a",
		},
		{
			name: "id fallback for edges",
			rec:  FromMap(KindEdge, map[string]any{"id": "e1"}),
			path: "uuid",
			want: "e1",
		},
		{
			name: "id fallback ignored for nodes",
			rec:  FromMap(KindNode, map[string]any{"id": "n9"}),
			path: "uuid",
			def:  "Unknown",
			want: "Unknown",
		},
		{
			name: "uuid_ preferred over id for edges",
			rec:  FromMap(KindEdge, map[string]any{"id": "e1", "uuid_": "e2"}),
			path: "uuid",
			want: "e2",
		},
		{
			name: "nested path",
			rec:  FromMap(KindNode, map[string]any{"attributes": map[string]any{"source": "JIRA"}}),
			path: "attributes.source",
			want: "JIRA",
		},
		{
			name: "missing intermediate segment",
			rec:  FromMap(KindNode, map[string]any{"attributes": map[string]any{}}),
			path: "attributes.meta.source",
			def:  "none",
			want: "none",
		},
		{
			name: "intermediate is a scalar",
			rec:  FromMap(KindNode, map[string]any{"name": "Dog"}),
			path: "name.first",
			def:  "none",
			want: "none",
		},
		{
			name: "nil value yields default",
			rec:  FromMap(KindNode, map[string]any{"name": nil}),
			path: "name",
			def:  "Unknown",
			want: "Unknown",
		},
		{
			name: "zero record",
			rec:  Record{},
			path: "uuid",
			def:  "x",
			want: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Get(tt.path, tt.def))
		})
	}
}

func TestGetFields(t *testing.T) {
	edge := FromFields(KindEdge, fakeEdge{id: "e1", source: "n1"})

	assert.Equal(t, "e1", edge.UUID())
	assert.Equal(t, "n1", edge.SourceNodeUUID())
	assert.Equal(t, "", edge.TargetNodeUUID())
	assert.Equal(t, "fallback", edge.Get("target_node_uuid", "fallback"))

	asNode := FromFields(KindNode, fakeEdge{id: "e1"})
	assert.Equal(t, "", asNode.UUID())
}

func TestStringRendersScalars(t *testing.T) {
	rec := FromMap(KindNode, map[string]any{"uuid": 42.0, "name": "Cat"})

	assert.Equal(t, "42", rec.UUID())
	assert.Equal(t, "Cat", rec.Name())
	assert.Equal(t, "", rec.String("summary"))
}

func TestMap(t *testing.T) {
	m := map[string]any{"uuid": "n1"}
	assert.Equal(t, m, FromMap(KindNode, m).Map())

	got := FromFields(KindEdge, fakeEdge{source: "a", target: "b"}).Map()
	assert.Equal(t, map[string]any{"source_node_uuid": "a", "target_node_uuid": "b"}, got)
}
