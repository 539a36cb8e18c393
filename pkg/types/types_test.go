package types_test

import (
	"testing"

	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNodeAsRecord(t *testing.T) {
	node := &types.Node{
		UUID:       "n1",
		Name:       "Pet",
		Attributes: map[string]any{"issue_key": "PET-12"},
	}
	rec := record.FromFields(record.KindNode, node)

	assert.Equal(t, "n1", rec.UUID())
	assert.Equal(t, "Pet", rec.Name())
	assert.Equal(t, "PET-12", rec.String("attributes.issue_key"))
	assert.Equal(t, "none", rec.Get("summary", "none"))
	assert.Equal(t, "n1", rec.Map()["uuid"])
}

func TestEdgeAsRecord(t *testing.T) {
	edge := &types.Edge{UUID: "e1", SourceNodeUUID: "n1", TargetNodeUUID: "n2", Fact: "Pet HAS Owner"}
	rec := record.FromFields(record.KindEdge, edge)

	assert.Equal(t, "e1", rec.UUID())
	assert.Equal(t, "n1", rec.SourceNodeUUID())
	assert.Equal(t, "n2", rec.TargetNodeUUID())
	assert.Equal(t, "Unknown", rec.Get("name", "Unknown"))

	m := rec.Map()
	assert.Equal(t, "Pet HAS Owner", m["fact"])
	assert.NotContains(t, m, "name")
}
