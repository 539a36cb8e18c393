package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/go-zepsync/pkg/config"
	"github.com/soundprediction/go-zepsync/pkg/graphstore"
	"github.com/soundprediction/go-zepsync/pkg/maintenance"
	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/server/dto"
)

func newTestServer(t *testing.T) (*Server, *graphstore.MemoryStore) {
	t.Helper()

	store := graphstore.NewMemoryStore()
	for _, id := range []string{"n1", "n2", "n3"} {
		store.AddNode("g1", record.FromMap(record.KindNode, map[string]any{"uuid": id, "name": "node " + id}))
	}
	store.AddEdge("g1", record.FromMap(record.KindEdge, map[string]any{
		"uuid": "e1", "name": "KNOWS", "source_node_uuid": "n1", "target_node_uuid": "n2",
	}))
	store.AddEdge("g1", record.FromMap(record.KindEdge, map[string]any{
		"uuid": "e2", "name": "KNOWS", "source_node_uuid": "n1", "target_node_uuid": "ghost",
	}))

	logger := slog.New(slog.DiscardHandler)
	op := maintenance.NewOperator(store, maintenance.WithLogger(logger))
	srv := New(config.ServerConfig{Host: "localhost", Port: 8080, Mode: "test"}, op, store, logger)
	srv.Setup()
	return srv, store
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = serve(srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)
}

type downStore struct{ graphstore.Client }

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestReadinessReportsUnreachableStore(t *testing.T) {
	srv := New(config.ServerConfig{Mode: "test"}, nil, downStore{}, slog.New(slog.DiscardHandler))
	srv.Setup()

	w := serve(srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestReportRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("isolated nodes", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/graphs/g1/isolated-nodes", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.IsolatedNodesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "g1", resp.GraphID)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "n3", resp.Nodes[0].UUID)
		assert.Equal(t, "node n3", resp.Nodes[0].Name)
	})

	t.Run("dangling edges", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/graphs/g1/dangling-edges", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.DanglingEdgesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		edge := resp.Edges[0]
		assert.Equal(t, "e2", edge.UUID)
		assert.True(t, edge.SourceExists)
		assert.False(t, edge.TargetExists)
	})

	t.Run("stats", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/graphs/g1/stats", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.StatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.NodeCount)
		assert.Equal(t, 2, resp.EdgeCount)
		assert.Equal(t, 1, resp.IsolatedNodes)
		assert.Equal(t, 1, resp.DanglingEdges)
	})
}

func TestDeleteSingleRoutes(t *testing.T) {
	srv, store := newTestServer(t)

	w := serve(srv, http.MethodDelete, "/graphs/g1/edges/e2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":true`)

	_, err := store.GetEdge(context.Background(), "g1", "e2")
	assert.ErrorIs(t, err, graphstore.ErrNotFound)

	w = serve(srv, http.MethodDelete, "/graphs/g1/nodes/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":false`)
}

func TestBulkDeleteRequiresConfirmation(t *testing.T) {
	srv, store := newTestServer(t)

	for _, body := range []string{"", `{"confirm": false}`} {
		w := serve(srv, http.MethodPost, "/graphs/g1/isolated-nodes/delete", body)
		require.Equal(t, http.StatusConflict, w.Code)

		var resp dto.ConfirmationRequiredResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "confirmation_required", resp.Error)
		assert.Equal(t, 1, resp.Preview.Total)
		assert.Equal(t, []maintenance.Sample{{UUID: "n3", Name: "node n3"}}, resp.Preview.Samples)
	}

	nodes, err := store.ListNodes(context.Background(), "g1", 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestBulkDeleteConfirmed(t *testing.T) {
	srv, store := newTestServer(t)

	w := serve(srv, http.MethodPost, "/graphs/g1/dangling-edges/delete", `{"confirm": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.BulkDeleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Deleted)
	assert.Equal(t, 0, resp.Failed)
	assert.NotEmpty(t, resp.RunID)

	edges, err := store.ListEdges(context.Background(), "g1", 0)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e1", edges[0].UUID())
}

func TestBulkDeleteRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(srv, http.MethodPost, "/graphs/g1/isolated-nodes/delete", `{"confirm": "maybe"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}
