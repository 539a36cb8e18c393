package dto

import (
	"github.com/soundprediction/go-zepsync/pkg/consistency"
	"github.com/soundprediction/go-zepsync/pkg/maintenance"
)

// IsolatedNodesResponse lists the isolated nodes of a graph.
type IsolatedNodesResponse struct {
	GraphID string                   `json:"graph_id"`
	Count   int                      `json:"count"`
	Nodes   []consistency.NodeReport `json:"nodes"`
}

// DanglingEdgesResponse lists the dangling edges of a graph.
type DanglingEdgesResponse struct {
	GraphID string                   `json:"graph_id"`
	Count   int                      `json:"count"`
	Edges   []consistency.EdgeReport `json:"edges"`
}

// StatsResponse carries the element counts of a graph.
type StatsResponse struct {
	GraphID string `json:"graph_id"`
	consistency.Summary
}

// DeleteResponse reports the outcome of a single deletion.
type DeleteResponse struct {
	GraphID string `json:"graph_id"`
	UUID    string `json:"uuid"`
	Deleted bool   `json:"deleted"`
}

// BulkDeleteRequest gates a bulk deletion. Without Confirm nothing is deleted.
type BulkDeleteRequest struct {
	Confirm bool `json:"confirm"`
}

// BulkDeleteResponse reports the outcome of a bulk deletion.
type BulkDeleteResponse struct {
	GraphID string `json:"graph_id"`
	maintenance.Result
}

// ConfirmationRequiredResponse is returned instead of deleting when the
// request was not confirmed.
type ConfirmationRequiredResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Preview maintenance.Prompt `json:"preview"`
}
