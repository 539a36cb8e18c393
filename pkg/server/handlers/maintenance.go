package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-zepsync/pkg/maintenance"
	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/server/dto"
	"github.com/soundprediction/go-zepsync/pkg/types"
)

// MaintenanceHandler exposes the maintenance operator over HTTP.
type MaintenanceHandler struct {
	operator *maintenance.Operator
	logger   *slog.Logger
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(operator *maintenance.Operator, logger *slog.Logger) *MaintenanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceHandler{operator: operator, logger: logger}
}

// IsolatedNodes handles GET /graphs/:graph_id/isolated-nodes
func (h *MaintenanceHandler) IsolatedNodes(c *gin.Context) {
	graphID := c.Param("graph_id")
	nodes, err := h.operator.IsolatedNodeReport(requestContext(c), graphID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.IsolatedNodesResponse{GraphID: graphID, Count: len(nodes), Nodes: nodes})
}

// DanglingEdges handles GET /graphs/:graph_id/dangling-edges
func (h *MaintenanceHandler) DanglingEdges(c *gin.Context) {
	graphID := c.Param("graph_id")
	edges, err := h.operator.DanglingEdgeReport(requestContext(c), graphID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DanglingEdgesResponse{GraphID: graphID, Count: len(edges), Edges: edges})
}

// Stats handles GET /graphs/:graph_id/stats
func (h *MaintenanceHandler) Stats(c *gin.Context) {
	graphID := c.Param("graph_id")
	summary, err := h.operator.Stats(requestContext(c), graphID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatsResponse{GraphID: graphID, Summary: summary})
}

// DeleteNode handles DELETE /graphs/:graph_id/nodes/:uuid
func (h *MaintenanceHandler) DeleteNode(c *gin.Context) {
	h.deleteOne(c, h.operator.DeleteNode)
}

// DeleteEdge handles DELETE /graphs/:graph_id/edges/:uuid
func (h *MaintenanceHandler) DeleteEdge(c *gin.Context) {
	h.deleteOne(c, h.operator.DeleteEdge)
}

func (h *MaintenanceHandler) deleteOne(c *gin.Context, del func(ctx context.Context, graphID, uuid string) bool) {
	graphID, uuid := c.Param("graph_id"), c.Param("uuid")
	deleted := del(requestContext(c), graphID, uuid)

	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	c.JSON(status, dto.DeleteResponse{GraphID: graphID, UUID: uuid, Deleted: deleted})
}

// DeleteIsolatedNodes handles POST /graphs/:graph_id/isolated-nodes/delete
func (h *MaintenanceHandler) DeleteIsolatedNodes(c *gin.Context) {
	h.deleteAll(c, record.KindNode, h.operator.DeleteIsolatedNodes)
}

// DeleteDanglingEdges handles POST /graphs/:graph_id/dangling-edges/delete
func (h *MaintenanceHandler) DeleteDanglingEdges(c *gin.Context) {
	h.deleteAll(c, record.KindEdge, h.operator.DeleteIsolatedEdges)
}

func (h *MaintenanceHandler) deleteAll(c *gin.Context, kind record.Kind, del func(ctx context.Context, graphID string, requireConfirmation bool) (maintenance.Result, error)) {
	graphID := c.Param("graph_id")
	ctx := requestContext(c)

	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	// An unconfirmed request only previews what would be deleted.
	if !req.Confirm {
		prompt, err := h.operator.Preview(ctx, kind, graphID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusConflict, dto.ConfirmationRequiredResponse{
			Error:   "confirmation_required",
			Message: "resend with {\"confirm\": true} to delete these " + prompt.Label(),
			Preview: prompt,
		})
		return
	}

	result, err := del(ctx, graphID, false)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BulkDeleteResponse{GraphID: graphID, Result: result})
}

func (h *MaintenanceHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, maintenance.ErrGraphIDRequired) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	h.logger.ErrorContext(c.Request.Context(), "Maintenance request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "internal_error",
		Message: err.Error(),
		Code:    http.StatusInternalServerError,
	})
}

// requestContext tags the request context with the graph id and the route so
// error telemetry can attribute failures.
func requestContext(c *gin.Context) context.Context {
	ctx := context.WithValue(c.Request.Context(), types.ContextKeyGraphID, c.Param("graph_id"))
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "http")
	return context.WithValue(ctx, types.ContextKeyCommand, c.Request.Method+" "+c.FullPath())
}
