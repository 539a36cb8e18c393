// Package maintenance finds and removes inconsistent elements of a memory graph.
//
// The Operator drives read-then-decide-then-act workflows over a
// graphstore.Client:
//
// - FindIsolatedNodes / FindIsolatedEdges: classify one snapshot, no side effects
// - DeleteNode / DeleteEdge: look up, then delete a single element
// - DeleteIsolatedNodes / DeleteIsolatedEdges: discover, confirm, delete sequentially
//
// Store failures never escape an operation. Fetch errors become empty results
// and per-item failures become a false outcome that a bulk run counts and moves
// past. Only configuration errors, such as a missing graph id, are returned.
package maintenance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/soundprediction/go-zepsync/pkg/consistency"
	"github.com/soundprediction/go-zepsync/pkg/graphstore"
	"github.com/soundprediction/go-zepsync/pkg/journal"
	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/types"
)

// ErrGraphIDRequired is returned when an operation is called without a graph id.
var ErrGraphIDRequired = errors.New("graph id is required")

// DefaultListLimit is the number of nodes and edges fetched per snapshot.
const DefaultListLimit = 1000

// Journal receives the per-item outcomes of bulk runs.
type Journal interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// ProgressFunc is called after each candidate of a bulk run is processed.
// index is 1-based.
type ProgressFunc func(kind record.Kind, index, total int, uuid string, deleted bool)

// Result is the outcome of a bulk deletion.
type Result struct {
	RunID   string `json:"run_id,omitempty"`
	Deleted int    `json:"deleted"`
	Failed  int    `json:"failed"`
	// Cancelled is set when the confirmation gate refused the run.
	Cancelled bool `json:"cancelled,omitempty"`
	// Interrupted is set when the context was cancelled before every
	// candidate was processed.
	Interrupted bool `json:"interrupted,omitempty"`
	// Incomplete is set when a fetch failed or may have been cut off at the
	// list limit, and nothing was deleted.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Operator performs maintenance operations against one store.
type Operator struct {
	store     graphstore.Client
	confirmer Confirmer
	journal   Journal
	progress  ProgressFunc
	logger    *slog.Logger
	limit     int
}

// Option configures an Operator.
type Option func(*Operator)

// WithConfirmer sets the confirmation provider. Without one, every gated run
// is refused.
func WithConfirmer(c Confirmer) Option {
	return func(o *Operator) { o.confirmer = c }
}

// WithJournal records bulk outcomes in j.
func WithJournal(j Journal) Option {
	return func(o *Operator) { o.journal = j }
}

// WithProgress reports each processed candidate to fn.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Operator) { o.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Operator) { o.logger = logger }
}

// WithListLimit sets how many nodes and edges a snapshot fetches.
func WithListLimit(limit int) Option {
	return func(o *Operator) { o.limit = limit }
}

// NewOperator creates a new Operator over store.
func NewOperator(store graphstore.Client, opts ...Option) *Operator {
	o := &Operator{
		store:     store,
		confirmer: AutoConfirm(false),
		logger:    slog.Default(),
		limit:     DefaultListLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Snapshot fetches nodes, then edges. A failed fetch yields an empty list.
func (o *Operator) Snapshot(ctx context.Context, graphID string) ([]record.Record, []record.Record, error) {
	nodes, edges, _, err := o.snapshot(ctx, graphID)
	return nodes, edges, err
}

// snapshot also reports whether both fetches succeeded and neither list
// reached the limit.
func (o *Operator) snapshot(ctx context.Context, graphID string) ([]record.Record, []record.Record, bool, error) {
	if graphID == "" {
		return nil, nil, false, ErrGraphIDRequired
	}
	ctx = context.WithValue(ctx, types.ContextKeyGraphID, graphID)
	nodes, nodesOK := o.listNodes(ctx, graphID)
	edges, edgesOK := o.listEdges(ctx, graphID)
	return nodes, edges, nodesOK && edgesOK, nil
}

func (o *Operator) listNodes(ctx context.Context, graphID string) ([]record.Record, bool) {
	nodes, err := o.store.ListNodes(ctx, graphID, o.limit)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to get nodes", "graph_id", graphID, "error", err)
		return []record.Record{}, false
	}
	o.logger.InfoContext(ctx, "Fetched nodes", "graph_id", graphID, "count", len(nodes))
	if o.truncated(len(nodes)) {
		o.logger.WarnContext(ctx, "Listed nodes reached the list limit, graph may be larger", "graph_id", graphID, "limit", o.limit)
		return nodes, false
	}
	if len(nodes) > 0 {
		o.logger.DebugContext(ctx, "Sample node", "uuid", nodes[0].UUID(), "data", nodes[0].Map())
	}
	return nodes, true
}

func (o *Operator) listEdges(ctx context.Context, graphID string) ([]record.Record, bool) {
	edges, err := o.store.ListEdges(ctx, graphID, o.limit)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to get edges", "graph_id", graphID, "error", err)
		return []record.Record{}, false
	}
	o.logger.InfoContext(ctx, "Fetched edges", "graph_id", graphID, "count", len(edges))
	if o.truncated(len(edges)) {
		o.logger.WarnContext(ctx, "Listed edges reached the list limit, graph may be larger", "graph_id", graphID, "limit", o.limit)
		return edges, false
	}
	if len(edges) > 0 {
		o.logger.DebugContext(ctx, "Sample edge",
			"uuid", edges[0].UUID(),
			"source_node_uuid", edges[0].SourceNodeUUID(),
			"target_node_uuid", edges[0].TargetNodeUUID())
	}
	return edges, true
}

// truncated reports whether a list of n items may have been cut off by the
// store. A full page cannot be told apart from a larger graph.
func (o *Operator) truncated(n int) bool {
	return o.limit > 0 && n >= o.limit
}

// FindIsolatedNodes returns the nodes of graphID that no edge references.
func (o *Operator) FindIsolatedNodes(ctx context.Context, graphID string) ([]record.Record, error) {
	nodes, edges, err := o.Snapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}
	isolated := consistency.FindIsolatedNodes(nodes, edges)
	o.logger.InfoContext(ctx, "Found isolated nodes", "graph_id", graphID, "count", len(isolated))
	return isolated, nil
}

// FindIsolatedEdges returns the edges of graphID that reference a missing node.
func (o *Operator) FindIsolatedEdges(ctx context.Context, graphID string) ([]record.Record, error) {
	nodes, edges, err := o.Snapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}
	dangling := consistency.FindIsolatedEdges(nodes, edges)
	o.logger.InfoContext(ctx, "Found dangling edges", "graph_id", graphID, "count", len(dangling))
	return dangling, nil
}

// IsolatedNodeReport describes the isolated nodes of graphID.
func (o *Operator) IsolatedNodeReport(ctx context.Context, graphID string) ([]consistency.NodeReport, error) {
	isolated, err := o.FindIsolatedNodes(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return consistency.DescribeNodes(isolated), nil
}

// DanglingEdgeReport describes the dangling edges of graphID, resolving their
// endpoints against the same snapshot they were classified with.
func (o *Operator) DanglingEdgeReport(ctx context.Context, graphID string) ([]consistency.EdgeReport, error) {
	nodes, edges, err := o.Snapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}
	dangling := consistency.FindIsolatedEdges(nodes, edges)
	o.logger.InfoContext(ctx, "Found dangling edges", "graph_id", graphID, "count", len(dangling))
	return consistency.DescribeEdges(nodes, dangling), nil
}

// Stats summarizes graphID.
func (o *Operator) Stats(ctx context.Context, graphID string) (consistency.Summary, error) {
	nodes, edges, err := o.Snapshot(ctx, graphID)
	if err != nil {
		return consistency.Summary{}, err
	}
	return consistency.Summarize(nodes, edges), nil
}

// Preview returns the prompt a bulk deletion of kind would present, without
// deleting anything.
func (o *Operator) Preview(ctx context.Context, kind record.Kind, graphID string) (Prompt, error) {
	find := o.FindIsolatedNodes
	if kind == record.KindEdge {
		find = o.FindIsolatedEdges
	}
	candidates, err := find(ctx, graphID)
	if err != nil {
		return Prompt{}, err
	}
	return NewPrompt(kind, graphID, candidates), nil
}

// DeleteNode looks up a node and deletes it. It reports false, without
// attempting the delete, when the lookup fails.
func (o *Operator) DeleteNode(ctx context.Context, graphID, uuid string) bool {
	return o.deleteOne(ctx, record.KindNode, graphID, uuid)
}

// DeleteEdge looks up an edge and deletes it. It reports false, without
// attempting the delete, when the lookup fails.
func (o *Operator) DeleteEdge(ctx context.Context, graphID, uuid string) bool {
	return o.deleteOne(ctx, record.KindEdge, graphID, uuid)
}

func (o *Operator) deleteOne(ctx context.Context, kind record.Kind, graphID, uuid string) bool {
	ok, _ := o.tryDelete(ctx, kind, graphID, uuid)
	return ok
}

// tryDelete returns the outcome and, on failure, a short reason for the journal.
func (o *Operator) tryDelete(ctx context.Context, kind record.Kind, graphID, uuid string) (bool, string) {
	if graphID == "" {
		o.logger.ErrorContext(ctx, "Refusing to delete without a graph id", "kind", kind.String(), "uuid", uuid)
		return false, ErrGraphIDRequired.Error()
	}

	get, del := o.store.GetNode, o.store.DeleteNode
	if kind == record.KindEdge {
		get, del = o.store.GetEdge, o.store.DeleteEdge
	}

	found, err := get(ctx, graphID, uuid)
	if err != nil {
		if errors.Is(err, graphstore.ErrNotFound) {
			o.logger.ErrorContext(ctx, "Element not found", "kind", kind.String(), "uuid", uuid, "error", err)
			return false, "not found"
		}
		o.logger.ErrorContext(ctx, "Failed to look up element", "kind", kind.String(), "uuid", uuid, "error", err)
		return false, err.Error()
	}
	o.logger.InfoContext(ctx, "Found element", "kind", kind.String(), "uuid", uuid, "name", orUnknown(found.Name()))

	if err := del(ctx, graphID, uuid); err != nil {
		o.logger.ErrorContext(ctx, "Failed to delete element", "kind", kind.String(), "uuid", uuid, "error", err)
		if errors.Is(err, graphstore.ErrNotFound) {
			return false, "not found"
		}
		return false, err.Error()
	}

	o.logger.InfoContext(ctx, "Successfully deleted element", "kind", kind.String(), "uuid", uuid)
	return true, ""
}

// DeleteIsolatedNodes deletes every isolated node of graphID, one at a time.
// When requireConfirmation is set, the configured Confirmer must approve the
// run first.
func (o *Operator) DeleteIsolatedNodes(ctx context.Context, graphID string, requireConfirmation bool) (Result, error) {
	nodes, edges, complete, err := o.snapshot(ctx, graphID)
	if err != nil {
		return Result{}, err
	}
	candidates := consistency.FindIsolatedNodes(nodes, edges)
	o.logger.InfoContext(ctx, "Found isolated nodes", "graph_id", graphID, "count", len(candidates))
	return o.deleteAll(ctx, record.KindNode, graphID, candidates, complete, requireConfirmation), nil
}

// DeleteIsolatedEdges deletes every dangling edge of graphID, one at a time.
// When requireConfirmation is set, the configured Confirmer must approve the
// run first.
func (o *Operator) DeleteIsolatedEdges(ctx context.Context, graphID string, requireConfirmation bool) (Result, error) {
	nodes, edges, complete, err := o.snapshot(ctx, graphID)
	if err != nil {
		return Result{}, err
	}
	candidates := consistency.FindIsolatedEdges(nodes, edges)
	o.logger.InfoContext(ctx, "Found dangling edges", "graph_id", graphID, "count", len(candidates))
	return o.deleteAll(ctx, record.KindEdge, graphID, candidates, complete, requireConfirmation), nil
}

func (o *Operator) deleteAll(ctx context.Context, kind record.Kind, graphID string, candidates []record.Record, complete, requireConfirmation bool) Result {
	label := NewPrompt(kind, graphID, nil).Label()
	if len(candidates) == 0 {
		o.logger.InfoContext(ctx, "Nothing to delete", "kind", label, "graph_id", graphID)
		return Result{}
	}

	// With one side of the snapshot missing, every element of the other side
	// looks inconsistent.
	if !complete {
		o.logger.ErrorContext(ctx, "Snapshot incomplete, refusing to delete", "kind", label, "graph_id", graphID, "candidates", len(candidates))
		return Result{Incomplete: true}
	}

	if requireConfirmation {
		prompt := NewPrompt(kind, graphID, candidates)
		ok, err := o.confirmer.Confirm(ctx, prompt)
		if err != nil && ctx.Err() != nil {
			o.logger.InfoContext(ctx, "Deletion interrupted before confirmation", "kind", label, "graph_id", graphID)
			return Result{Cancelled: true, Interrupted: true}
		}
		if err != nil {
			o.logger.WarnContext(ctx, "Confirmation unavailable, treating as cancellation", "kind", label, "error", err)
		}
		if err != nil || !ok {
			o.logger.InfoContext(ctx, "Deletion cancelled by user", "kind", label, "graph_id", graphID, "candidates", len(candidates))
			return Result{Cancelled: true}
		}
	}

	runID := newRunID()
	ctx = context.WithValue(ctx, types.ContextKeyRunID, runID)
	result := Result{RunID: runID}
	total := len(candidates)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			o.logger.WarnContext(ctx, "Deletion interrupted",
				"kind", label, "processed", i, "total", total,
				"deleted", result.Deleted, "failed", result.Failed)
			result.Interrupted = true
			break
		}

		id := candidate.UUID()
		entry := journal.Entry{
			RunID:   runID,
			GraphID: graphID,
			Kind:    kind.String(),
			UUID:    id,
			Name:    candidate.Name(),
		}

		if id == "" {
			o.logger.WarnContext(ctx, "Candidate has no UUID, skipping", "kind", label, "index", i+1, "total", total)
			result.Failed++
			entry.Outcome, entry.Reason = journal.OutcomeSkipped, "missing uuid"
			o.record(ctx, entry)
			o.report(kind, i+1, total, id, false)
			continue
		}

		o.logger.InfoContext(ctx, "Deleting candidate", "kind", label, "index", i+1, "total", total, "uuid", id)

		// An item already started finishes even if the caller is interrupted.
		ok, reason := o.tryDelete(context.WithoutCancel(ctx), kind, graphID, id)
		if ok {
			result.Deleted++
			entry.Outcome = journal.OutcomeDeleted
		} else {
			result.Failed++
			entry.Outcome, entry.Reason = journal.OutcomeFailed, reason
		}
		o.record(ctx, entry)
		o.report(kind, i+1, total, id, ok)
	}

	o.logger.InfoContext(ctx, "Bulk deletion finished",
		"kind", label, "graph_id", graphID, "run_id", runID,
		"deleted", result.Deleted, "failed", result.Failed, "interrupted", result.Interrupted)
	return result
}

func (o *Operator) record(ctx context.Context, entry journal.Entry) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.WarnContext(ctx, "Failed to journal outcome", "uuid", entry.UUID, "error", err)
	}
}

func (o *Operator) report(kind record.Kind, index, total int, uuid string, deleted bool) {
	if o.progress != nil {
		o.progress(kind, index, total, uuid, deleted)
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
