package zepsync

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/go-zepsync/pkg/consistency"
	"github.com/soundprediction/go-zepsync/pkg/graphstore"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the knowledge graph and delete single elements",
}

var findIsolatedNodesCmd = &cobra.Command{
	Use:   "find-isolated-nodes",
	Short: "List nodes that no edge references",
	RunE:  runFindIsolatedNodes,
}

var findIsolatedEdgesCmd = &cobra.Command{
	Use:   "find-isolated-edges",
	Short: "List dangling edges (edges with a missing source or target node)",
	RunE:  runFindIsolatedEdges,
}

var deleteNodeCmd = &cobra.Command{
	Use:   "delete-node",
	Short: "Delete a node by UUID",
	RunE:  runDeleteNode,
}

var deleteEdgeCmd = &cobra.Command{
	Use:   "delete-edge",
	Short: "Delete an edge by UUID",
	RunE:  runDeleteEdge,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count nodes, edges, isolated nodes and dangling edges",
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the graph's nodes and edges to a JSON snapshot",
	Long: `Write the graph's nodes and edges to a JSON snapshot.

The snapshot can be analyzed offline with --store memory and memory.snapshot_path.`,
	RunE: runExport,
}

var (
	elementUUID string
	exportOut   string
)

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(findIsolatedNodesCmd, findIsolatedEdgesCmd, deleteNodeCmd, deleteEdgeCmd, statsCmd, exportCmd)

	for _, cmd := range []*cobra.Command{deleteNodeCmd, deleteEdgeCmd} {
		cmd.Flags().StringVar(&elementUUID, "uuid", "", "UUID of the element to delete")
		_ = cmd.MarkFlagRequired("uuid")
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default is stdout)")
}

func runFindIsolatedNodes(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	graphID := a.graph
	nodes, err := a.operator(cmd.InOrStdin(), cmd.OutOrStdout()).IsolatedNodeReport(commandContext(cmd, graphID), graphID)
	if err != nil {
		return err
	}
	printIsolatedNodes(cmd.OutOrStdout(), nodes)
	return nil
}

func runFindIsolatedEdges(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	graphID := a.graph
	edges, err := a.operator(cmd.InOrStdin(), cmd.OutOrStdout()).DanglingEdgeReport(commandContext(cmd, graphID), graphID)
	if err != nil {
		return err
	}
	printDanglingEdges(cmd.OutOrStdout(), edges)
	return nil
}

func runDeleteNode(cmd *cobra.Command, args []string) error {
	return runDeleteOne(cmd, "node")
}

func runDeleteEdge(cmd *cobra.Command, args []string) error {
	return runDeleteOne(cmd, "edge")
}

// runDeleteOne reports a failed deletion on stdout and still exits zero.
func runDeleteOne(cmd *cobra.Command, kind string) error {
	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	graphID := a.graph

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deleting %s with UUID: %s\n", kind, elementUUID)

	op := a.operator(cmd.InOrStdin(), out)
	del := op.DeleteNode
	if kind == "edge" {
		del = op.DeleteEdge
	}
	if del(commandContext(cmd, graphID), graphID, elementUUID) {
		fmt.Fprintf(out, "Successfully deleted %s: %s\n", kind, elementUUID)
	} else {
		fmt.Fprintf(out, "Failed to delete %s: %s\n", kind, elementUUID)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	graphID := a.graph
	summary, err := a.operator(cmd.InOrStdin(), cmd.OutOrStdout()).Stats(commandContext(cmd, graphID), graphID)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), graphID, summary)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	graphID := a.graph
	nodes, edges, err := a.operator(cmd.InOrStdin(), cmd.OutOrStdout()).Snapshot(commandContext(cmd, graphID), graphID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}
	if err := graphstore.WriteSnapshot(w, graphstore.BuildSnapshot(nodes, edges)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if exportOut != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d nodes and %d edges to %s\n", len(nodes), len(edges), exportOut)
	}
	return nil
}

func printIsolatedNodes(w io.Writer, nodes []consistency.NodeReport) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "No isolated nodes found in the graph.")
		return
	}
	fmt.Fprintf(w, "Found %d isolated nodes (nodes with no connections):\n", len(nodes))
	for i, n := range nodes {
		fmt.Fprintf(w, "%d. UUID: %s, Type: %s, Name: %s\n", i+1, n.UUID, nodeType(n.Labels), n.Name)
	}
}

func nodeType(labels []string) string {
	if len(labels) == 0 {
		return "Unknown"
	}
	return strings.Join(labels, ",")
}

func printDanglingEdges(w io.Writer, edges []consistency.EdgeReport) {
	if len(edges) == 0 {
		fmt.Fprintln(w, "No dangling edges found in the graph.")
		return
	}
	fmt.Fprintf(w, "Found %d dangling edges (edges with missing source/target nodes):\n", len(edges))
	for i, e := range edges {
		fmt.Fprintf(w, "%d. ID: %s, Name: %s\n", i+1, e.UUID, e.Name)
		fmt.Fprintf(w, "   Source: %s (Exists: %t)\n", e.SourceNodeUUID, e.SourceExists)
		fmt.Fprintf(w, "   Target: %s (Exists: %t)\n", e.TargetNodeUUID, e.TargetExists)
	}
}

func printStats(w io.Writer, graphID string, s consistency.Summary) {
	fmt.Fprintf(w, "Graph:          %s\n", graphID)
	fmt.Fprintf(w, "Nodes:          %d\n", s.NodeCount)
	fmt.Fprintf(w, "Edges:          %d\n", s.EdgeCount)
	fmt.Fprintf(w, "Isolated nodes: %d\n", s.IsolatedNodes)
	fmt.Fprintf(w, "Dangling edges: %d\n", s.DanglingEdges)
}
