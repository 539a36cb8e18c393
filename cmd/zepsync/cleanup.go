package zepsync

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/soundprediction/go-zepsync/pkg/maintenance"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete isolated nodes and dangling edges in bulk",
}

var deleteIsolatedNodesCmd = &cobra.Command{
	Use:   "delete-isolated-nodes",
	Short: "Delete all isolated nodes in the knowledge graph",
	Long: `Delete all isolated nodes in the knowledge graph.

Up to five of the nodes are shown first and the deletion only proceeds when
you answer "yes" or "y". Nodes are deleted one at a time. A failure is counted
and the run moves on to the next node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanup(cmd, "isolated nodes", "nodes", (*maintenance.Operator).DeleteIsolatedNodes)
	},
}

var deleteIsolatedEdgesCmd = &cobra.Command{
	Use:   "delete-isolated-edges",
	Short: "Delete all dangling edges in the knowledge graph",
	Long: `Delete all dangling edges in the knowledge graph.

Up to five of the edges are shown first and the deletion only proceeds when
you answer "yes" or "y". Edges are deleted one at a time. A failure is counted
and the run moves on to the next edge.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanup(cmd, "dangling edges", "edges", (*maintenance.Operator).DeleteIsolatedEdges)
	},
}

var noConfirm bool

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(deleteIsolatedNodesCmd, deleteIsolatedEdgesCmd)
	cleanupCmd.PersistentFlags().BoolVar(&noConfirm, "no-confirm", false, "delete without asking for confirmation")
}

type bulkDelete func(op *maintenance.Operator, ctx context.Context, graphID string, requireConfirmation bool) (maintenance.Result, error)

// runCleanup exits zero after cancellation, interruption and per-item
// failures. Only setup errors fail the command.
func runCleanup(cmd *cobra.Command, label, noun string, del bulkDelete) error {
	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	graphID := a.graph

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deleting all %s in the knowledge graph...\n", label)

	result, err := del(a.operator(cmd.InOrStdin(), out), commandContext(cmd, graphID), graphID, !noConfirm)
	if err != nil {
		return err
	}
	printResult(out, label, noun, result)
	return nil
}

func printResult(w io.Writer, label, noun string, r maintenance.Result) {
	switch {
	case r.Incomplete:
		fmt.Fprintln(w, "Could not fetch the whole graph; nothing was deleted.")
	case r.Cancelled:
		fmt.Fprintln(w, "Deletion cancelled.")
	default:
		if r.Interrupted {
			fmt.Fprintln(w, "Interrupted; stopped before the remaining items.")
		}
		fmt.Fprintf(w, "Deleted %d %s. Failed to delete %d %s.\n", r.Deleted, label, r.Failed, noun)
		if r.RunID != "" {
			fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
		}
	}
}
