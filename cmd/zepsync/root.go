// Package zepsync implements the zepsync command line.
package zepsync

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	envFile     string
	graphIDFlag string
	storeFlag   string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "zepsync",
	Short: "Keep a memory graph free of isolated nodes and dangling edges",
	Long: `zepsync inspects a knowledge graph held by Zep Cloud or a graphiti-compatible
database and removes the elements that no longer connect to anything:

- isolated nodes: nodes that no edge references
- dangling edges: edges whose source or target node is gone

Bulk deletions show a preview and ask for confirmation before anything is removed.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.zepsync/config.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "file of environment variables to load")
	flags.StringVar(&graphIDFlag, "graph-id", "", "graph to operate on (defaults to zep.graph_id, then zep.user_id)")
	flags.StringVar(&storeFlag, "store", "", "graph backend: zep, neo4j, postgres or memory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, which stops bulk deletions between items.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
