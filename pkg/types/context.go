package types

// ContextKey is the type of the context keys zepsync attaches to requests.
type ContextKey string

const (
	// ContextKeyGraphID carries the graph being maintained.
	ContextKeyGraphID ContextKey = "graph_id"
	// ContextKeyRunID carries the id of a bulk deletion run.
	ContextKeyRunID ContextKey = "run_id"
	// ContextKeyCommand carries the CLI command or HTTP route being served.
	ContextKeyCommand       ContextKey = "command"
	ContextKeyRequestSource ContextKey = "request_source"
)
