package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandlerMessageColors(t *testing.T) {
	tests := []struct {
		name    string
		level   slog.Level
		message string
		want    string
	}{
		{"error is red", slog.LevelError, "Failed to delete element", colorRed},
		{"warning is yellow", slog.LevelWarn, "Candidate has no UUID, skipping", colorYellow},
		{"deletion is green", slog.LevelInfo, "Successfully deleted element", colorGreen},
		{"plain info", slog.LevelInfo, "Fetched nodes", ""},
		{"failure summary is not green", slog.LevelInfo, "Failed to delete 2, deleted 3", ""},
		{"debug deletion is not green", slog.LevelDebug, "deleted in dry run", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, slog.LevelDebug).Log(t.Context(), tt.level, tt.message)

			out := buf.String()
			if tt.want == "" {
				assert.Contains(t, out, " "+tt.message)
				assert.NotContains(t, out, "\033[")
				return
			}
			assert.Contains(t, out, tt.want+tt.message+colorReset)
		})
	}
}

func TestColorHandlerHighlightsRunTallies(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelInfo)

	log.Info("Bulk deletion finished", "run_id", "0192-run", "deleted", 3, "failed", 1)
	out := buf.String()
	assert.Contains(t, out, "run_id="+colorCyan+"0192-run"+colorReset)
	assert.Contains(t, out, "deleted="+colorGreen+"3"+colorReset)
	assert.Contains(t, out, "failed="+colorRed+"1"+colorReset)

	buf.Reset()
	log.Info("Bulk deletion finished", "deleted", 0, "failed", 0)
	assert.Contains(t, buf.String(), " deleted=0 failed=0")
}

func TestColorHandlerAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelInfo).With("graph_id", "g1").WithGroup("store")

	log.Info("Fetched edges", "count", 2, slog.Group("page", "limit", 1000), "error", errors.New("bad gateway"))

	out := strings.TrimSuffix(buf.String(), "\n")
	assert.True(t, strings.HasSuffix(out,
		`Fetched edges graph_id=g1 store.count=2 store.page.limit=1000 store.error="bad gateway"`), out)
}

func TestColorHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: level}))

	log.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelInfo)
	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
