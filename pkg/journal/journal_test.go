package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenInMemory(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalEntriesKeepOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for _, e := range []Entry{
		{RunID: "run-a", GraphID: "g1", Kind: "node", UUID: "n3", Outcome: OutcomeDeleted},
		{RunID: "run-a", GraphID: "g1", Kind: "node", UUID: "n1", Outcome: OutcomeFailed, Reason: "not found"},
		{RunID: "run-b", GraphID: "g2", Kind: "edge", UUID: "e1", Outcome: OutcomeDeleted},
		{RunID: "run-a", GraphID: "g1", Kind: "node", Outcome: OutcomeSkipped, Reason: "missing uuid"},
	} {
		require.NoError(t, j.Record(ctx, e))
	}

	entries, err := j.Entries("run-a")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "n3", entries[0].UUID)
	assert.Equal(t, "n1", entries[1].UUID)
	assert.Equal(t, OutcomeSkipped, entries[2].Outcome)
	assert.False(t, entries[0].At.IsZero())
}

func TestJournalEntriesUnknownRun(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.Entries("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestJournalRecordRequiresRunID(t *testing.T) {
	j := openTestJournal(t)
	assert.Error(t, j.Record(context.Background(), Entry{UUID: "n1"}))
}

func TestJournalRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, Entry{RunID: "old", GraphID: "g1", Kind: "edge", Outcome: OutcomeDeleted, At: base}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "old", GraphID: "g1", Kind: "edge", Outcome: OutcomeSkipped, At: base.Add(time.Second)}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "new", GraphID: "g1", Kind: "node", Outcome: OutcomeDeleted, At: base.Add(time.Hour)}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "new", GraphID: "g1", Kind: "node", Outcome: OutcomeDeleted, At: base.Add(time.Hour + time.Second)}))

	runs, err := j.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Deleted)
	assert.Equal(t, 0, runs[0].Failed)

	assert.Equal(t, "old", runs[1].RunID)
	assert.Equal(t, "edge", runs[1].Kind)
	assert.Equal(t, 1, runs[1].Deleted)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, base, runs[1].StartedAt)
	assert.Equal(t, base.Add(time.Second), runs[1].FinishedAt)
}

func TestJournalPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")

	j, err := Open(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), Entry{RunID: "r1", Kind: "node", UUID: "n1", Outcome: OutcomeDeleted}))
	require.NoError(t, j.Close())

	j, err = Open(dir, time.Hour)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Entries("r1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
