package maintenance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/soundprediction/go-zepsync/pkg/record"
)

// MaxSamples is how many candidates a confirmation prompt shows.
const MaxSamples = 5

// Sample is one candidate shown in a confirmation prompt.
type Sample struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Prompt describes a pending bulk deletion.
type Prompt struct {
	Kind    record.Kind `json:"-"`
	GraphID string      `json:"graph_id"`
	Total   int         `json:"total"`
	Samples []Sample    `json:"samples"`
	// Remaining is the number of candidates not shown in Samples.
	Remaining int `json:"remaining"`
}

// NewPrompt builds the preview for a candidate list.
func NewPrompt(kind record.Kind, graphID string, candidates []record.Record) Prompt {
	n := len(candidates)
	if n > MaxSamples {
		n = MaxSamples
	}

	samples := make([]Sample, 0, n)
	for _, c := range candidates[:n] {
		samples = append(samples, Sample{UUID: orUnknown(c.UUID()), Name: orUnknown(c.Name())})
	}
	return Prompt{
		Kind:      kind,
		GraphID:   graphID,
		Total:     len(candidates),
		Samples:   samples,
		Remaining: len(candidates) - n,
	}
}

// Noun returns the plural element name used in prompts, "nodes" or "edges".
func (p Prompt) Noun() string {
	return p.Kind.String() + "s"
}

// Label names the candidates, "isolated nodes" or "dangling edges".
func (p Prompt) Label() string {
	if p.Kind == record.KindEdge {
		return "dangling edges"
	}
	return "isolated nodes"
}

// Confirmer decides whether a bulk deletion may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// IsAffirmative reports whether answer is "yes" or "y", ignoring case and the
// line terminator. Any other padding makes the answer a refusal.
func IsAffirmative(answer string) bool {
	a := strings.TrimSuffix(strings.TrimSuffix(answer, "\n"), "\r")
	return strings.EqualFold(a, "yes") || strings.EqualFold(a, "y")
}

// ConsoleConfirmer prints the preview and reads one answer line.
type ConsoleConfirmer struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
	// pending holds a read that outlived a cancelled Confirm. The next call
	// waits on it instead of starting a second reader.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewConsoleConfirmer creates a confirmer over in and out.
func NewConsoleConfirmer(in io.Reader, out io.Writer) *ConsoleConfirmer {
	return &ConsoleConfirmer{In: in, Out: out}
}

// Confirm implements Confirmer. A read failure, including EOF without an
// answer, is returned as an error and must be treated as a refusal. When ctx
// is cancelled while waiting for the answer, Confirm returns ctx.Err().
func (c *ConsoleConfirmer) Confirm(ctx context.Context, prompt Prompt) (bool, error) {
	fmt.Fprintf(c.Out, "Found %d %s to delete.\n", prompt.Total, prompt.Label())
	fmt.Fprintf(c.Out, "Example %s:\n", prompt.Noun())
	for i, s := range prompt.Samples {
		fmt.Fprintf(c.Out, "  %d. UUID=%s, Name=%s\n", i+1, s.UUID, s.Name)
	}
	if prompt.Remaining > 0 {
		fmt.Fprintf(c.Out, "  ... and %d more\n", prompt.Remaining)
	}
	fmt.Fprintf(c.Out, "Do you want to delete these %s? (yes/no): ", prompt.Noun())

	line, err := c.readLine(ctx)
	if err != nil && (err != io.EOF || line == "") {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			fmt.Fprintln(c.Out)
			return false, err
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return IsAffirmative(line), nil
}

// readLine reads one line in the background so that cancelling ctx unblocks
// the caller even though the read itself cannot be interrupted.
func (c *ConsoleConfirmer) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	if c.pending == nil {
		ch := make(chan lineResult, 1)
		c.pending = ch
		go func() {
			line, err := c.reader.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case res := <-c.pending:
		c.pending = nil
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AutoConfirm answers every prompt with a fixed decision.
type AutoConfirm bool

// Confirm implements Confirmer.
func (a AutoConfirm) Confirm(ctx context.Context, prompt Prompt) (bool, error) {
	return bool(a), nil
}
