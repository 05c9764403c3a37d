// Package tui renders run results for the terminal.
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/aretw0/cogflow/pkg/domain"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown for w: styled with
// glamour on a terminal, unchanged otherwise.
func NewRenderer(w io.Writer) func(string) (string, error) {
	if !IsTerminal(w) {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// OutputsMarkdown lists run outputs, one key per item, in key order.
func OutputsMarkdown(out map[string]any) string {
	var b strings.Builder
	b.WriteString("## Outputs\n\n")
	if len(out) == 0 {
		b.WriteString("_none_\n")
		return b.String()
	}
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- **%s**: %s\n", k, inline(out[k]))
	}
	return b.String()
}

// RunMarkdown describes a stored run and the text generated at each step.
func RunMarkdown(rec *domain.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- **cog**: %s\n- **entry**: %s\n- **status**: %s\n", rec.Cog, rec.Entry, rec.Status)
	if rec.ParentID != "" {
		fmt.Fprintf(&b, "- **parent**: %s\n", rec.ParentID)
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "- **error**: %s\n", rec.Error)
	}
	b.WriteString("\n")
	for i, s := range rec.Steps {
		fmt.Fprintf(&b, "## %d. %s (visit %d) → %s\n\n", i+1, s.Prompt, s.Visit, s.Next)
		fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.TrimRight(s.Text, "\n"))
	}
	if rec.Status == domain.RunCompleted {
		b.WriteString(OutputsMarkdown(rec.Outputs))
	}
	return b.String()
}

func inline(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return "`" + string(data) + "`"
}
