package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/cogflow/internal/presentation/tui"
)

// RunOptions are the flags of the run command.
type RunOptions struct {
	Options
	Entry  string
	Inputs map[string]any
	// JSON prints the outputs as one JSON object instead of rendered Markdown.
	JSON bool
}

// Run executes one entry and writes its outputs to w.
func Run(ctx context.Context, opts RunOptions, w io.Writer) error {
	sess, err := CreateEngine(opts.Options)
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.Engine.Run(ctx, opts.Entry, opts.Inputs)
	if err != nil {
		return err
	}
	return WriteOutputs(w, out, opts.JSON)
}

// WriteOutputs prints outputs as JSON or as rendered Markdown.
func WriteOutputs(w io.Writer, out map[string]any, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	rendered, err := tui.NewRenderer(w)(tui.OutputsMarkdown(out))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}
