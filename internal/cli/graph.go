package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/cogflow"
	"github.com/aretw0/cogflow/internal/presentation/graph"
)

// GraphOptions are the flags of the graph command.
type GraphOptions struct {
	Options
	Kind   string
	Prompt string
	// RunID highlights the prompts a stored run visited; program graphs only.
	RunID string
}

// Graph writes a Mermaid graph of the program or of one of its prompts.
func Graph(ctx context.Context, opts GraphOptions, w io.Writer) error {
	sess, err := CreateEngine(opts.Options)
	if err != nil {
		return err
	}
	defer sess.Close()

	kind := opts.Kind
	if kind == "" {
		kind = graph.KindProgram
	}
	if kind == graph.KindProgram && opts.RunID != "" {
		out, err := overlayGraph(ctx, sess.Engine, opts.RunID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, out)
		return err
	}

	prompt := opts.Prompt
	if prompt == "" && kind != graph.KindProgram {
		entry, err := sess.Engine.Program().EntryPrompt("")
		if err != nil {
			return err
		}
		prompt = entry.Name
	}
	out, err := sess.Engine.Graph(kind, prompt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func overlayGraph(ctx context.Context, eng *cogflow.Engine, runID string) (string, error) {
	store := eng.Store()
	if store == nil {
		return "", fmt.Errorf("no run store configured")
	}
	rec, err := store.Load(ctx, runID)
	if err != nil {
		return "", err
	}
	return graph.Program(eng.Program(), graph.OverlayFromRun(rec)), nil
}
