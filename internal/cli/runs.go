package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/cogflow"
	"github.com/aretw0/cogflow/internal/presentation/tui"
)

// ListRuns prints the ids of the runs kept by the configured store.
func ListRuns(ctx context.Context, opts Options, w io.Writer) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	store, closeStore, err := cogflow.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := store.List(ctx)
	if err != nil {
		return err
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

// ShowRun renders one stored run.
func ShowRun(ctx context.Context, opts Options, id string, w io.Writer) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	store, closeStore, err := cogflow.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	rendered, err := tui.NewRenderer(w)(tui.RunMarkdown(rec))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}
