package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aretw0/cogflow/pkg/schema"
)

// Validate loads the program and reports every schema problem to w.
func Validate(opts Options, w io.Writer) error {
	sess, err := CreateEngine(opts)
	if err != nil {
		reportValidation(w, err)
		return err
	}
	defer sess.Close()
	fmt.Fprintf(w, "Program %s is valid (%d prompts).\n", sess.Engine.Name, len(sess.Engine.Program().Prompts))
	return nil
}

func reportValidation(w io.Writer, err error) {
	errs := schema.ValidationErrors(err)
	if len(errs) == 0 {
		fmt.Fprintf(w, "Validation failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Validation failed with %d problem(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  - %v\n", e)
	}
}

// WatchValidate validates the program, then again on every change of its
// loam directory, until ctx ends. Opening the watcher is retried with
// backoff while the program does not load.
func WatchValidate(ctx context.Context, opts Options, w io.Writer) error {
	changes, err := backoff.Retry(ctx, func() (<-chan string, error) {
		sess, err := CreateEngine(opts)
		if err != nil {
			reportValidation(w, err)
			return nil, err
		}
		defer sess.Close()
		fmt.Fprintf(w, "Program %s is valid. Watching for changes...\n", sess.Engine.Name)
		ch, err := sess.Engine.Watch(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return ch, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(2*time.Second)))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-changes:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, ">>> %s changed\n", id)
			_ = Validate(opts, w)
		}
	}
}
