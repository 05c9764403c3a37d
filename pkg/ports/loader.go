package ports

import (
	"context"

	"github.com/aretw0/cogflow/pkg/domain"
)

// ProgramLoader produces a compiled program from some source.
// The returned program is resolved (named formats expanded, ranges parsed) but
// not yet validated.
type ProgramLoader interface {
	Load(ctx context.Context) (*domain.Program, error)
}

// Watchable is implemented by loaders whose source can change while running.
// The channel receives the id of each changed document.
type Watchable interface {
	Watch(ctx context.Context) (<-chan string, error)
}
