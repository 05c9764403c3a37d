package ports

import (
	"context"

	"github.com/aretw0/cogflow/pkg/domain"
)

// Cog is an invocable unit: a program's automaton or an external tool.
type Cog interface {
	// Tag is the name jobs use to target the cog.
	Tag() string
	// Run executes an entry with named inputs and returns named outputs.
	Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error)
}

// Orchestrator schedules cog invocations.
type Orchestrator interface {
	// Execute runs jobs, possibly concurrently, and returns their results in job order.
	// parentID links the invocations to the one that requested them.
	Execute(ctx context.Context, jobs []domain.Job, parentID string) ([]map[string]any, error)
}
