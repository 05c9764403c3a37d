package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/cogflow/pkg/domain"
)

// Loader implements ports.ProgramLoader over a program built in code.
type Loader struct {
	program *domain.Program
}

// NewLoader creates a Loader serving program.
func NewLoader(program *domain.Program) *Loader {
	return &Loader{program: program}
}

// NewFromPrompts builds a program named name from prompts. The first prompt
// becomes the "main" entry.
func NewFromPrompts(name string, prompts ...*domain.Prompt) (*Loader, error) {
	prog := &domain.Program{
		Name:    name,
		Entries: map[string]string{},
		Prompts: make(map[string]*domain.Prompt, len(prompts)),
	}
	for i, p := range prompts {
		if p.Name == "" {
			return nil, fmt.Errorf("prompt %d missing name", i)
		}
		if _, dup := prog.Prompts[p.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt %s", p.Name)
		}
		prog.Prompts[p.Name] = p
		if i == 0 {
			prog.Entries[domain.DefaultEntry] = p.Name
		}
	}
	return &Loader{program: prog}, nil
}

// Load returns the program.
func (l *Loader) Load(ctx context.Context) (*domain.Program, error) {
	if l.program == nil {
		return nil, fmt.Errorf("memory loader: no program")
	}
	return l.program, nil
}
