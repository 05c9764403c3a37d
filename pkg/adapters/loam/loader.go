// Package loam loads programs from a directory of documents managed by loam.
//
// Each Markdown (or YAML/JSON) document is a prompt named after its file; its
// front-matter declares fields, channels and flows and its body is the prompt
// description. A document named "program" holds the program settings.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"

	"github.com/aretw0/cogflow/internal/compiler"
	"github.com/aretw0/cogflow/internal/dto"
	"github.com/aretw0/cogflow/pkg/domain"
)

// Loader adapts a loam repository to ports.ProgramLoader.
type Loader struct {
	Repo *loam.TypedRepository[Metadata]
	// Name is the program name used when the program document sets none.
	Name string
}

// New creates a loader over repo.
func New(repo *loam.TypedRepository[Metadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only loam repository at dir and returns its loader.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numbers as json.Number across Markdown and JSON documents.
	repo, err := loam.Init(absPath, loam.WithStrict(true), loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	l := New(loam.NewTypedRepository[Metadata](repo))
	l.Name = filepath.Base(absPath)
	return l, nil
}

// Load implements ports.ProgramLoader.
func (l *Loader) Load(ctx context.Context) (*domain.Program, error) {
	doc, err := l.Document(ctx)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(doc)
}

// Document assembles the program document from the repository.
// Prompts are ordered by name; the entry "main" defaults to the prompt named
// "main", or to the first prompt.
func (l *Loader) Document(ctx context.Context) (*dto.Program, error) {
	listed, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	prog := &dto.Program{Name: l.Name}
	seen := make(map[string]string)
	for _, entry := range listed {
		// List only carries ids and metadata; the body needs a full read.
		doc, err := l.Repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", entry.ID, err)
		}
		id := trimExtension(doc.ID)
		meta := doc.Data

		if id == ProgramDocument {
			if meta.Name != "" {
				prog.Name = meta.Name
			}
			prog.Desc = meta.Desc
			if prog.Desc == "" {
				prog.Desc = strings.TrimSpace(doc.Content)
			}
			prog.Inputs = meta.Inputs
			prog.Entries = meta.Entries
			prog.Formats = meta.Formats
			continue
		}

		name := meta.Name
		if name == "" {
			name = id
		}
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: prompt '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID

		prog.Prompts = append(prog.Prompts, dto.Prompt{
			Name:     name,
			Desc:     descLines(doc.Content),
			Fields:   meta.Fields,
			Channels: meta.Channels,
			Flows:    meta.Flows,
		})
	}

	sort.Slice(prog.Prompts, func(i, j int) bool { return prog.Prompts[i].Name < prog.Prompts[j].Name })
	if len(prog.Entries) == 0 && len(prog.Prompts) > 0 {
		entry := prog.Prompts[0].Name
		if _, ok := seen[domain.DefaultEntry]; ok {
			entry = domain.DefaultEntry
		}
		prog.Entries = map[string]string{domain.DefaultEntry: entry}
	}
	return prog, nil
}

// Watch reports the ids of changed documents until ctx ends.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// descLines keeps the non-empty lines of a document body.
func descLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimRight(line, " \t\r"); strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
