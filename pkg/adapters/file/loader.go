// Package file loads programs from single YAML files and keeps run records
// as JSON files.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/cogflow/internal/compiler"
	"github.com/aretw0/cogflow/internal/dto"
	"github.com/aretw0/cogflow/pkg/domain"
)

// Loader reads a program from a YAML document.
type Loader struct {
	Path string
}

// NewLoader creates a Loader for the file at path.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load implements ports.ProgramLoader. The program name defaults to the file name.
func (l *Loader) Load(ctx context.Context) (*domain.Program, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	if prog.Name == "" {
		base := filepath.Base(l.Path)
		prog.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return prog, nil
}

// Parse compiles a YAML program document.
func Parse(data []byte) (*domain.Program, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	doc, err := dto.DecodeProgram(raw)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(doc)
}
