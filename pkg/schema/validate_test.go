package schema

import (
	"strings"
	"testing"

	"github.com/aretw0/cogflow/pkg/domain"
)

func textFormat() *domain.Format { return &domain.Format{Kind: domain.FormatCompletion} }

func quizPrompt() *domain.Prompt {
	question := &domain.Field{Name: "question", Depth: 1, Index: 0, Format: textFormat()}
	choices := &domain.Field{Name: "choices", Depth: 1, Index: 1, Range: &domain.Range{Min: 4, Max: 4}, Format: textFormat()}
	answer := &domain.Field{Name: "answer", Depth: 1, Index: 2, Format: &domain.Format{
		Kind: domain.FormatChoice, Mode: domain.ChoiceSelect, Path: domain.MustParsePath("choices"),
	}}
	return &domain.Prompt{
		Name:   "quiz",
		Fields: []*domain.Field{question, choices, answer},
		Flows: []domain.Flow{{
			Label: "done", Kind: domain.FlowReturn,
			Fields: []domain.ReturnField{{Name: "answer", Path: domain.MustParsePath("answer")}},
		}},
	}
}

func TestValidateProgram_Success(t *testing.T) {
	prog := &domain.Program{
		Entries: map[string]string{"main": "quiz"},
		Prompts: map[string]*domain.Prompt{"quiz": quizPrompt()},
		Inputs:  map[string]string{"topic": "string"},
	}
	if err := ValidateProgram(prog); err != nil {
		t.Errorf("ValidateProgram() error = %v, want nil", err)
	}
}

func TestValidateProgram_ReportsAllProblems(t *testing.T) {
	p := quizPrompt()
	p.Fields[1].Range = &domain.Range{Min: 3, Max: 1}
	p.Fields = append(p.Fields, &domain.Field{Name: "question", Depth: 1, Index: 3, Format: &domain.Format{Kind: domain.FormatCompletion, Ref: "missing"}})
	p.Flows = append(p.Flows, domain.Flow{Label: "again", Kind: domain.FlowControl, Prompt: "nowhere"})

	prog := &domain.Program{
		Entries: map[string]string{"main": "quiz"},
		Prompts: map[string]*domain.Prompt{"quiz": p},
	}
	err := ValidateProgram(prog)
	if err == nil {
		t.Fatal("ValidateProgram() should fail")
	}

	errs := ValidationErrors(err)
	if len(errs) != 4 {
		t.Fatalf("ValidateProgram() = %d errors, want 4: %v", len(errs), err)
	}
	msg := err.Error()
	for _, want := range []string{"malformed range", "duplicate field label", "unresolved format reference", "unknown prompt"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should mention %q", msg, want)
		}
	}
}

func TestValidatePrompt_DepthViolation(t *testing.T) {
	rec := &domain.Field{Name: "rec", Depth: 1, Index: 0}
	leaf := &domain.Field{Name: "leaf", Depth: 3, Index: 0, Parent: rec, Format: textFormat()}
	p := &domain.Prompt{Name: "p", Fields: []*domain.Field{rec, leaf}}

	err := ValidatePrompt(nil, p)
	if err == nil {
		t.Fatal("ValidatePrompt() should fail on depth jump")
	}
	if !strings.Contains(err.Error(), "does not follow parent depth") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidatePrompt_ChoiceSourceMustBeList(t *testing.T) {
	p := quizPrompt()
	p.Fields[2].Format.Path = domain.MustParsePath("question")

	err := ValidatePrompt(nil, p)
	if err == nil || !strings.Contains(err.Error(), "is not a list") {
		t.Errorf("ValidatePrompt() error = %v, want choice source error", err)
	}
}

func TestValidateInputs(t *testing.T) {
	declared := map[string]string{"topic": "string", "tags": "[string]", "n": "int"}

	err := ValidateInputs(declared, map[string]any{"topic": "go", "tags": []any{"a", "b"}, "n": float64(3)})
	if err != nil {
		t.Errorf("ValidateInputs() error = %v, want nil", err)
	}

	err = ValidateInputs(declared, map[string]any{"topic": 1, "tags": []any{"a", 2}})
	if got := len(ValidationErrors(err)); got != 3 {
		t.Errorf("ValidateInputs() = %d errors, want 3: %v", got, err)
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("[[int]]")
	if err != nil {
		t.Fatalf("ParseType() error = %v", err)
	}
	if typ.Name() != "[[int]]" {
		t.Errorf("Name() = %q, want [[int]]", typ.Name())
	}
	if _, err := ParseType("complex"); err == nil {
		t.Error("ParseType(complex) should fail")
	}
}
