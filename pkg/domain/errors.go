package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrCogNotFound is returned when a job targets a cog that is not registered.
var ErrCogNotFound = errors.New("cog not found")

// ErrPromptNotFound is returned when a flow or entry names an unknown prompt.
var ErrPromptNotFound = errors.New("prompt not found")

// ErrUnknownFlow is returned when the generated "next:" label is not declared.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrNoChoices is returned when a choice has no candidates to offer the model
// or the model picks a position outside them.
var ErrNoChoices = errors.New("no choices")

// EntryError reports an entry that does not resolve to a prompt.
type EntryError struct {
	Entry  string
	Prompt string
}

func (e *EntryError) Error() string {
	if e.Prompt == "" {
		return fmt.Sprintf("entry %q is not declared", e.Entry)
	}
	return fmt.Sprintf("entry %q targets unknown prompt %q", e.Entry, e.Prompt)
}

func (e *EntryError) Unwrap() error { return ErrPromptNotFound }

// ParseError is raised when a generated line matches none of the expected prompts.
type ParseError struct {
	Prompt   string
	LineNo   int
	Line     string
	Expected []string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("prompt %q: line %d %q: %v (expected one of [%s])",
			e.Prompt, e.LineNo, e.Line, e.Cause, strings.Join(quoteAll(e.Expected), ", "))
	}
	return fmt.Sprintf("prompt %q: line %d %q does not start with any of [%s]",
		e.Prompt, e.LineNo, e.Line, strings.Join(quoteAll(e.Expected), ", "))
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ModelError is raised when a model call keeps failing after every retry.
type ModelError struct {
	Op       string
	Attempts int
	Causes   []string // distinct failure messages, in first-seen order
	Last     error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s failed after %d attempt(s): %s", e.Op, e.Attempts, strings.Join(e.Causes, "; "))
}

func (e *ModelError) Unwrap() error { return e.Last }

// InvariantError reports a state the engine should never reach.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Reason
}

// Invariantf builds an InvariantError.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Reason: fmt.Sprintf(format, args...)}
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
