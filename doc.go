/*
Package cogflow runs structured-generation programs against a language model.

A program is a set of prompts. Each prompt declares a schema of fields (text
completions, enums, selections over earlier values, nested records and
bounded lists), channels that feed it data, and flows that pick the next
prompt or return values to the caller. The schema is compiled into a state
graph; each visit to a prompt instantiates a tree of generation actions from
that graph and the data already known, expands it token by token with the
model's log-probabilities and parses the best completion back into data.

# Usage

Programs are read from a YAML file or from a directory of Markdown documents
managed by loam. A custom loader can also be injected.

	model := llamacpp.New("http://localhost:8080", 32000)
	eng, err := cogflow.New("review.yaml", cogflow.WithModel(model))
	if err != nil {
		log.Fatal(err)
	}
	out, err := eng.Run(ctx, "main", map[string]any{"draft": text})

Runs can be recorded with WithStore, observed with WithLifecycleHooks and
composed with external tools registered through WithCogs.

# Configuration

Options builds the full set of engine options from a config.Config, which
the cogflow command loads from cogflow.yaml and COGFLOW_* variables.
*/
package cogflow
