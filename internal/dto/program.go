// Package dto holds the serialized form of programs as written in YAML files
// and Markdown front-matter. Tags follow the on-disk keys.
package dto

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Program is the document form of a program.
type Program struct {
	Name    string             `json:"name" yaml:"name" mapstructure:"name"`
	Desc    string             `json:"desc" yaml:"desc" mapstructure:"desc"`
	Inputs  map[string]string  `json:"inputs" yaml:"inputs" mapstructure:"inputs"`
	Entries map[string]string  `json:"entries" yaml:"entries" mapstructure:"entries"`
	Formats map[string]*Format `json:"formats" yaml:"formats" mapstructure:"formats"`
	Prompts []Prompt           `json:"prompts" yaml:"prompts" mapstructure:"prompts"`
}

// Prompt is one prompt schema. Desc lines may also come from a document body.
type Prompt struct {
	Name     string    `json:"name" yaml:"name" mapstructure:"name"`
	Desc     []string  `json:"desc" yaml:"desc" mapstructure:"desc"`
	Fields   []Field   `json:"fields" yaml:"fields" mapstructure:"fields"`
	Channels []Channel `json:"channels" yaml:"channels" mapstructure:"channels"`
	Flows    []Flow    `json:"flows" yaml:"flows" mapstructure:"flows"`
}

// Field is a schema entry. A field with children is a record.
//
// Format is either a string ("text", "text(20)", `enum("a","b")`,
// "select(.choices)", "repeat(.choices)" or the name of a program format)
// or a Format mapping.
type Field struct {
	Name   string   `json:"name" yaml:"name" mapstructure:"name"`
	Desc   []string `json:"desc" yaml:"desc" mapstructure:"desc"`
	Range  string   `json:"range" yaml:"range" mapstructure:"range"`
	Format any      `json:"format" yaml:"format" mapstructure:"format"`
	Fields []Field  `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// Format is the mapping form of a format.
type Format struct {
	Kind      string   `json:"kind" yaml:"kind" mapstructure:"kind"`
	Desc      []string `json:"desc" yaml:"desc" mapstructure:"desc"`
	Length    int      `json:"length" yaml:"length" mapstructure:"length"`
	Values    []string `json:"values" yaml:"values" mapstructure:"values"`
	Source    string   `json:"source" yaml:"source" mapstructure:"source"`
	Mode      string   `json:"mode" yaml:"mode" mapstructure:"mode"`
	Width     int      `json:"width" yaml:"width" mapstructure:"width"`
	Threshold float64  `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// Channel feeds known data into a prompt. Kind is "input", "dataflow" or "call".
type Channel struct {
	Kind   string  `json:"kind" yaml:"kind" mapstructure:"kind"`
	Target string  `json:"target" yaml:"target" mapstructure:"target"`
	Source string  `json:"source" yaml:"source" mapstructure:"source"`
	Prompt string  `json:"prompt" yaml:"prompt" mapstructure:"prompt"`
	Extern string  `json:"extern" yaml:"extern" mapstructure:"extern"`
	Entry  string  `json:"entry" yaml:"entry" mapstructure:"entry"`
	Kwargs []Kwarg `json:"kwargs" yaml:"kwargs" mapstructure:"kwargs"`
	Binds  []Bind  `json:"binds" yaml:"binds" mapstructure:"binds"`
}

// Kwarg reads either an input (Input set) or a path of a prompt's latest frame.
type Kwarg struct {
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	Input  string `json:"input" yaml:"input" mapstructure:"input"`
	Prompt string `json:"prompt" yaml:"prompt" mapstructure:"prompt"`
	Path   string `json:"path" yaml:"path" mapstructure:"path"`
	Mapped bool   `json:"mapped" yaml:"mapped" mapstructure:"mapped"`
}

type Bind struct {
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// Flow is a control flow when Prompt is set, a return flow otherwise.
type Flow struct {
	Label  string        `json:"label" yaml:"label" mapstructure:"label"`
	Prompt string        `json:"prompt" yaml:"prompt" mapstructure:"prompt"`
	Limit  int           `json:"limit" yaml:"limit" mapstructure:"limit"`
	Return []ReturnField `json:"return" yaml:"return" mapstructure:"return"`
}

type ReturnField struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Decode converts loosely typed data (decoded YAML or JSON) into out.
// Single values are accepted where lists are expected.
func Decode(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// DecodeProgram decodes a whole program document.
func DecodeProgram(raw any) (*Program, error) {
	var p Program
	if err := Decode(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
