package domain

import "sort"

// ChannelKind identifies where a channel's data comes from.
type ChannelKind string

const (
	ChannelInput    ChannelKind = "input"
	ChannelDataflow ChannelKind = "dataflow"
	ChannelCall     ChannelKind = "call"
)

// Channel feeds known data into a prompt's frame before generation.
type Channel struct {
	Kind   ChannelKind
	Target Path

	// Input and dataflow.
	Source Path
	// Dataflow: the prompt whose latest frame is read. Empty reads the
	// previous frame of the prompt that owns the channel.
	Prompt string

	// Call.
	Extern string // cog name, empty calls the program itself
	Entry  string
	Kwargs []Kwarg
	Binds  []Bind
}

// Kwarg is one named argument of a call channel.
type Kwarg struct {
	Name   string
	Input  bool   // read from the run's inputs
	Prompt string // otherwise read from this prompt's latest frame
	Path   Path
	// Mapped arguments must resolve to a list; one job is emitted per element.
	Mapped bool
}

// Bind renames a call result key: result[Output] becomes result[Name].
type Bind struct {
	Name   string
	Output string
}

// FlowKind distinguishes the two kinds of transitions.
type FlowKind string

const (
	FlowControl FlowKind = "control"
	FlowReturn  FlowKind = "return"
)

// ReturnField names one output of a Return flow.
type ReturnField struct {
	Name string
	Path Path
}

// Flow is a declared "next" transition of a prompt.
type Flow struct {
	Label string
	Kind  FlowKind

	// Control: next prompt and how many times it may be entered (0 is unlimited).
	Prompt string
	Limit  int

	// Return: outputs produced by path. No fields returns the whole data tree.
	Fields []ReturnField
}

// DefaultReturnLabel is the label of the implicit flow of prompts that declare none.
const DefaultReturnLabel = "return"

// Prompt is one schema of a program.
type Prompt struct {
	Name     string
	Desc     []string
	Fields   []*Field
	Channels []Channel
	Flows    []Flow
}

// EffectiveFlows returns the declared flows, or a single implicit return flow.
func (p *Prompt) EffectiveFlows() []Flow {
	if len(p.Flows) == 0 {
		return []Flow{{Label: DefaultReturnLabel, Kind: FlowReturn}}
	}
	return p.Flows
}

// Flow looks up a transition by label.
func (p *Prompt) Flow(label string) (Flow, bool) {
	for _, f := range p.EffectiveFlows() {
		if f.Label == label {
			return f, true
		}
	}
	return Flow{}, false
}

// FieldByLabel looks up a field by its abstract label.
func (p *Prompt) FieldByLabel(label string) *Field {
	for _, f := range p.Fields {
		if f.Label() == label {
			return f
		}
	}
	return nil
}

// Program is a set of prompts with named entry points.
type Program struct {
	Name    string
	Desc    string
	Entries map[string]string // entry name -> prompt name
	Prompts map[string]*Prompt
	Formats map[string]*Format
	// Inputs declares the expected run inputs by name and type ("string", "[string]", ...).
	Inputs map[string]string
}

// DefaultEntry is the entry used when none is requested.
const DefaultEntry = "main"

// PromptNames returns prompt names in lexical order.
func (p *Program) PromptNames() []string {
	names := make([]string, 0, len(p.Prompts))
	for n := range p.Prompts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EntryPrompt resolves an entry name (empty means DefaultEntry) to its prompt.
func (p *Program) EntryPrompt(entry string) (*Prompt, error) {
	if entry == "" {
		entry = DefaultEntry
	}
	name, ok := p.Entries[entry]
	if !ok {
		return nil, &EntryError{Entry: entry}
	}
	prompt, ok := p.Prompts[name]
	if !ok {
		return nil, &EntryError{Entry: entry, Prompt: name}
	}
	return prompt, nil
}
