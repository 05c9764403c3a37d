package loam

import "github.com/aretw0/cogflow/internal/dto"

// ProgramDocument is the id of the optional document that carries the
// program-level settings.
const ProgramDocument = "program"

// Metadata is the front-matter of a document. The program document uses the
// program keys; every other document is a prompt whose body is its description.
type Metadata struct {
	// Program document.
	Desc    string                 `json:"desc" mapstructure:"desc"`
	Inputs  map[string]string      `json:"inputs" mapstructure:"inputs"`
	Entries map[string]string      `json:"entries" mapstructure:"entries"`
	Formats map[string]*dto.Format `json:"formats" mapstructure:"formats"`

	// Name overrides the program name in the program document and the
	// prompt name (derived from the file name) elsewhere.
	Name string `json:"name" mapstructure:"name"`

	// Prompt documents.
	Fields   []dto.Field   `json:"fields" mapstructure:"fields"`
	Channels []dto.Channel `json:"channels" mapstructure:"channels"`
	Flows    []dto.Flow    `json:"flows" mapstructure:"flows"`
}
