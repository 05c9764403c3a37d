package domain

// Syntax holds the literal strings used to render prompts.
type Syntax struct {
	HeaderMechanic string `json:"header_mechanic" yaml:"header_mechanic" mapstructure:"header_mechanic"`
	HeaderFormats  string `json:"header_formats" yaml:"header_formats" mapstructure:"header_formats"`
	FormatListing  string `json:"format_listing" yaml:"format_listing" mapstructure:"format_listing"`
	PromptIndent   string `json:"prompt_indent" yaml:"prompt_indent" mapstructure:"prompt_indent"`

	// HeaderPre and HeaderPost wrap the header, e.g. chat template markers.
	HeaderPre  string `json:"header_pre" yaml:"header_pre" mapstructure:"header_pre"`
	HeaderPost string `json:"header_post" yaml:"header_post" mapstructure:"header_post"`

	// ZeroIndex renders list indices (and select candidates) starting at 0.
	ZeroIndex bool `json:"zero_index" yaml:"zero_index" mapstructure:"zero_index"`
}

// DefaultSyntax returns the standard rendering.
func DefaultSyntax() Syntax {
	return Syntax{
		HeaderMechanic: "You are using the following syntax:",
		HeaderFormats:  "It includes the following named formats:",
		FormatListing:  "- ",
		PromptIndent:   "> ",
	}
}
