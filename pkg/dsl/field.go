package dsl

import "github.com/aretw0/intake/pkg/domain"

// FieldBuilder provides a fluent API for configuring a field.
type FieldBuilder struct {
	def domain.FieldDefinition
}

// Type sets the field type, which selects the validator.
func (f *FieldBuilder) Type(t domain.FieldType) *FieldBuilder {
	f.def.Type = t
	return f
}

// Optional marks the field as not required for completion.
func (f *FieldBuilder) Optional() *FieldBuilder {
	f.def.Required = false
	return f
}

// Pattern adds a custom regular expression the value must match.
func (f *FieldBuilder) Pattern(expr string) *FieldBuilder {
	f.def.Pattern = expr
	return f
}

// Hint sets the phrase used instead of the field label when asking for it.
func (f *FieldBuilder) Hint(hint string) *FieldBuilder {
	f.def.PromptHint = hint
	return f
}
