package flow

import (
	"encoding/json"
	"fmt"
)

// FieldType identifies the input widget a form field renders as. The set
// mirrors what hub integrations put in their data schemas; unknown types
// fall back to free text entry rather than failing the step.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldInteger  FieldType = "integer"
	FieldFloat    FieldType = "float"
	FieldBoolean  FieldType = "boolean"
	FieldSelect   FieldType = "select"
	FieldPassword FieldType = "password"
)

// Field describes one input of a form step's data schema. Order within the
// schema is significant and preserved end to end.
type Field struct {
	// Name is the key under which the value is submitted.
	Name string `json:"name"`

	// Type selects the input widget. Empty means string.
	Type FieldType `json:"type,omitempty"`

	// Required fields block submission while empty.
	Required bool `json:"required,omitempty"`

	// Default prefills the input.
	Default any `json:"default,omitempty"`

	// Options lists the allowed values for select fields.
	Options []string `json:"options,omitempty"`

	// Description is a label key resolved through the catalog.
	Description string `json:"description,omitempty"`
}

// RequiredFieldsMessage is shown when a form submit is blocked because a
// required field is empty.
const RequiredFieldsMessage = "Not all required fields are filled in"

// ValidateInput checks user input against the schema before it is sent to
// the server. A blocked submit never reaches the network: required fields
// must be present and non-empty, select fields must use a listed option,
// and numeric fields must carry numeric values.
func ValidateInput(schema []Field, input map[string]any) error {
	for _, field := range schema {
		value, ok := input[field.Name]
		if !ok || isEmptyValue(value) {
			if field.Required {
				return NewValidationError(RequiredFieldsMessage)
			}
			continue
		}

		switch field.Type {
		case FieldSelect:
			s, ok := value.(string)
			if !ok {
				return NewValidationError(fmt.Sprintf("field %q expects one of its options", field.Name))
			}
			if len(field.Options) > 0 && !containsOption(field.Options, s) {
				return NewValidationError(fmt.Sprintf("field %q has no option %q", field.Name, s))
			}

		case FieldInteger:
			switch v := value.(type) {
			case int, int64, uint64:
			case float64:
				if v != float64(int64(v)) {
					return NewValidationError(fmt.Sprintf("field %q expects an integer", field.Name))
				}
			case json.Number:
				if _, err := v.Int64(); err != nil {
					return NewValidationError(fmt.Sprintf("field %q expects an integer", field.Name))
				}
			default:
				return NewValidationError(fmt.Sprintf("field %q expects an integer", field.Name))
			}

		case FieldFloat:
			switch v := value.(type) {
			case float64, int, int64:
			case json.Number:
				if _, err := v.Float64(); err != nil {
					return NewValidationError(fmt.Sprintf("field %q expects a number", field.Name))
				}
			default:
				return NewValidationError(fmt.Sprintf("field %q expects a number", field.Name))
			}

		case FieldBoolean:
			if _, ok := value.(bool); !ok {
				return NewValidationError(fmt.Sprintf("field %q expects true or false", field.Name))
			}
		}
	}

	return nil
}

// isEmptyValue reports whether a submitted value counts as absent for
// required-field purposes. False and zero are legitimate values.
func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
