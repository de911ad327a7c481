// Package fields defines the form field taxonomy: the closed set of field
// types, the per-type payload a field definition may carry, and the coercion
// of submitted raw values into their normalized storage representation.
package fields

import (
	"fmt"
	"strings"
)

// Type is the declared input type of a form field.
type Type string

const (
	TypeText        Type = "text"
	TypeEmail       Type = "email"
	TypeTextarea    Type = "textarea"
	TypeNumber      Type = "number"
	TypePhone       Type = "phone"
	TypeURL         Type = "url"
	TypeCheckbox    Type = "checkbox"
	TypeSelect      Type = "select"
	TypeMultiselect Type = "multiselect"
	TypeRadio       Type = "radio"
	TypeDate        Type = "date"
	TypeTime        Type = "time"
	TypeDatetime    Type = "datetime"
	TypeFile        Type = "file"
	TypeRange       Type = "range"
	TypeRating      Type = "rating"
	TypeToggle      Type = "toggle"
)

// Types lists every canonical field type.
var Types = []Type{
	TypeText, TypeEmail, TypeTextarea, TypeNumber, TypePhone, TypeURL,
	TypeCheckbox, TypeSelect, TypeMultiselect, TypeRadio, TypeDate, TypeTime,
	TypeDatetime, TypeFile, TypeRange, TypeRating, TypeToggle,
}

// legacy type names still sent by older clients
var aliases = map[string]Type{
	"switch": TypeToggle,
	"tel":    TypePhone,
}

// ParseType returns the canonical Type for name, resolving legacy aliases.
// Unknown names are rejected rather than defaulted.
func ParseType(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if t, ok := aliases[n]; ok {
		return t, nil
	}
	for _, t := range Types {
		if string(t) == n {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown field type %q", name)
}

// Valid reports whether t is a canonical type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// HasOptions reports whether answers to t are picked from a list of options.
func (t Type) HasOptions() bool {
	switch t {
	case TypeSelect, TypeRadio, TypeCheckbox, TypeMultiselect:
		return true
	}
	return false
}

// IsMulti reports whether t takes an array of answers.
func (t Type) IsMulti() bool {
	return t == TypeCheckbox || t == TypeMultiselect
}

// IsNumeric reports whether t carries an authoritative numeric value.
func (t Type) IsNumeric() bool {
	switch t {
	case TypeNumber, TypeRange, TypeRating:
		return true
	}
	return false
}

// IsBoolean reports whether t carries an authoritative boolean value.
func (t Type) IsBoolean() bool {
	return t == TypeToggle
}
