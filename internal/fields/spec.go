package fields

import (
	"errors"
	"fmt"
	"strings"
)

// Option is one selectable choice of a choice-type field.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Settings holds the numeric bounds used by number, range and rating fields.
type Settings struct {
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
}

// IsZero reports whether no setting is present.
func (s Settings) IsZero() bool {
	return s.Min == nil && s.Max == nil && s.Step == nil
}

// Spec is the type-specific part of a field definition.
type Spec struct {
	Type     Type     `json:"type"`
	Options  []Option `json:"options,omitempty"`
	Settings Settings `json:"settings,omitempty"`
}

// Validate checks that the payload matches what the type allows.
func (s Spec) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown field type %q", s.Type)
	}

	if s.Type.HasOptions() {
		if len(s.Options) == 0 {
			return fmt.Errorf("%s field requires at least one option", s.Type)
		}
		seen := make(map[string]struct{}, len(s.Options))
		for i, o := range s.Options {
			if strings.TrimSpace(o.Value) == "" {
				return fmt.Errorf("option %d has an empty value", i)
			}
			if _, dup := seen[o.Value]; dup {
				return fmt.Errorf("duplicate option value %q", o.Value)
			}
			seen[o.Value] = struct{}{}
		}
	} else if len(s.Options) > 0 {
		return fmt.Errorf("%s field does not take options", s.Type)
	}

	if !s.Settings.IsZero() {
		if !s.Type.IsNumeric() {
			return fmt.Errorf("%s field does not take numeric settings", s.Type)
		}
		if s.Settings.Min != nil && s.Settings.Max != nil && *s.Settings.Min > *s.Settings.Max {
			return errors.New("min is greater than max")
		}
		if s.Settings.Step != nil && *s.Settings.Step <= 0 {
			return errors.New("step must be positive")
		}
	}

	return nil
}

func (s Spec) hasOption(value string) bool {
	for _, o := range s.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
