// Package conditions evaluates the conditional logic attached to form fields:
// which fields are visible, and therefore required, given a set of answers.
package conditions

import (
	"fmt"
	"strings"

	"github.com/localnerve/formsdb/internal/fields"
)

// Condition is the comparison a Rule applies to its dependency's answer.
type Condition string

const (
	Equals      Condition = "equals"
	NotEquals   Condition = "not_equals"
	Contains    Condition = "contains"
	NotContains Condition = "not_contains"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case Equals, NotEquals, Contains, NotContains:
		return true
	}
	return false
}

// Rule shows a field only when the answer to DependsOn satisfies Condition against Value.
type Rule struct {
	DependsOn string    `json:"dependsOn"`
	Condition Condition `json:"condition"`
	Value     any       `json:"value"`
}

// Field is the part of a form field the evaluator needs.
type Field struct {
	ID       string
	Required bool
	Rule     *Rule
}

// Holds reports whether answer satisfies the rule. An absent answer compares
// as the empty string. Array answers match when any element matches.
func (r Rule) Holds(answer any) bool {
	want := fields.Stringify(r.Value)
	candidates := answerStrings(answer)

	switch r.Condition {
	case Equals:
		return anyOf(candidates, func(s string) bool { return s == want })
	case NotEquals:
		return !anyOf(candidates, func(s string) bool { return s == want })
	case Contains:
		return anyOf(candidates, func(s string) bool { return strings.Contains(s, want) })
	case NotContains:
		return !anyOf(candidates, func(s string) bool { return strings.Contains(s, want) })
	}
	return false
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %q", r.DependsOn, r.Condition, fields.Stringify(r.Value))
}

func answerStrings(answer any) []string {
	switch v := answer.(type) {
	case []any:
		if len(v) == 0 {
			return []string{""}
		}
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fields.Stringify(item)
		}
		return out
	case []string:
		if len(v) == 0 {
			return []string{""}
		}
		return v
	}
	return []string{fields.Stringify(answer)}
}

func anyOf(items []string, match func(string) bool) bool {
	for _, s := range items {
		if match(s) {
			return true
		}
	}
	return false
}
