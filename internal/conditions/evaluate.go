package conditions

import (
	"fmt"
	"sort"

	"github.com/localnerve/formsdb/internal/types"
)

// Visibility is the evaluated state of one field.
type Visibility struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
}

// Result maps field id to its visibility.
type Result map[string]Visibility

// Visible reports whether id is visible. Ids not in the result are not.
func (r Result) Visible(id string) bool {
	return r[id].Visible
}

// ValidateGraph checks every rule of a form's field set: known condition, no
// self dependency, dependency within the set, and no cycles.
func ValidateGraph(list []Field) error {
	ids := make(map[string]struct{}, len(list))
	for _, f := range list {
		if _, dup := ids[f.ID]; dup {
			return &types.ConfigurationError{FieldIDs: []string{f.ID}, Reason: "duplicate field id"}
		}
		ids[f.ID] = struct{}{}
	}

	for _, f := range list {
		if f.Rule == nil {
			continue
		}
		r := f.Rule
		switch {
		case !r.Condition.Valid():
			return &types.ConfigurationError{FieldIDs: []string{f.ID}, Reason: fmt.Sprintf("unknown condition %q", r.Condition)}
		case r.DependsOn == "":
			return &types.ConfigurationError{FieldIDs: []string{f.ID}, Reason: "dependsOn is empty"}
		case r.DependsOn == f.ID:
			return &types.ConfigurationError{FieldIDs: []string{f.ID}, Reason: "field depends on itself"}
		}
		if _, ok := ids[r.DependsOn]; !ok {
			return &types.ConfigurationError{
				FieldIDs: []string{f.ID},
				Reason:   fmt.Sprintf("depends on unknown field %q", r.DependsOn),
			}
		}
	}

	_, err := order(list)
	return err
}

// Evaluate computes the visibility of every field for the given answers.
// Fields are resolved in dependency order so that a field whose dependency is
// hidden is hidden as well.
func Evaluate(list []Field, answers map[string]any) (Result, error) {
	sorted, err := order(list)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(list))
	for _, f := range list {
		known[f.ID] = struct{}{}
	}

	result := make(Result, len(list))
	for _, f := range sorted {
		visible := true
		if r := f.Rule; r != nil {
			visible = r.Holds(answers[r.DependsOn])
			if _, ok := known[r.DependsOn]; ok {
				visible = visible && result[r.DependsOn].Visible
			}
		}
		result[f.ID] = Visibility{Visible: visible, Required: f.Required && visible}
	}
	return result, nil
}

// order sorts fields so every dependency precedes its dependents (Kahn's
// algorithm). Dependencies outside the set impose no ordering. Fields left
// over once no more can be released sit on a cycle.
func order(list []Field) ([]Field, error) {
	byID := make(map[string]Field, len(list))
	for _, f := range list {
		byID[f.ID] = f
	}

	indegree := make(map[string]int, len(list))
	dependents := make(map[string][]string)
	for _, f := range list {
		indegree[f.ID] += 0
		if f.Rule == nil {
			continue
		}
		if _, ok := byID[f.Rule.DependsOn]; !ok {
			continue
		}
		indegree[f.ID]++
		dependents[f.Rule.DependsOn] = append(dependents[f.Rule.DependsOn], f.ID)
	}

	queue := make([]string, 0, len(list))
	for _, f := range list {
		if indegree[f.ID] == 0 {
			queue = append(queue, f.ID)
		}
	}

	sorted := make([]Field, 0, len(list))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byID[id])
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) < len(byID) {
		var cycle []string
		for id, n := range indegree {
			if n > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, &types.ConfigurationError{FieldIDs: cycle, Reason: "conditional logic forms a dependency cycle"}
	}
	return sorted, nil
}
