package conditions

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/formsdb/internal/types"
)

func ruled(id, dependsOn string, c Condition, value any) Field {
	return Field{ID: id, Rule: &Rule{DependsOn: dependsOn, Condition: c, Value: value}}
}

func TestEvaluateConditions(t *testing.T) {
	cases := []struct {
		condition Condition
		answer    any
		visible   bool
	}{
		{Equals, "yes", true},
		{Equals, "no", false},
		{Equals, nil, false},
		{NotEquals, "yes", false},
		{NotEquals, "no", true},
		{NotEquals, nil, true},
		{Contains, "oh yes please", true},
		{Contains, "nope", false},
		{Contains, nil, false},
		{NotContains, "oh yes please", false},
		{NotContains, "nope", true},
		{NotContains, nil, true},
	}

	for _, tc := range cases {
		list := []Field{{ID: "A"}, ruled("B", "A", tc.condition, "yes")}
		answers := map[string]any{}
		if tc.answer != nil {
			answers["A"] = tc.answer
		}

		result, err := Evaluate(list, answers)
		require.NoError(t, err)
		assert.True(t, result.Visible("A"))
		assert.Equal(t, tc.visible, result.Visible("B"), "%s with answer %#v", tc.condition, tc.answer)
	}
}

func TestEvaluateTransitiveHiding(t *testing.T) {
	// listed out of dependency order on purpose
	list := []Field{
		ruled("C", "B", NotEquals, "anything"),
		ruled("B", "A", Equals, "yes"),
		{ID: "A"},
	}
	list[0].Required = true

	result, err := Evaluate(list, map[string]any{"A": "no", "B": "something"})
	require.NoError(t, err)

	want := Result{
		"A": {Visible: true},
		"B": {Visible: false},
		"C": {Visible: false, Required: false},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}

	result, err = Evaluate(list, map[string]any{"A": "yes", "B": "something"})
	require.NoError(t, err)
	assert.Equal(t, Visibility{Visible: true, Required: true}, result["C"])
}

func TestEvaluateArrayAnswers(t *testing.T) {
	list := []Field{{ID: "A"}, ruled("B", "A", Equals, "red"), ruled("C", "A", NotContains, "blu")}

	result, err := Evaluate(list, map[string]any{"A": []any{"green", "red"}})
	require.NoError(t, err)
	assert.True(t, result.Visible("B"))
	assert.True(t, result.Visible("C"))

	result, err = Evaluate(list, map[string]any{"A": []any{"blue"}})
	require.NoError(t, err)
	assert.False(t, result.Visible("B"))
	assert.False(t, result.Visible("C"))
}

func TestEvaluateNumericRuleValue(t *testing.T) {
	list := []Field{{ID: "age"}, ruled("guardian", "age", Equals, 17.0)}

	result, err := Evaluate(list, map[string]any{"age": "17"})
	require.NoError(t, err)
	assert.True(t, result.Visible("guardian"))
}

func TestEvaluateMissingDependency(t *testing.T) {
	list := []Field{ruled("B", "gone", Equals, "x")}

	result, err := Evaluate(list, map[string]any{"gone": "x"})
	require.NoError(t, err)
	assert.True(t, result.Visible("B"))

	result, err = Evaluate(list, nil)
	require.NoError(t, err)
	assert.False(t, result.Visible("B"))
}

func TestEvaluateCycle(t *testing.T) {
	list := []Field{
		{ID: "root"},
		ruled("A", "B", Equals, "x"),
		ruled("B", "A", Equals, "x"),
	}

	_, err := Evaluate(list, nil)
	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"A", "B"}, cfgErr.FieldIDs)
}

func TestValidateGraph(t *testing.T) {
	assert.NoError(t, ValidateGraph([]Field{{ID: "A"}, ruled("B", "A", Contains, "x")}))

	bad := map[string][]Field{
		"self":      {ruled("A", "A", Equals, "x")},
		"unknown":   {ruled("A", "B", Equals, "x")},
		"condition": {{ID: "A"}, ruled("B", "A", "greater_than", "x")},
		"empty":     {ruled("A", "", Equals, "x")},
		"duplicate": {{ID: "A"}, {ID: "A"}},
		"cycle":     {ruled("A", "C", Equals, "x"), ruled("B", "A", Equals, "x"), ruled("C", "B", Equals, "x")},
	}
	for name, list := range bad {
		err := ValidateGraph(list)
		var cfgErr *types.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr, name)
	}
}
