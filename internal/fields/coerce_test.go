package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	got, err := ParseType("switch")
	require.NoError(t, err)
	assert.Equal(t, TypeToggle, got)

	got, err = ParseType(" Tel ")
	require.NoError(t, err)
	assert.Equal(t, TypePhone, got)

	_, err = ParseType("signature")
	assert.Error(t, err)
}

func TestCoerceEmptyProducesNothing(t *testing.T) {
	for _, typ := range Types {
		for _, raw := range []any{nil, ""} {
			values, err := Coerce(typ, raw)
			require.NoError(t, err, "type %s raw %#v", typ, raw)
			assert.Empty(t, values, "type %s raw %#v", typ, raw)
		}
	}
}

func TestCoerceNumber(t *testing.T) {
	values, err := Coerce(TypeNumber, "42")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "42", values[0].String)
	require.NotNil(t, values[0].Numeric)
	assert.Equal(t, 42.0, *values[0].Numeric)
	assert.Nil(t, values[0].Boolean)

	values, err = Coerce(TypeNumber, 3.25)
	require.NoError(t, err)
	assert.Equal(t, "3.25", values[0].String)

	values, err = Coerce(TypeRating, " 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4.0, *values[0].Numeric)
}

func TestCoerceNumberRejectsNonNumeric(t *testing.T) {
	for _, raw := range []any{"not-a-number", "NaN", "Inf", true, []any{"1"}} {
		_, err := Coerce(TypeNumber, raw)
		var invalidErr *InvalidValueError
		require.ErrorAs(t, err, &invalidErr, "raw %#v", raw)
		assert.Equal(t, TypeNumber, invalidErr.Type)
	}
}

func TestCoerceToggle(t *testing.T) {
	cases := map[any]bool{
		true:    true,
		false:   false,
		"true":  true,
		"false": false,
		"off":   false,
		"yes":   true,
		1.0:     true,
		0.0:     false,
	}
	for raw, want := range cases {
		values, err := Coerce(TypeToggle, raw)
		require.NoError(t, err)
		require.Len(t, values, 1)
		require.NotNil(t, values[0].Boolean)
		assert.Equal(t, want, *values[0].Boolean, "raw %#v", raw)
		assert.Nil(t, values[0].Numeric)
	}
}

func TestCoerceCheckboxExpands(t *testing.T) {
	values, err := Coerce(TypeCheckbox, []any{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, values, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, values[i].String)
		assert.True(t, values[i].Multi)
		assert.Nil(t, values[i].Numeric)
		assert.Nil(t, values[i].Boolean)
	}

	_, err = Coerce(TypeCheckbox, "a")
	assert.Error(t, err)

	values, err = Coerce(TypeCheckbox, []any{"", nil})
	require.NoError(t, err)
	assert.Empty(t, values)

	// repeats collapse to one value each; 1 and "1" are the same stored value
	values, err = Coerce(TypeMultiselect, []any{"b", "a", "b", 1.0, "1", "a"})
	require.NoError(t, err)
	got := make([]string, len(values))
	for i, v := range values {
		got[i] = v.String
	}
	assert.Equal(t, []string{"b", "a", "1"}, got)
}

func TestCoerceStringTypes(t *testing.T) {
	values, err := Coerce(TypeText, 12.5)
	require.NoError(t, err)
	assert.Equal(t, "12.5", values[0].String)
	assert.Nil(t, values[0].Numeric)

	values, err = Coerce(TypeTextarea, map[string]any{"b": 1.0, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, values[0].String)
}

func TestCoerceIsDeterministic(t *testing.T) {
	raws := []any{"hello", 42.0, "17", true, []any{"x", "y"}, map[string]any{"z": 1.0, "a": []any{"q"}}}
	for _, typ := range Types {
		for _, raw := range raws {
			first, firstErr := Coerce(typ, raw)
			second, secondErr := Coerce(typ, raw)

			a, _ := json.Marshal(first)
			b, _ := json.Marshal(second)
			assert.Equal(t, string(a), string(b), "type %s raw %#v", typ, raw)
			assert.Equal(t, firstErr == nil, secondErr == nil)
		}
	}
}

func TestNormalizeChecks(t *testing.T) {
	lo, hi := 1.0, 5.0
	rating := Spec{Type: TypeRating, Settings: Settings{Min: &lo, Max: &hi}}
	_, err := Normalize(rating, 6.0)
	assert.Error(t, err)
	_, err = Normalize(rating, "3")
	assert.NoError(t, err)

	sel := Spec{Type: TypeSelect, Options: []Option{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}}}
	_, err = Normalize(sel, "maybe")
	assert.Error(t, err)
	_, err = Normalize(sel, "yes")
	assert.NoError(t, err)

	_, err = Normalize(Spec{Type: TypeEmail}, "not-an-email")
	assert.Error(t, err)
	_, err = Normalize(Spec{Type: TypeEmail}, "someone@example.com")
	assert.NoError(t, err)

	_, err = Normalize(Spec{Type: TypeDate}, "2026-02-30")
	assert.Error(t, err)
	_, err = Normalize(Spec{Type: TypeDatetime}, "2026-10-15T09:30")
	assert.NoError(t, err)
}

func TestSpecValidate(t *testing.T) {
	assert.Error(t, Spec{Type: "signature"}.Validate())
	assert.Error(t, Spec{Type: TypeRadio}.Validate())
	assert.Error(t, Spec{Type: TypeText, Options: []Option{{Value: "a"}}}.Validate())
	assert.Error(t, Spec{Type: TypeSelect, Options: []Option{{Value: "a"}, {Value: "a"}}}.Validate())

	lo, hi := 10.0, 1.0
	assert.Error(t, Spec{Type: TypeRange, Settings: Settings{Min: &lo, Max: &hi}}.Validate())
	assert.Error(t, Spec{Type: TypeText, Settings: Settings{Min: &lo}}.Validate())

	assert.NoError(t, Spec{Type: TypeCheckbox, Options: []Option{{Label: "A", Value: "a"}}}.Validate())
	assert.NoError(t, Spec{Type: TypeRange, Settings: Settings{Min: &hi, Max: &lo}}.Validate())
}
