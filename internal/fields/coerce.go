package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Value is the normalized storage form of one answer. String is always set;
// Numeric and Boolean are only set for types where they are authoritative.
type Value struct {
	String  string   `json:"stringValue"`
	Numeric *float64 `json:"numericValue"`
	Boolean *bool    `json:"booleanValue"`
	Multi   bool     `json:"isMultiValue"`
}

// InvalidValueError reports a raw value that cannot be coerced to its field type.
type InvalidValueError struct {
	Type   Type
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s value: %s", e.Type, e.Reason)
}

func invalid(t Type, format string, args ...any) error {
	return &InvalidValueError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

// IsEmpty reports whether raw counts as "not answered".
func IsEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}

// Coerce maps a raw submitted value to its normalized values according to t.
// An unanswered value yields no values and no error. Multi-value types yield
// one value per distinct non-empty element, in first-seen order.
func Coerce(t Type, raw any) ([]Value, error) {
	if IsEmpty(raw) {
		return nil, nil
	}

	switch {
	case t.IsNumeric():
		f, err := toFloat(raw)
		if err != nil {
			return nil, invalid(t, "%v", err)
		}
		return []Value{{String: formatFloat(f), Numeric: &f}}, nil

	case t.IsBoolean():
		b := truthy(raw)
		return []Value{{String: strconv.FormatBool(b), Boolean: &b}}, nil

	case t.IsMulti():
		items, ok := toSlice(raw)
		if !ok {
			return nil, invalid(t, "expected an array, got %T", raw)
		}
		values := make([]Value, 0, len(items))
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			if IsEmpty(item) {
				continue
			}
			s := Stringify(item)
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			values = append(values, Value{String: s, Multi: true})
		}
		if len(values) == 0 {
			return nil, nil
		}
		return values, nil

	case t.Valid():
		return []Value{{String: Stringify(raw)}}, nil
	}

	return nil, invalid(t, "unknown field type")
}

// Normalize coerces raw for the field described by spec and applies the
// per-type checks: option membership, numeric bounds and text formats.
func Normalize(spec Spec, raw any) ([]Value, error) {
	values, err := Coerce(spec.Type, raw)
	if err != nil || len(values) == 0 {
		return values, err
	}

	for _, v := range values {
		if err := check(spec, v); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func check(spec Spec, v Value) error {
	t := spec.Type

	if t.HasOptions() && len(spec.Options) > 0 && !spec.hasOption(v.String) {
		return invalid(t, "%q is not one of the field options", v.String)
	}

	if v.Numeric != nil {
		if lo := spec.Settings.Min; lo != nil && *v.Numeric < *lo {
			return invalid(t, "%s is below the minimum %s", v.String, formatFloat(*lo))
		}
		if hi := spec.Settings.Max; hi != nil && *v.Numeric > *hi {
			return invalid(t, "%s is above the maximum %s", v.String, formatFloat(*hi))
		}
	}

	switch t {
	case TypeEmail:
		if err := validate.Var(v.String, "email"); err != nil {
			return invalid(t, "%q is not an email address", v.String)
		}
	case TypeURL:
		if err := validate.Var(v.String, "url"); err != nil {
			return invalid(t, "%q is not a URL", v.String)
		}
	case TypeDate:
		if !parsesAs(v.String, "2006-01-02") {
			return invalid(t, "%q is not a date (YYYY-MM-DD)", v.String)
		}
	case TypeTime:
		if !parsesAs(v.String, "15:04", "15:04:05") {
			return invalid(t, "%q is not a time (HH:MM)", v.String)
		}
	case TypeDatetime:
		if !parsesAs(v.String, time.RFC3339, "2006-01-02T15:04", "2006-01-02T15:04:05") {
			return invalid(t, "%q is not a date and time", v.String)
		}
	}
	return nil
}

func parsesAs(s string, layouts ...string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Stringify renders a raw value as text. Numbers use their shortest decimal
// form; arrays and objects are encoded as JSON with sorted keys.
func Stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprint(raw)
	}
	return string(b)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toFloat(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not a finite number", formatFloat(f))
	}
	return f, nil
}

func truthy(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "0", "off", "no":
			return false
		}
		return true
	case float64:
		return v != 0
	case int:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	}
	return raw != nil
}

func toSlice(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, true
	}
	return nil, false
}
