package convert

import (
	"encoding/json"
	"math"
	"slices"
	"sort"
	"strings"
)

// Kind is the declared type of a settable key.
type Kind int

const (
	KindAny Kind = iota
	KindBool
	KindEnum
	KindNumeric
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindEnum, KindString:
		return "string"
	case KindNumeric:
		return "number"
	}
	return "any"
}

// ValueSpec declares what values a converter accepts. Enum values are
// lowercase; input strings are case-folded before they are checked.
type ValueSpec struct {
	Kind   Kind
	Values []string // KindEnum
	Min    float64  // KindNumeric
	Max    float64  // KindNumeric
	Step   float64  // KindNumeric; zero accepts any value in range
}

// Bool accepts JSON booleans only.
func Bool() ValueSpec { return ValueSpec{Kind: KindBool} }

// Enum accepts the given lowercase tokens.
func Enum(values ...string) ValueSpec { return ValueSpec{Kind: KindEnum, Values: values} }

// Numeric accepts numbers in [min, max] that are a whole number of steps
// above min.
func Numeric(min, max, step float64) ValueSpec {
	return ValueSpec{Kind: KindNumeric, Min: min, Max: max, Step: step}
}

// Normalize checks v against the spec and returns its canonical form:
// lowercase for strings and float64 for numbers.
func (s ValueSpec) Normalize(key string, v any) (any, error) {
	switch s.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &TypeMismatchError{Key: key, Want: s.Kind.String(), Got: v}
		}
		return b, nil

	case KindEnum, KindString:
		str, ok := v.(string)
		if !ok {
			return nil, &TypeMismatchError{Key: key, Want: s.Kind.String(), Got: v}
		}
		if s.Kind == KindString {
			return str, nil
		}
		str = strings.ToLower(str)
		if !slices.Contains(s.Values, str) {
			return nil, &InvalidValueError{Key: key, Value: v, Allowed: s.Values}
		}
		return str, nil

	case KindNumeric:
		f, ok := toFloat(v)
		if !ok {
			return nil, &TypeMismatchError{Key: key, Want: s.Kind.String(), Got: v}
		}
		if math.IsNaN(f) || f < s.Min || f > s.Max || !s.onStep(f) {
			return nil, &InvalidValueError{Key: key, Value: v, Min: s.Min, Max: s.Max, Step: s.Step}
		}
		return f, nil
	}
	return v, nil
}

func (s ValueSpec) onStep(f float64) bool {
	if s.Step <= 0 {
		return true
	}
	n := (f - s.Min) / s.Step
	return math.Abs(n-math.Round(n)) < 1e-9
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// EnumTable maps lowercase tokens to wire codes.
type EnumTable map[string]int

// Keys returns the tokens ordered by code, then name.
func (t EnumTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if t[keys[i]] != t[keys[j]] {
			return t[keys[i]] < t[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Code returns the code of a token, case-insensitively.
func (t EnumTable) Code(token string) (int, bool) {
	code, ok := t[strings.ToLower(token)]
	return code, ok
}

// Name returns the token for a code.
func (t EnumTable) Name(code int) (string, bool) {
	for k, c := range t {
		if c == code {
			return k, true
		}
	}
	return "", false
}

// Only returns the subset of the table holding tokens. Unknown tokens are
// ignored.
func (t EnumTable) Only(tokens ...string) EnumTable {
	out := make(EnumTable, len(tokens))
	for _, tok := range tokens {
		if code, ok := t.Code(tok); ok {
			out[strings.ToLower(tok)] = code
		}
	}
	return out
}

// Spec returns a ValueSpec accepting exactly the table's tokens.
func (t EnumTable) Spec() ValueSpec { return Enum(t.Keys()...) }
