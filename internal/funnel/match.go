package funnel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// MatchKind discriminates how a constraint value is compared.
type MatchKind int

const (
	// MatchEquals compares for exact equality.
	MatchEquals MatchKind = iota
	// MatchPattern compares with a SQL LIKE pattern ("%" wildcard).
	MatchPattern
	// MatchOneOf compares against a set of allowed values.
	MatchOneOf
)

// MatchValue is a parsed constraint on an event column or parameter. The
// kind is decided once when the definition is parsed, never re-inferred at
// render time.
type MatchValue struct {
	Kind   MatchKind
	Value  string
	Values []string
}

// Equals builds an exact-equality match.
func Equals(v string) MatchValue {
	return MatchValue{Kind: MatchEquals, Value: v}
}

// Pattern builds a LIKE-pattern match.
func Pattern(v string) MatchValue {
	return MatchValue{Kind: MatchPattern, Value: v}
}

// OneOf builds a set-membership match.
func OneOf(vs ...string) MatchValue {
	return MatchValue{Kind: MatchOneOf, Values: vs}
}

// ParseMatch converts a raw definition value into a MatchValue. Strings
// containing "%" become patterns, lists become set matches, and scalars
// become equality matches on their canonical string form.
func ParseMatch(raw any) (MatchValue, error) {
	switch v := raw.(type) {
	case string:
		if strings.Contains(v, "%") {
			return Pattern(v), nil
		}
		return Equals(v), nil
	case []any:
		if len(v) == 0 {
			return MatchValue{}, eris.Wrap(ErrValidation, "funnel: empty value list")
		}
		vals := make([]string, 0, len(v))
		for _, item := range v {
			s, err := canonicalScalar(item)
			if err != nil {
				return MatchValue{}, err
			}
			vals = append(vals, s)
		}
		return OneOf(vals...), nil
	default:
		s, err := canonicalScalar(raw)
		if err != nil {
			return MatchValue{}, err
		}
		return Equals(s), nil
	}
}

// canonicalScalar renders a YAML scalar as the string form used in
// comparisons. Event parameters are compared as strings regardless of how
// the definition spelled them.
func canonicalScalar(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", eris.Wrapf(ErrValidation, "funnel: unsupported value type %T", raw)
	}
}

// String renders the match for logs and error messages.
func (m MatchValue) String() string {
	switch m.Kind {
	case MatchPattern:
		return fmt.Sprintf("like %q", m.Value)
	case MatchOneOf:
		return fmt.Sprintf("in %v", m.Values)
	default:
		return fmt.Sprintf("= %q", m.Value)
	}
}
