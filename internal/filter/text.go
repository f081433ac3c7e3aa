package filter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/logstash-plugins/go-output-example/internal/event"
)

// DefaultField is the field text filters read when built with "".
const DefaultField = event.FieldMessage

// Text matches the text of a single field. Strings, numbers and booleans
// are compared in their JSON text form; an array field such as tags passes
// when any of its elements does. Objects never match.
type Text struct {
	field  string
	kind   string
	arg    string
	test   func(string) bool
	negate bool
}

// Keyword passes events whose field contains substr.
func Keyword(field, substr string) *Text {
	return newText(field, "keyword", substr, func(s string) bool {
		return strings.Contains(s, substr)
	})
}

// Regex passes events whose field matches pattern.
func Regex(field, pattern string) (*Text, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return newText(field, "regex", pattern, re.MatchString), nil
}

// Exclude drops events whose field contains any of substrs. Events without
// the field pass.
func Exclude(field string, substrs ...string) *Text {
	t := newText(field, "exclude", strings.Join(substrs, ","), func(s string) bool {
		return slices.ContainsFunc(substrs, func(sub string) bool { return strings.Contains(s, sub) })
	})
	t.negate = true
	return t
}

func newText(field, kind, arg string, test func(string) bool) *Text {
	if field == "" {
		field = DefaultField
	}
	return &Text{field: field, kind: kind, arg: arg, test: test}
}

// Field returns the field the filter reads.
func (t *Text) Field() string {
	return t.field
}

func (t *Text) Match(e *event.Event) bool {
	return slices.ContainsFunc(texts(e, t.field), t.test) != t.negate
}

// Name renders the filter as kind[field]:arg.
func (t *Text) Name() string {
	return t.kind + "[" + t.field + "]:" + t.arg
}

func texts(e *event.Event, field string) []string {
	v, ok := e.GetField(field)
	if !ok {
		return nil
	}
	switch v := v.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := scalar(x); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := scalar(v); ok {
		return []string{s}
	}
	return nil
}

func scalar(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}
