// Package config holds plugin settings and the pipeline file format.
package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Type names reported by Setting.Type.
const (
	TypeString = "string"
	TypeBool   = "boolean"
	TypeNumber = "number"
)

// Configuration is the key/value settings handed to a plugin at construction.
type Configuration struct {
	values map[string]any
}

// New creates a configuration holding a copy of values.
func New(values map[string]any) *Configuration {
	c := &Configuration{values: make(map[string]any, len(values))}
	maps.Copy(c.values, values)
	return c
}

// Raw returns the value stored under name and whether it was set.
func (c *Configuration) Raw(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[name]
	return v, ok
}

// Keys returns the configured setting names in sorted order.
func (c *Configuration) Keys() []string {
	if c == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(c.values))
}

// Setting describes one recognized configuration option.
type Setting interface {
	Name() string
	Type() string
	Default() any
	Required() bool
	accepts(v any) bool
}

// Spec is a typed Setting.
type Spec[T any] struct {
	name     string
	typ      string
	def      T
	required bool
	convert  func(any) (T, bool)
}

func (s Spec[T]) Name() string   { return s.name }
func (s Spec[T]) Type() string   { return s.typ }
func (s Spec[T]) Default() any   { return s.def }
func (s Spec[T]) Required() bool { return s.required }

func (s Spec[T]) accepts(v any) bool {
	_, ok := s.convert(v)
	return ok
}

// StringSetting declares an optional string option.
func StringSetting(name, def string) Spec[string] {
	return Spec[string]{name: name, typ: TypeString, def: def, convert: toString}
}

// RequiredStringSetting declares a string option that must be configured.
func RequiredStringSetting(name string) Spec[string] {
	return Spec[string]{name: name, typ: TypeString, required: true, convert: toString}
}

// BoolSetting declares an optional boolean option.
func BoolSetting(name string, def bool) Spec[bool] {
	return Spec[bool]{name: name, typ: TypeBool, def: def, convert: toBool}
}

// NumberSetting declares an optional numeric option.
func NumberSetting(name string, def float64) Spec[float64] {
	return Spec[float64]{name: name, typ: TypeNumber, def: def, convert: toNumber}
}

// Get returns the configured value for spec, or its default when unset.
func Get[T any](c *Configuration, spec Spec[T]) (T, error) {
	raw, ok := c.Raw(spec.name)
	if !ok || raw == nil {
		if spec.required {
			var zero T
			return zero, &ConfigurationError{Setting: spec.name, Reason: "required setting is missing"}
		}
		return spec.def, nil
	}
	v, ok := spec.convert(raw)
	if !ok {
		var zero T
		return zero, &ConfigurationError{
			Setting: spec.name,
			Reason:  fmt.Sprintf("expected %s, got %T", spec.typ, raw),
		}
	}
	return v, nil
}

// Validate checks c against schema: every key must be recognized, every
// required setting present and every value of the declared type.
func Validate(c *Configuration, schema []Setting) error {
	known := make(map[string]Setting, len(schema))
	for _, s := range schema {
		known[s.Name()] = s
	}

	var unknown []string
	for _, k := range c.Keys() {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return &ConfigurationError{
			Setting: strings.Join(unknown, ","),
			Reason:  "unknown setting",
		}
	}

	for _, s := range schema {
		raw, ok := c.Raw(s.Name())
		if !ok || raw == nil {
			if s.Required() {
				return &ConfigurationError{Setting: s.Name(), Reason: "required setting is missing"}
			}
			continue
		}
		if !s.accepts(raw) {
			return &ConfigurationError{
				Setting: s.Name(),
				Reason:  fmt.Sprintf("expected %s, got %T", s.Type(), raw),
			}
		}
	}
	return nil
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
