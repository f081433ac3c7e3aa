// Package parser extracts structured fields from event messages.
package parser

import (
	"fmt"
	"regexp"

	"github.com/logstash-plugins/go-output-example/internal/event"
)

// builtinPatterns provides commonly used Grok-style named patterns.
var builtinPatterns = map[string]string{
	"IP":         `(?:\d{1,3}\.){3}\d{1,3}`,
	"IPV6":       `[0-9A-Fa-f:]+`,
	"WORD":       `\w+`,
	"INT":        `[+-]?\d+`,
	"NUMBER":     `[+-]?(?:\d+\.?\d*|\.\d+)`,
	"NOTSPACE":   `\S+`,
	"DATA":       `.*?`,
	"GREEDYDATA": `.*`,
	"TIMESTAMP":  `\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`,
	"LOGLEVEL":   `(?:DEBUG|INFO|WARN(?:ING)?|ERROR|ERR|FATAL|PANIC|CRITICAL|TRACE)`,
	"PATH":       `(?:/[\w.]+)+`,
	"URI":        `\S+://\S+`,
	"UUID":       `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"MAC":        `(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}`,
	"HTTPMETHOD": `(?:GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS|CONNECT|TRACE)`,
	"STATUSCODE": `\d{3}`,
	"QS":         `"[^"]*"`,
}

// grokToken matches %{PATTERN} and %{PATTERN:field} references.
var grokToken = regexp.MustCompile(`%\{(\w+)(?::(\w+))?\}`)

// GrokParser parses unstructured messages using Grok-style patterns.
// Pattern format: %{PATTERN_NAME:capture_name}
// Example: "%{IP:client} %{WORD:method} %{NOTSPACE:path} %{STATUSCODE:status}"
type GrokParser struct {
	pattern    string
	regex      *regexp.Regexp
	fieldNames []string // indexed like submatches; [0] is the whole match
}

// NewGrokParser compiles a Grok pattern string into a regex-based parser.
func NewGrokParser(pattern string) (*GrokParser, error) {
	regexStr, err := compileGrokPattern(pattern)
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile(regexStr)
	if err != nil {
		return nil, fmt.Errorf("compiled grok regex invalid: %w (regex: %s)", err, regexStr)
	}

	return &GrokParser{
		pattern:    pattern,
		regex:      re,
		fieldNames: re.SubexpNames(),
	}, nil
}

// TagFailure is added to events whose message does not match the pattern.
const TagFailure = "_grokparsefailure"

// Parse sets the captured fields on e.
// Returns false, tagging the event, if the pattern did not match.
func (g *GrokParser) Parse(e *event.Event) bool {
	matches := g.regex.FindStringSubmatch(e.GetString(event.FieldMessage))
	if matches == nil {
		e.AddTag(TagFailure)
		return false
	}

	for i, name := range g.fieldNames {
		if i > 0 && name != "" {
			e.SetField(name, matches[i])
		}
	}

	return true
}

// Pattern returns the original Grok pattern string.
func (g *GrokParser) Pattern() string {
	return g.pattern
}

// compileGrokPattern converts a Grok pattern to a Go regex with named groups.
// %{PATTERN_NAME:field_name} → (?P<field_name>regex_for_PATTERN_NAME)
// %{PATTERN_NAME} → (?:regex_for_PATTERN_NAME)
func compileGrokPattern(pattern string) (string, error) {
	var compileErr error
	result := grokToken.ReplaceAllStringFunc(pattern, func(tok string) string {
		m := grokToken.FindStringSubmatch(tok)
		builtinRegex, ok := builtinPatterns[m[1]]
		if !ok {
			if compileErr == nil {
				compileErr = fmt.Errorf("unknown grok pattern: %s", m[1])
			}
			return tok
		}
		if m[2] != "" {
			return fmt.Sprintf("(?P<%s>%s)", m[2], builtinRegex)
		}
		return fmt.Sprintf("(?:%s)", builtinRegex)
	})
	if compileErr != nil {
		return "", compileErr
	}
	return result, nil
}
