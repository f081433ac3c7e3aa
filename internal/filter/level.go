package filter

import (
	"regexp"
	"slices"
	"strings"

	"github.com/logstash-plugins/go-output-example/internal/event"
)

// Level is an event severity, ordered from least to most severe.
type Level int

const (
	LevelUnknown Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name, in any case, to a Level. Common aliases
// such as TRACE, WARNING, ERR and CRITICAL fold into the nearest Level.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG", "TRACE":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "ERR":
		return LevelError
	case "FATAL", "PANIC", "CRITICAL":
		return LevelFatal
	default:
		return LevelUnknown
	}
}

// levelWord finds the first level name standing as a word in a message.
var levelWord = regexp.MustCompile(`(?i)\b(DEBUG|TRACE|INFO|WARN(?:ING)?|ERR(?:OR)?|FATAL|PANIC|CRITICAL)\b`)

// LevelFilter passes events whose level is in a fixed set.
type LevelFilter struct {
	allowed map[Level]bool
}

// NewLevelFilter returns a filter over levels.
func NewLevelFilter(levels ...Level) *LevelFilter {
	allowed := make(map[Level]bool, len(levels))
	for _, l := range levels {
		allowed[l] = true
	}
	return &LevelFilter{allowed: allowed}
}

func (f *LevelFilter) Match(e *event.Event) bool {
	return f.allowed[EventLevel(e)]
}

func (f *LevelFilter) Name() string {
	var levels []string
	for l := range f.allowed {
		levels = append(levels, l.String())
	}
	slices.Sort(levels)
	return "level:" + strings.Join(levels, ",")
}

// EventLevel returns the level of e from its level field, falling back to
// detection in the message.
func EventLevel(e *event.Event) Level {
	if l := ParseLevel(e.GetString(event.FieldLevel)); l != LevelUnknown {
		return l
	}
	return DetectLevel(e.GetString(event.FieldMessage))
}

// DetectLevel returns the first level named in msg, or LevelUnknown.
func DetectLevel(msg string) Level {
	return ParseLevel(levelWord.FindString(msg))
}
