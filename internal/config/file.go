package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load and Default.
const (
	DefaultBatchSize  = 125
	DefaultBatchDelay = 50 * time.Millisecond
	DefaultInput      = "stdin"
	DefaultCodec      = "plain"
	DefaultOutput     = "go_output_example"
)

// File is the on-disk pipeline description.
type File struct {
	Input    Input    `yaml:"input"`
	Filter   Filter   `yaml:"filter"`
	Output   Output   `yaml:"output"`
	Pipeline Pipeline `yaml:"pipeline"`
}

// Input selects and configures the event source.
type Input struct {
	Type    string   `yaml:"type"`
	Path    string   `yaml:"path,omitempty"`
	Follow  bool     `yaml:"follow,omitempty"`
	Command []string `yaml:"command,omitempty"`
	Codec   string   `yaml:"codec"`
}

// Filter configures parsing and event selection before output.
type Filter struct {
	Grok     string   `yaml:"grok,omitempty"`
	Field    string   `yaml:"field,omitempty"` // read by keywords, exclude and regex; default message
	Keywords []string `yaml:"keywords,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"`
	Regex    []string `yaml:"regex,omitempty"`
	Levels   []string `yaml:"levels,omitempty"`
	MatchAll bool     `yaml:"match_all,omitempty"`
}

// Output names the registered output plugin and its settings.
type Output struct {
	Type     string         `yaml:"type"`
	ID       string         `yaml:"id,omitempty"`
	Path     string         `yaml:"path,omitempty"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Pipeline holds batching parameters.
type Pipeline struct {
	Name       string        `yaml:"name,omitempty"`
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
}

// Default returns a File with every default applied.
func Default() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// Load reads and validates a pipeline file.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Reason: "read pipeline file " + path, Err: err}
	}
	return Parse(b)
}

// Parse decodes a pipeline description and applies defaults.
func Parse(b []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Reason: "parse pipeline file", Err: err}
	}
	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks values that have no sensible default.
func (f *File) Validate() error {
	switch f.Input.Type {
	case "stdin":
	case "file":
		if f.Input.Path == "" {
			return &ConfigurationError{Setting: "input.path", Reason: "required for file input"}
		}
	case "exec":
		if len(f.Input.Command) == 0 {
			return &ConfigurationError{Setting: "input.command", Reason: "required for exec input"}
		}
	default:
		return &ConfigurationError{Setting: "input.type", Reason: fmt.Sprintf("unknown input %q", f.Input.Type)}
	}
	if f.Pipeline.BatchSize < 1 {
		return &ConfigurationError{Setting: "pipeline.batch_size", Reason: "must be at least 1"}
	}
	if f.Pipeline.BatchDelay < 0 {
		return &ConfigurationError{Setting: "pipeline.batch_delay", Reason: "must not be negative"}
	}
	return nil
}

func (f *File) applyDefaults() {
	if f.Input.Type == "" {
		f.Input.Type = DefaultInput
	}
	if f.Input.Codec == "" {
		f.Input.Codec = DefaultCodec
	}
	if f.Output.Type == "" {
		f.Output.Type = DefaultOutput
	}
	if f.Pipeline.Name == "" {
		f.Pipeline.Name = "main"
	}
	if f.Pipeline.BatchSize == 0 {
		f.Pipeline.BatchSize = DefaultBatchSize
	}
	if f.Pipeline.BatchDelay == 0 {
		f.Pipeline.BatchDelay = DefaultBatchDelay
	}
}
