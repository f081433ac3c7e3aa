package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/config"
	"github.com/logstash-plugins/go-output-example/internal/filter"
	"github.com/logstash-plugins/go-output-example/internal/logging"
	"github.com/logstash-plugins/go-output-example/internal/monitor"
	"github.com/logstash-plugins/go-output-example/internal/parser"
	"github.com/logstash-plugins/go-output-example/internal/pipeline"
	"github.com/logstash-plugins/go-output-example/internal/plugin"
	"github.com/logstash-plugins/go-output-example/internal/source"
	"github.com/logstash-plugins/go-output-example/internal/stream"
)

type runOptions struct {
	configPath string
	input      string
	path       string
	follow     bool
	codec      string
	prefix     string
	output     string
	outputType string
	batchSize  int
	batchDelay time.Duration
	grok       string
	field      string
	keywords   []string
	exclude    []string
	regex      []string
	levels     []string
	matchAll   bool
	logLevel   string
	stats      bool
}

func newRunCmd() *cobra.Command {
	cmd, _ := newRunCmdWithOptions()
	return cmd
}

func newRunCmdWithOptions() (*cobra.Command, *runOptions) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command args...]",
		Short: "Run a pipeline into an output",
		Example: `  tail -f app.log | gooutput run --prefix 'app> '
  gooutput run --input file --path app.log --codec logfmt --level error
  gooutput run --input exec -- docker logs -f web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.pipelineFile(cmd, args)
			if err != nil {
				return err
			}
			return opts.run(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "pipeline file (YAML); flags override its values")
	flags.StringVarP(&opts.input, "input", "i", config.DefaultInput, "input: stdin, file or exec")
	flags.StringVar(&opts.path, "path", "", "file to read with --input file")
	flags.BoolVarP(&opts.follow, "follow", "f", false, "keep reading appended lines with --input file")
	flags.StringVar(&opts.codec, "codec", config.DefaultCodec, "line codec: plain, json or logfmt")
	flags.StringVarP(&opts.prefix, "prefix", "p", "", "prefix for every output line")
	flags.StringVarP(&opts.output, "output", "o", "-", "stream to write to; - is stdout")
	flags.StringVar(&opts.outputType, "output-type", config.DefaultOutput, "registered output to use")
	flags.IntVar(&opts.batchSize, "batch-size", config.DefaultBatchSize, "maximum events per batch")
	flags.DurationVar(&opts.batchDelay, "batch-delay", config.DefaultBatchDelay, "flush partial batches this often")
	flags.StringVar(&opts.grok, "grok", "", "grok pattern applied to the message, e.g. '%{LOGLEVEL:level} %{GREEDYDATA:text}'")
	flags.StringVar(&opts.field, "field", "", "event field read by --keyword, --exclude and --regex (default message)")
	flags.StringSliceVarP(&opts.keywords, "keyword", "k", nil, "keep events whose message contains keyword")
	flags.StringSliceVarP(&opts.exclude, "exclude", "x", nil, "drop events whose message contains pattern")
	flags.StringSliceVarP(&opts.regex, "regex", "e", nil, "keep events whose message matches regex")
	flags.StringSliceVarP(&opts.levels, "level", "l", nil, "keep events at these levels")
	flags.BoolVar(&opts.matchAll, "match-all", false, "require every filter to match instead of any")
	flags.StringVar(&opts.logLevel, "log-level", "info", "driver log level: debug, info, warn, error")
	flags.BoolVar(&opts.stats, "stats", false, "print a summary when the pipeline ends")
	return cmd, opts
}

// pipelineFile loads --config, if any, and applies the flags the user set.
func (o *runOptions) pipelineFile(cmd *cobra.Command, args []string) (*config.File, error) {
	f := config.Default()
	if o.configPath != "" {
		var err error
		if f, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	set := cmd.Flags().Changed
	if set("input") {
		f.Input.Type = o.input
	}
	if set("path") {
		f.Input.Path = o.path
	}
	if set("follow") {
		f.Input.Follow = o.follow
	}
	if set("codec") {
		f.Input.Codec = o.codec
	}
	if len(args) > 0 {
		f.Input.Command = args
	}
	if set("output") {
		f.Output.Path = o.output
	}
	if set("output-type") {
		f.Output.Type = o.outputType
	}
	if set("prefix") {
		settings := maps.Clone(f.Output.Settings)
		if settings == nil {
			settings = make(map[string]any, 1)
		}
		settings["prefix"] = o.prefix
		f.Output.Settings = settings
	}
	if set("batch-size") {
		f.Pipeline.BatchSize = o.batchSize
	}
	if set("batch-delay") {
		f.Pipeline.BatchDelay = o.batchDelay
	}
	if set("grok") {
		f.Filter.Grok = o.grok
	}
	if set("field") {
		f.Filter.Field = o.field
	}
	f.Filter.Keywords = append(f.Filter.Keywords, o.keywords...)
	f.Filter.Exclude = append(f.Filter.Exclude, o.exclude...)
	f.Filter.Regex = append(f.Filter.Regex, o.regex...)
	f.Filter.Levels = append(f.Filter.Levels, o.levels...)
	if set("match-all") {
		f.Filter.MatchAll = o.matchAll
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (o *runOptions) run(cmd *cobra.Command, f *config.File) (err error) {
	ll, err := logging.New(cmd.ErrOrStderr(), o.logLevel)
	if err != nil {
		return err
	}

	c, err := codec.ByName(f.Input.Codec)
	if err != nil {
		return err
	}

	var src source.Source
	switch f.Input.Type {
	case "file":
		src = source.NewFileSource(f.Input.Path, f.Input.Follow, c)
	case "exec":
		src = source.NewExecSource(f.Input.Command[0], f.Input.Command[1:], c)
	default:
		stdin := source.NewStdinSource(c)
		if stdin.Interactive() {
			ll.Info("reading events from the terminal, end input with Ctrl-D")
		}
		src = stdin
	}

	var grok *parser.GrokParser
	if f.Filter.Grok != "" {
		if grok, err = parser.NewGrokParser(f.Filter.Grok); err != nil {
			return &config.ConfigurationError{Setting: "filter.grok", Reason: "invalid pattern", Err: err}
		}
	}
	chain, err := buildChain(f.Filter)
	if err != nil {
		return err
	}

	w, err := stream.Open(f.Output.Path)
	if err != nil {
		return err
	}
	defer closeStream(w, &err)

	out, err := plugin.DefaultRegistry.New(f.Output.Type, config.New(f.Output.Settings), plugin.Context{
		ID:       f.Output.ID,
		Pipeline: f.Pipeline.Name,
		Stdout:   w,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := monitor.NewStats()
	ll.Debug("starting pipeline", "pipeline", f.Pipeline.Name, "input", src.Name(), "output", f.Output.Type, "filters", chain.Len())
	err = pipeline.Run(ctx, &pipeline.Config{
		Source:     src,
		Grok:       grok,
		Filters:    chain,
		Output:     out,
		Stats:      stats,
		Logger:     ll.With("pipeline", f.Pipeline.Name),
		BatchSize:  f.Pipeline.BatchSize,
		BatchDelay: f.Pipeline.BatchDelay,
	})
	if o.stats {
		fmt.Fprintln(cmd.ErrOrStderr(), stats.Summary())
	}
	if err != nil {
		return err
	}
	ll.Debug("pipeline finished", "stats", stats)
	return nil
}

// closeStream closes c and reports its error through err unless err is
// already set.
func closeStream(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close output: %w", cerr)
	}
}

// buildChain combines the selecting filters with the configured mode.
// Excludes always apply on top of the selection.
func buildChain(f config.Filter) (*filter.Chain, error) {
	mode := filter.Any
	if f.MatchAll {
		mode = filter.All
	}
	selection := filter.NewChain(mode)
	for _, kw := range f.Keywords {
		selection.Add(filter.Keyword(f.Field, kw))
	}
	for _, pattern := range f.Regex {
		rf, err := filter.Regex(f.Field, pattern)
		if err != nil {
			return nil, &config.ConfigurationError{Setting: "filter.regex", Reason: "invalid pattern", Err: err}
		}
		selection.Add(rf)
	}
	if len(f.Levels) > 0 {
		levels := make([]filter.Level, 0, len(f.Levels))
		for _, name := range f.Levels {
			l := filter.ParseLevel(name)
			if l == filter.LevelUnknown {
				return nil, &config.ConfigurationError{Setting: "filter.levels", Reason: fmt.Sprintf("unknown level %q", name)}
			}
			levels = append(levels, l)
		}
		selection.Add(filter.NewLevelFilter(levels...))
	}

	chain := filter.NewChain(filter.All)
	if selection.Len() > 0 {
		chain.Add(selection)
	}
	if len(f.Exclude) > 0 {
		chain.Add(filter.Exclude(f.Field, f.Exclude...))
	}
	return chain, nil
}
