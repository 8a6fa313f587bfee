// Command strictly typechecks Ruby-like sources, or serves the editor
// protocol over stdio with --lsp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"goa.design/clue/log"

	"github.com/viant/strictly/config"
	"github.com/viant/strictly/core"
	"github.com/viant/strictly/lsp"
	"github.com/viant/strictly/pipeline"
)

// EarlyReturn carries an exit code out of initialization failures instead
// of aborting mid-stack; the main loop's cleanup runs on all paths.
type EarlyReturn struct {
	Code int
}

func (e *EarlyReturn) Error() string {
	return fmt.Sprintf("early return with code %d", e.Code)
}

func main() {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatText))
	if err := run(ctx, os.Args[1:]); err != nil {
		var early *EarlyReturn
		if errors.As(err, &early) {
			os.Exit(early.Code)
		}
		log.Errorf(ctx, err, "strictly failed")
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("strictly", flag.ContinueOnError)
	var (
		expr            = flags.String("e", "", "typecheck an expression string")
		stopAfter       = flags.String("stop-after", "", "last pipeline phase to run (index|resolve|cfg|infer)")
		maxThreads      = flags.Int("max-threads", 0, "worker pool cap")
		serveLSP        = flags.Bool("lsp", false, "serve the editor protocol on stdio")
		disableWatchman = flags.Bool("disable-watchman", false, "do not spawn a file watcher")
		payloadPath     = flags.String("payload", "", "path to a serialized stdlib payload")
		configPath      = flags.String("config", "strictly.yaml", "workspace configuration file")
		debug           = flags.Bool("debug", false, "enable debug logging")
	)
	if err := flags.Parse(args); err != nil {
		return &EarlyReturn{Code: 2}
	}
	if *debug {
		ctx = log.Context(ctx, log.WithDebug())
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *maxThreads > 0 {
		conf.MaxThreads = *maxThreads
	}
	if *disableWatchman {
		conf.DisableWatchman = true
	}
	if *payloadPath != "" {
		conf.PayloadPath = *payloadPath
	}

	gs, err := baseState(conf)
	if err != nil {
		return err
	}

	if *serveLSP {
		server := lsp.NewServer(lsp.NewConn(os.Stdin, os.Stdout), conf)
		return server.Run(ctx)
	}

	if *expr != "" {
		pipeline.EnterSource(gs, "-e", "# typed: true\ndef main\n"+*expr+"\nend\n", conf.DefaultLevel())
	}
	for _, path := range flags.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		pipeline.EnterSource(gs, path, string(data), conf.DefaultLevel())
	}
	if *expr == "" && flags.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: strictly [flags] file.rb ...")
		return &EarlyReturn{Code: 2}
	}

	result, err := pipeline.Run(ctx, gs, pipeline.Options{
		StopAfter:         pipeline.Phase(*stopAfter),
		MaxThreads:        conf.Threads(),
		DefaultStrictness: conf.DefaultLevel(),
	})
	if err != nil {
		return err
	}

	for _, diag := range result.Diagnostics {
		begin, _ := diag.Loc.Detail(gs)
		path := "<unknown>"
		if diag.Loc.Exists() {
			path = gs.File(diag.Loc.File).Path
		}
		fmt.Printf("%s:%d: %s [%d]\n", path, begin.Line, diag.Message, diag.Class.Code)
	}
	if len(result.Diagnostics) > 0 {
		fmt.Printf("Errors: %d\n", len(result.Diagnostics))
		return &EarlyReturn{Code: 1}
	}
	return nil
}

// baseState builds the initial global state, loading a payload snapshot
// when configured.
func baseState(conf *config.Config) (*core.GlobalState, error) {
	if conf.PayloadPath == "" {
		return core.NewGlobalState(), nil
	}
	f, err := os.Open(conf.PayloadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload %s: %w", conf.PayloadPath, err)
	}
	defer f.Close()
	gs, err := core.LoadPayload(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load payload %s: %w", conf.PayloadPath, err)
	}
	return gs, nil
}
