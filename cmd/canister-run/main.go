package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/wippyai/canister-runtime/config"
	"github.com/wippyai/canister-runtime/driver"
	"github.com/wippyai/canister-runtime/engine"
	"github.com/wippyai/canister-runtime/host"
	"github.com/wippyai/canister-runtime/runtime"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := config.NewFlagSet("canister-run")
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: canister-run [flags] [path.wasm]")
		fmt.Fprintln(stderr, "       canister-run -i [path.wasm]  (interactive mode)")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	cfg, err := config.Load(fs, args)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer logger.Sync() //nolint:errcheck
	engine.SetLogger(logger.Named("engine"))
	host.SetLogger(logger.Named("host"))
	runtime.SetLogger(logger.Named("runtime"))
	driver.SetLogger(logger.Named("driver"))

	if err := execute(context.Background(), cfg, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// execute loads the module, instantiates it and runs either the batch
// driver or the TUI. Guest traps are part of the report, not errors.
func execute(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return err
	}

	if cfg.Interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}

	eng, err := engine.New(ctx, cfg.EngineConfig())
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	mod, err := eng.LoadFile(ctx, path)
	if err != nil {
		return err
	}

	opts := runtime.Options{
		Caller:              cfg.Caller,
		Canister:            cfg.Canister,
		StableCapacityPages: cfg.StableCapacityPages,
		LedgerLimit:         cfg.LedgerLimit,
		CallTimeout:         cfg.CallTimeout,
	}
	if !cfg.Interactive {
		opts.Print = func(export, text string) {
			fmt.Fprintf(stdout, "[%s] %s\n", export, text)
		}
	}

	rt, err := runtime.New(ctx, eng, mod, opts)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if cfg.Interactive {
		return runInteractive(ctx, rt, path, mod.Exports(), cfg)
	}

	fmt.Fprintf(stdout, "Module: %s (%d bytes)\n", path, mod.Size())
	_, err = driver.New(rt, mod.Exports(), driver.Options{
		Out:      stdout,
		Argument: cfg.Argument,
		Updates:  cfg.Updates,
		Upgrade:  cfg.Upgrade,
	}).Run(ctx)
	return err
}
