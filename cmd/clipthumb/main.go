// Package main provides the clipthumb command, which builds a single preview
// and prints its result descriptor as JSON.
//
// Usage:
//
//	clipthumb [--options '{"format":"mp4"}'] [--options-file opts.yaml] <source>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/clipthumb/internal/bootstrap"
	"github.com/maauso/clipthumb/internal/config"
	"github.com/maauso/clipthumb/internal/preview"
)

var errUsage = errors.New("usage: clipthumb [--options JSON] [--options-file PATH] <source>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("clipthumb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	optionsJSON := fs.String("options", "", "preview options as a JSON object")
	optionsFile := fs.String("options-file", "", "path to a YAML or JSON options document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	source := fs.Arg(0)

	opts, err := resolveOptions(*optionsJSON, *optionsFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger(stderr)

	gen, err := bootstrap.NewGenerator(cfg, logger)
	if err != nil {
		return err
	}

	result, err := gen.Generate(ctx, source, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// resolveOptions layers defaults, then --options-file, then --options.
// Either flag may be empty.
func resolveOptions(optionsJSON, optionsFile string) (preview.Options, error) {
	opts := preview.DefaultOptions()
	if optionsFile != "" {
		var err error
		if opts, err = preview.LoadOptionsFile(optionsFile); err != nil {
			return preview.Options{}, err
		}
	}
	if optionsJSON == "" {
		return opts, nil
	}
	opts, err := preview.ApplyOptions(opts, []byte(optionsJSON))
	if err != nil {
		return preview.Options{}, fmt.Errorf("invalid --options: %w", err)
	}
	return opts, nil
}
