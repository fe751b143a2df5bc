// Package main is the hsxcc CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"hsxcc/src/compile"
	"hsxcc/src/util"
)

// main.go is the cobra-based CLI driver, replacing the teacher's hand-rolled
// util.ParseArgs switch statement (src/util/args.go) with cobra/pflag per
// SPEC_FULL.md §1.1, and the teacher's channel-multiplexed output writer
// (this file's former util.ListenWrite/sync.WaitGroup pairing) with
// compile/batch.go's errgroup-based driver for more than one input.

// run reads input, invokes the compiler core and writes its output, per
// the single-file vs. batch-mode split SPEC_FULL.md §1.1/§1.4 describe.
func run(opt util.Options, configPath string, cliSet map[string]bool) error {
	if configPath != "" {
		if err := util.MergeConfigFile(&opt, configPath, cliSet); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	util.ConfigureLogging(opt.Verbose)

	if len(opt.Inputs) == 0 {
		return fmt.Errorf("no input files given")
	}

	if len(opt.Inputs) == 1 {
		src, err := util.ReadSource(opt.Inputs[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", opt.Inputs[0], err)
		}
		result, err := compile.Compile(src, opt)
		if err != nil {
			return err
		}
		return writeSingle(opt, result)
	}

	failed := 0
	for _, outcome := range compile.CompileBatch(opt) {
		if outcome.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %s\n", outcome.Input, outcome.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(opt.Inputs))
	}
	return nil
}

// writeSingle writes one input's assembly (and optional metadata) to
// opt.Out, or stdout when opt.Out is empty.
func writeSingle(opt util.Options, result compile.Result) error {
	if opt.Out == "" {
		fmt.Print(result.Asm)
	} else if err := os.WriteFile(opt.Out, []byte(result.Asm), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", opt.Out, err)
	}

	if opt.JSONMetadataOut != "" {
		b, err := json.MarshalIndent(result.Metadata, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(opt.JSONMetadataOut, b, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", opt.JSONMetadataOut, err)
		}
	}
	return nil
}

// newRootCmd builds the cobra command tree, binding pflag-backed flags
// directly onto an Options value, per SPEC_FULL.md §1.1's flag surface.
func newRootCmd() *cobra.Command {
	opt := util.DefaultOptions()
	var configPath string
	var noPeephole, noCoalesce, noSplit bool
	cliSet := map[string]bool{}

	cmd := &cobra.Command{
		Use:     "hsxcc [flags] <input.ll> [input2.ll ...]",
		Short:   "hsxcc lowers textual LLVM-style IR into HSX assembly",
		Version: "hsxcc 1.0",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.Inputs = args
			cmd.Flags().Visit(func(f *pflag.Flag) { cliSet[f.Name] = true })

			if noPeephole {
				opt.EnablePeephole = false
				cliSet["enable-peephole"] = true
			}
			if noCoalesce {
				opt.AllocCoalesce = false
				cliSet["coalesce"] = true
			}
			if noSplit {
				opt.AllocSplit = false
				cliSet["split"] = true
			}
			return run(opt, configPath, cliSet)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opt.Out, "out", "o", opt.Out, "output path (file for single input, directory for batch mode)")
	flags.BoolVar(&opt.Trace, "trace", opt.Trace, "annotate assembly with the originating IR line")
	flags.BoolVar(&noPeephole, "no-peephole", false, "disable the MOV peephole optimizer")
	flags.BoolVar(&noCoalesce, "no-coalesce", false, "disable PHI register coalescing")
	flags.BoolVar(&noSplit, "no-split", false, "disable proactive live-range splitting")
	flags.StringVar(&opt.JSONMetadataOut, "json-metadata", opt.JSONMetadataOut, "write the allocator/debug metadata document to this path")
	flags.IntVar(&opt.Threads, "threads", opt.Threads, "maximum concurrent workers for batch compilation")
	flags.StringVar(&configPath, "config", "", "TOML config file overlaying unset flags")
	flags.BoolVarP(&opt.Verbose, "verbose", "v", opt.Verbose, "enable debug logging")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
