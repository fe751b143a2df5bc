// Package backend drives one function at a time through the PHI pre-scan,
// register allocation and instruction selection stages, then hands the
// result to the peephole optimizer and emitter, per spec.md §4.4's
// "Enter / Per-block / Exit" function-lowering state machine.
package backend

import (
	"hsxcc/src/backend/hsx"
	"hsxcc/src/backend/lir"
	"hsxcc/src/ir"
	"hsxcc/src/util"
)

// Options controls the optional lowering passes, per spec.md §6's CLI
// surface.
type Options struct {
	Trace    bool
	Coalesce bool
	Split    bool
	Peephole bool
}

// FunctionResult is everything one lowered function contributes to the
// final assembly module.
type FunctionResult struct {
	Name       string
	Asm        []string
	Imports    map[string]bool
	FrameLabel string
	FrameBytes int
	Metrics    lir.Metrics
}

// LowerFunction runs fn through the full pipeline: Enter (allocator reset,
// argument binding, PHI pre-scan and use-count seeding), Per-block
// (hsx.Selector.LowerBlock over every block in order) and Exit (peephole
// cleanup and result collection).
func LowerFunction(prog *ir.Program, fn *ir.Function, opt Options) (FunctionResult, error) {
	log := util.FunctionLogger(fn.Name)
	log.Debug("lowering function")

	labels := util.NewLabelAllocator(fn.Name)
	alloc := lir.NewAllocator(fn.Name, fn.Params, opt.Coalesce, opt.Split, labels)

	useCounts, useSites := hsx.PrescanFunction(fn)
	alloc.Seed(useCounts, useSites)

	selector := hsx.NewSelector(prog, fn, alloc, labels)
	selector.SetTrace(opt.Trace)

	for _, block := range fn.Blocks {
		if err := selector.LowerBlock(block); err != nil {
			return FunctionResult{}, err
		}
	}

	asm := selector.Asm()
	if opt.Peephole && !opt.Trace {
		asm = RunPeephole(asm)
	} else {
		log.Debug("peephole optimizer disabled")
	}

	return FunctionResult{
		Name:       fn.Name,
		Asm:        asm,
		Imports:    selector.Imports(),
		FrameLabel: alloc.FrameLabel(),
		FrameBytes: alloc.FrameBytes(),
		Metrics:    alloc.Metrics(),
	}, nil
}
