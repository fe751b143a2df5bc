// Package compile exposes the single entry point spec.md §5 specifies:
// compile(ir_text, options) → (asm_text, metadata), with no state surviving
// the call and no files, sockets or handles opened internally.
package compile

import (
	"hsxcc/src/backend"
	"hsxcc/src/ir"
	"hsxcc/src/util"
)

// Result bundles the two values spec.md §5's compile() returns, renamed
// from its bare tuple to a named struct as Go idiom prefers.
type Result struct {
	Asm      string
	Metadata backend.Metadata
}

// Compile parses irText and lowers every defined function, in source
// order, into one assembly module and its metadata document. Compilation
// is purely CPU-bound and single-threaded per call, per spec.md §5; running
// many Compile calls concurrently (compile/batch.go) is safe because each
// call's state — allocator, label counters, global mangler — is freshly
// constructed here and never shared.
func Compile(irText string, opt util.Options) (Result, error) {
	prog, err := ir.Parse(irText)
	if err != nil {
		return Result{}, err
	}

	lowerOpts := backend.Options{
		Trace:    opt.Trace,
		Coalesce: opt.AllocCoalesce,
		Split:    opt.AllocSplit,
		Peephole: opt.EnablePeephole,
	}

	results := make([]backend.FunctionResult, 0, len(prog.Functions))
	for _, fn := range prog.Functions {
		r, err := backend.LowerFunction(prog, fn, lowerOpts)
		if err != nil {
			return Result{}, err
		}
		results = append(results, r)
	}

	return Result{
		Asm:      backend.EmitAssembly(prog, results),
		Metadata: backend.EmitMetadata(prog, results),
	}, nil
}
