package hsx

import (
	"regexp"
	"sort"
	"strings"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
)

// phi.go is the PHI resolver (spec.md §4.5): a pre-pass extracts phi lines
// into Block.Phis and seeds use-counts, and LowerBlock drives each block's
// instructions, inserting edge copies at branch sites with the standard
// parallel-copy cycle-breaking algorithm.

var (
	phiLineRe  = regexp.MustCompile(`^(%[A-Za-z0-9_.]+)\s*=\s*phi\s+(i1|i8|i16|i32|half|float|ptr)\s+(.*)$`)
	incomingRe = regexp.MustCompile(`\[\s*([^,\[\]]+?)\s*,\s*(%[A-Za-z0-9_.]+)\s*\]`)
)

// copyEdge is one register-level move in a parallel-copy batch.
type copyEdge struct {
	Dest, Src regfile.Register
}

// PrescanFunction extracts PHI lines from every block into Block.Phis and
// returns the use-count/use-site tables the allocator seeds from, per
// spec.md §4.5's pre-pass ("phi_incomings... use_counts is incremented for
// each SSA source value").
func PrescanFunction(fn *ir.Function) (map[string]int, map[string][]int) {
	useCounts := map[string]int{}
	useSites := map[string][]int{}
	pos := 0
	record := func(tok string) {
		useCounts[tok]++
		useSites[tok] = append(useSites[tok], pos)
	}

	for _, b := range fn.Blocks {
		kept := make([]string, 0, len(b.Instructions))
		for _, line := range b.Instructions {
			if m := phiLineRe.FindStringSubmatch(line); m != nil {
				dest := m[1]
				kind := ir.ParseValueKind(m[2])
				var incoming []ir.PhiIncoming
				for _, im := range incomingRe.FindAllStringSubmatch(m[3], -1) {
					val := strings.TrimSpace(im[1])
					incoming = append(incoming, ir.PhiIncoming{Pred: im[2], Value: val})
					if strings.HasPrefix(val, "%") {
						record(val)
					}
				}
				b.Phis = append(b.Phis, ir.PhiInstr{Dest: dest, Type: kind, Incoming: incoming})
				pos++
				continue
			}
			kept = append(kept, line)
			for _, tok := range countUses(line) {
				record(tok)
			}
			pos++
		}
		b.Instructions = kept
	}
	return useCounts, useSites
}

// blockByLabel finds the block with the given (un-renamed) label.
func (s *Selector) blockByLabel(label string) *ir.Block {
	for _, b := range s.fn.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// LowerBlock emits one block's renamed label and lowers its instructions in
// order, dispatching ret/br specially since they also drive PHI edge-copy
// emission, per spec.md §4.4's "Per-block" state.
func (s *Selector) LowerBlock(b *ir.Block) error {
	s.emit(s.renamed(b.Label) + ":")
	s.currentBlock = b.Label

	for _, line := range b.Instructions {
		s.alloc.Advance()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "ret" || strings.HasPrefix(trimmed, "ret "):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "ret"))
			if err := s.lowerRet(line, rest); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "br "):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "br"))
			if err := s.lowerBr(line, rest); err != nil {
				return err
			}
		default:
			if err := s.lowerInstruction(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// lowerBr lowers unconditional and conditional branches, per spec.md §4.4:
// unconditional edges run their PHI copies then jump; conditional edges
// test the condition against zero and execute the chosen edge's copies
// before jumping.
func (s *Selector) lowerBr(raw, rest string) error {
	if s.trace {
		s.emit("\t; " + raw)
	}
	if strings.HasPrefix(rest, "label") {
		target := branchTarget(strings.TrimPrefix(rest, "label"))
		if err := s.emitEdgeCopies(s.currentBlock, target); err != nil {
			return err
		}
		s.emit(asmLine(opJMP, s.renamed(target)))
		return nil
	}

	parts := strings.SplitN(rest, ",", 3)
	if len(parts) != 3 {
		return s.fail(raw, "malformed conditional branch")
	}
	_, condTok := typeAndValue(parts[0])
	trueTarget := branchTarget(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[1]), "label")))
	falseTarget := branchTarget(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[2]), "label")))

	condReg, err := s.resolveValue(condTok, ir.I1, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(condTok)

	s.emit(asmLine(opSUB, regfile.ScratchC.String(), condReg.String(), "0"))
	s.markFlagsProducer()
	falseLabel := s.labels.New("br_false")
	s.emit(asmLine(opBEQ, falseLabel))
	s.consumeFlags()

	if err := s.emitEdgeCopies(s.currentBlock, trueTarget); err != nil {
		return err
	}
	s.emit(asmLine(opJMP, s.renamed(trueTarget)))

	s.emit(falseLabel + ":")
	if err := s.emitEdgeCopies(s.currentBlock, falseTarget); err != nil {
		return err
	}
	s.emit(asmLine(opJMP, s.renamed(falseTarget)))
	return nil
}

// branchTarget strips the leading `%` from a `label %L` operand.
func branchTarget(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "%")
}

// emitEdgeCopies executes every PHI copy gated on the (pred, succ) edge, per
// spec.md §4.5's sequencing: resolve every source first, then allocate
// every destination (letting coalescing reuse a just-freed source
// register), then serialize the remaining register-level moves, breaking
// any cycle with the one reserved scratch register.
func (s *Selector) emitEdgeCopies(pred, succ string) error {
	block := s.blockByLabel(succ)
	if block == nil || len(block.Phis) == 0 {
		return nil
	}

	var values []string
	var dests []string
	var kinds []ir.ValueKind
	for _, phi := range block.Phis {
		for _, inc := range phi.Incoming {
			if inc.Pred == pred {
				values = append(values, inc.Value)
				dests = append(dests, phi.Dest)
				kinds = append(kinds, phi.Type)
			}
		}
	}
	if len(values) == 0 {
		return nil
	}

	// Non-SSA incoming values (literals, globals) each need their own
	// scratch register to materialize into: every source is resolved before
	// any destination copy runs, so two immediate incomings sharing one
	// scratch would clobber each other. ScratchB is left out of the
	// rotation since serializeCopies below may still need it to break a
	// register-swap cycle among the resolved sources.
	edgeScratch := [...]regfile.Register{regfile.ScratchA, regfile.ScratchC}
	nonSSA := 0
	srcRegs := make([]regfile.Register, len(values))
	for i, v := range values {
		scratch := edgeScratch[nonSSA%len(edgeScratch)]
		if !strings.HasPrefix(strings.TrimSpace(v), "%") {
			nonSSA++
		}
		reg, err := s.resolveValue(v, kinds[i], scratch)
		if err != nil {
			return err
		}
		srcRegs[i] = reg
	}
	for _, v := range values {
		s.consumeOperand(v)
	}

	destRegs := make([]regfile.Register, len(values))
	for i := range values {
		reg, preamble, err := s.alloc.AllocPreferred(dests[i], kinds[i], srcRegs[i])
		if err != nil {
			return err
		}
		s.emitAll(preamble)
		destRegs[i] = reg
	}

	var edges []copyEdge
	for i := range values {
		if destRegs[i] != srcRegs[i] {
			edges = append(edges, copyEdge{Dest: destRegs[i], Src: srcRegs[i]})
		}
	}
	s.emitAll(serializeCopies(edges, regfile.CycleBreakScratch))
	return nil
}

// serializeCopies realizes a batch of register-level parallel copies as a
// sequence of MOVs, breaking any cycle using scratch, per spec.md §4.5's
// "standard parallel-copy problem" requirement. Iteration order is driven
// off a sorted register list rather than a bare map range, so two
// independent copies on the same edge always serialize in the same order —
// compiling identical IR twice must produce byte-identical assembly, and Go
// map iteration order is randomized.
func serializeCopies(edges []copyEdge, scratch regfile.Register) []string {
	pending := make(map[regfile.Register]regfile.Register, len(edges))
	for _, e := range edges {
		pending[e.Dest] = e.Src
	}

	var lines []string
	for len(pending) > 0 {
		dests := pendingDestsSorted(pending)
		progressed := false
		for _, dest := range dests {
			if !isStillNeededAsSource(pending, dest) {
				lines = append(lines, asmLine(opMOV, dest.String(), pending[dest].String()))
				delete(pending, dest)
				progressed = true
			}
		}
		if progressed {
			continue
		}

		// Every remaining copy is part of a cycle. Break it by saving the
		// lowest-numbered destination's current value in the reserved
		// scratch register, then redirecting any copy that reads it to
		// read scratch instead.
		broken := dests[0]
		lines = append(lines, asmLine(opMOV, scratch.String(), broken.String()))
		for _, d := range dests {
			if pending[d] == broken {
				pending[d] = scratch
			}
		}
	}
	return lines
}

// pendingDestsSorted returns pending's destination registers in ascending
// order, giving serializeCopies a deterministic scan order each round.
func pendingDestsSorted(pending map[regfile.Register]regfile.Register) []regfile.Register {
	dests := make([]regfile.Register, 0, len(pending))
	for d := range pending {
		dests = append(dests, d)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })
	return dests
}

// isStillNeededAsSource reports whether some other pending copy still
// needs to read reg's current value, meaning it is not yet safe to
// overwrite reg.
func isStillNeededAsSource(pending map[regfile.Register]regfile.Register, reg regfile.Register) bool {
	for dest, src := range pending {
		if dest != reg && src == reg {
			return true
		}
	}
	return false
}
