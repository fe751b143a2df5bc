// Package lir implements the register allocator described in spec.md §4.6:
// an online, linear-scan-style allocator driven by an LRU recency order,
// with proactive live-range splitting and explicit spill/reload slots.
//
// Grounded on the teacher's src/backend/lir/regalloc.go, whose Chaitin-Briggs
// graph-coloring allocator (build interference graph, simplify/coalesce/
// freeze/spill worklists, select) is a different algorithm family than the
// one spec.md §4.6 mandates. This file keeps the teacher's package identity
// and its "one allocator instance per function, fed instructions in program
// order" shape, but the coloring algorithm itself is replaced wholesale by
// the online LRU allocator described in original_source/python/hsx-llc.py's
// RegisterAllocator (alloc_vreg, ensure_value_in_reg, spill_value,
// select_spill_candidate, release_reg, mark_used).
package lir

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
	"hsxcc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SpillSlot describes one stack slot reserved for a spilled or stack-
// allocated SSA value, addressed `[R7+Offset]` from the function's frame
// base, per spec.md §8's "spill slot" boundary case.
type SpillSlot struct {
	Offset int
	Type   ir.ValueKind
}

// Allocator tracks live SSA values against HSX's physical register bank for
// one function at a time. Callers drive it by calling Touch/Advance as
// instructions are visited in program order, and Alloc/EnsureInReg/Release
// around each operand use and result definition.
type Allocator struct {
	function string
	coalesce bool
	split    bool

	pool []regfile.Register // free registers, in preference order (LIFO top = first element)

	valueToReg map[string]regfile.Register
	regToValue map[regfile.Register]string
	valueType  map[string]ir.ValueKind

	useCounts map[string]int // remaining uses not yet consumed
	useSites  map[string][]int // ascending instruction positions where each value is used

	pinned map[string]bool

	lru *lru.Cache[string, struct{}] // recency order over live, unpinned values

	spillSlots map[string]*SpillSlot
	floatAlias map[string]regfile.Register

	labels *util.LabelAllocator
	pos    int // current instruction position, advanced by Advance

	frameLabel string
	frameInit  bool
	frameBytes int

	metrics Metrics
}

// ---------------------
// ----- Constants -----
// ---------------------

// splitPressureFraction and splitUseDistance jointly gate proactive live
// range splitting (spec.md §4.6's Open Question, resolved in DESIGN.md):
// once the allocatable pool is this full, a live value whose next use is
// at least splitUseDistance instructions away is spilled pre-emptively
// rather than waiting for a hard allocation failure.
const (
	splitPressureFraction = 0.75
	splitUseDistance      = 6
)

// lruCapacity oversizes the recency cache so it never evicts on its own;
// it is used purely as an ordered touch/GetOldest/Remove structure, per
// SPEC_FULL.md §2 "Domain Stack".
const lruCapacity = 4096

// ---------------------
// ----- Functions -----
// ---------------------

// asmLine formats one target instruction, mnemonic then comma-separated
// operands, matching the teacher's tab-delimited assembly style.
func asmLine(op string, operands ...string) string {
	out := "\t" + op
	for i, o := range operands {
		if i == 0 {
			out += "\t" + o
		} else {
			out += ", " + o
		}
	}
	return out
}

// NewAllocator returns an Allocator for function, with args already bound to
// regfile.ArgRegs in order (spec.md §4.6: parameters enter the allocator
// pre-assigned, not freshly allocated).
func NewAllocator(function string, args []ir.Param, coalesce, split bool, labels *util.LabelAllocator) *Allocator {
	cache, err := lru.New[string, struct{}](lruCapacity)
	if err != nil {
		// lruCapacity is a positive literal constant; New only fails for n <= 0.
		panic(err)
	}

	pool := make([]regfile.Register, len(regfile.AllocatablePool))
	copy(pool, regfile.AllocatablePool)

	a := &Allocator{
		function:   function,
		coalesce:   coalesce,
		split:      split,
		pool:       pool,
		valueToReg: make(map[string]regfile.Register),
		regToValue: make(map[regfile.Register]string),
		valueType:  make(map[string]ir.ValueKind),
		useCounts:  make(map[string]int),
		useSites:   make(map[string][]int),
		pinned:     make(map[string]bool),
		lru:        cache,
		spillSlots: make(map[string]*SpillSlot),
		floatAlias: make(map[string]regfile.Register),
		labels:     labels,
		metrics:    Metrics{Function: function},
	}

	for i, p := range args {
		if i >= len(regfile.ArgRegs) {
			break // parse.go already rejects >3 params; defensive only.
		}
		reg := regfile.ArgRegs[i]
		a.bind(p.Name, reg, p.Type)
	}
	return a
}

// Seed installs the use-site table built by a pre-scan of the function's
// instructions (backend/lower.go's "Enter" phase), so next-use-distance
// queries work from the very first instruction.
func (a *Allocator) Seed(useCounts map[string]int, useSites map[string][]int) {
	for k, v := range useCounts {
		a.useCounts[k] = v
	}
	for k, v := range useSites {
		a.useSites[k] = v
	}
}

// Advance moves the allocator's position cursor forward by one instruction.
// Call once per lowered IR instruction, before processing its operands.
func (a *Allocator) Advance() { a.pos++ }

// Touch marks name as most-recently-used, per the Python source's
// mark_used.
func (a *Allocator) Touch(name string) {
	if !a.pinned[name] {
		a.lru.Add(name, struct{}{})
	}
}

// Pin marks name as ineligible for eviction (e.g. the frame pointer's base,
// or a value about to cross a call boundary that the selector handles
// specially).
func (a *Allocator) Pin(name string) {
	a.pinned[name] = true
	a.lru.Remove(name)
}

// Unpin reverses Pin and re-enters name into the recency order if it is
// still live.
func (a *Allocator) Unpin(name string) {
	a.pinned[name] = false
	if _, ok := a.valueToReg[name]; ok {
		a.lru.Add(name, struct{}{})
	}
}

// nextUseDistance returns how many instructions from the current position
// name is next used, or a large sentinel if no further use is on record.
func (a *Allocator) nextUseDistance(name string) int {
	for _, site := range a.useSites[name] {
		if site > a.pos {
			return site - a.pos
		}
	}
	return 1 << 30
}

// bind installs name as currently occupying reg, removing reg from the free
// pool if present.
func (a *Allocator) bind(name string, reg regfile.Register, kind ir.ValueKind) {
	a.valueToReg[name] = reg
	a.regToValue[reg] = name
	a.valueType[name] = kind
	for i, r := range a.pool {
		if r == reg {
			a.pool = append(a.pool[:i], a.pool[i+1:]...)
			break
		}
	}
	a.lru.Add(name, struct{}{})
	if occ := len(a.regToValue); occ > a.metrics.MaxPressure {
		a.metrics.MaxPressure = occ
	}
}

// popFree pops the next free register off the pool in preference order.
func (a *Allocator) popFree() (regfile.Register, bool) {
	if len(a.pool) == 0 {
		return 0, false
	}
	r := a.pool[0]
	a.pool = a.pool[1:]
	return r, true
}

// pushFree returns reg to the front of the free pool.
func (a *Allocator) pushFree(reg regfile.Register) {
	a.pool = append([]regfile.Register{reg}, a.pool...)
}

// ensureFrame reserves the function's frame-base label and, the first time
// it is needed, returns the instruction that loads it into R7. Per spec.md
// §3, R7 is "exclusively owned by the first alloca/stack-slot in each
// function when one exists" — ownership begins at the first spill or
// alloca, whichever comes first.
func (a *Allocator) ensureFrame() []string {
	if a.frameInit {
		return nil
	}
	a.frameInit = true
	a.frameLabel = a.function + "__frame"
	return []string{asmLine("LDI32", regfile.FrameReg.String(), a.frameLabel)}
}

// addr formats the `[R7+offset]` addressing form for a stack slot.
func addr(offset int) string {
	return "[" + regfile.FrameReg.String() + "+" + strconv.Itoa(offset) + "]"
}

// slotFor returns (creating if needed) the spill slot backing name.
func (a *Allocator) slotFor(name string) *SpillSlot {
	if s, ok := a.spillSlots[name]; ok {
		return s
	}
	kind := a.valueType[name]
	s := &SpillSlot{Offset: a.frameBytes, Type: kind}
	a.frameBytes += kind.Size()
	a.spillSlots[name] = s
	a.metrics.StackSlots++
	a.metrics.StackBytes += kind.Size()
	return s
}

// AllocaSlot reserves a stack slot of kind for name, the user-visible
// counterpart of slotFor used by backend/hsx's alloca lowering (spec.md
// §4.4's "the first alloca in a function pins R7 as the frame-pointer
// base"). Returns the frame-load preamble (if this is the first stack
// slot in the function) and the slot's addressing form.
func (a *Allocator) AllocaSlot(name string, kind ir.ValueKind) (string, []string) {
	preamble := a.ensureFrame()
	a.valueType[name] = kind
	slot := a.slotFor(name)
	return addr(slot.Offset), preamble
}

// evict picks an unpinned, non-scratch live value to free a register,
// preferring the least-recently-used candidate. It returns the asm lines
// needed to spill it to its stack slot.
func (a *Allocator) evict() ([]string, error) {
	keys := a.lru.Keys() // oldest first
	for _, name := range keys {
		if a.pinned[name] {
			continue
		}
		reg, ok := a.valueToReg[name]
		if !ok {
			a.lru.Remove(name)
			continue
		}
		return a.spill(name, reg)
	}
	return nil, util.NewAllocError(a.function, "register pool exhausted, no spillable candidate")
}

// spill writes name's current value from reg to its stack slot and frees
// reg. Returns the emitted store instruction(s).
func (a *Allocator) spill(name string, reg regfile.Register) ([]string, error) {
	lines := a.ensureFrame()
	slot := a.slotFor(name)
	lines = append(lines, asmLine(slot.Type.StoreOp(), reg.String(), addr(slot.Offset)))
	delete(a.valueToReg, name)
	delete(a.regToValue, reg)
	a.lru.Remove(name)
	a.pushFree(reg)
	a.metrics.SpillCount++
	return lines, nil
}

// maybeProactiveSplit implements the split=true heuristic: once the pool is
// under splitPressureFraction occupancy pressure, evict the oldest
// unpinned, far-future-use value even though allocation hasn't yet failed.
func (a *Allocator) maybeProactiveSplit() []string {
	if !a.split {
		return nil
	}
	total := len(regfile.AllocatablePool)
	occupied := total - len(a.pool)
	if float64(occupied)/float64(total) < splitPressureFraction {
		return nil
	}
	for _, name := range a.lru.Keys() {
		if a.pinned[name] {
			continue
		}
		if a.nextUseDistance(name) < splitUseDistance {
			continue
		}
		reg, ok := a.valueToReg[name]
		if !ok {
			continue
		}
		lines, err := a.spill(name, reg)
		if err != nil {
			return nil
		}
		a.metrics.ProactiveSplits++
		return lines
	}
	return nil
}

// Alloc assigns a fresh register to name (a newly-defined SSA value) of the
// given kind, spilling an existing occupant if the pool is exhausted.
// Returns the register and any spill instructions that must be emitted
// immediately before the instruction defining name.
func (a *Allocator) Alloc(name string, kind ir.ValueKind) (regfile.Register, []string, error) {
	var preamble []string
	if lines := a.maybeProactiveSplit(); lines != nil {
		preamble = append(preamble, lines...)
	}
	reg, ok := a.popFree()
	if !ok {
		lines, err := a.evict()
		if err != nil {
			return 0, nil, err
		}
		preamble = append(preamble, lines...)
		reg, ok = a.popFree()
		if !ok {
			return 0, nil, util.NewAllocError(a.function, "no free register after eviction")
		}
	}
	a.bind(name, reg, kind)
	if count, seen := a.useCounts[name]; seen && count == 0 {
		// Defined but never used (e.g. a dead PHI result): free immediately.
		rel := a.Release(name)
		preamble = append(preamble, rel...)
	}
	return reg, preamble, nil
}

// EnsureInReg returns the register currently holding name, reloading it
// from its spill slot first if necessary. Returns any reload/eviction asm
// that must be emitted before the instruction using name.
func (a *Allocator) EnsureInReg(name string) (regfile.Register, []string, error) {
	if reg, ok := a.valueToReg[name]; ok {
		a.Touch(name)
		return reg, nil, nil
	}
	if alias, ok := a.floatAlias[name]; ok {
		return alias, nil, nil
	}
	slot, ok := a.spillSlots[name]
	if !ok {
		return 0, nil, util.NewAllocError(a.function, "use of value with no binding or spill slot: "+name)
	}

	var preamble []string
	if lines := a.maybeProactiveSplit(); lines != nil {
		preamble = append(preamble, lines...)
	}
	reg, ok := a.popFree()
	if !ok {
		lines, err := a.evict()
		if err != nil {
			return 0, nil, err
		}
		preamble = append(preamble, lines...)
		reg, ok = a.popFree()
		if !ok {
			return 0, nil, util.NewAllocError(a.function, "no free register after eviction")
		}
	}
	preamble = append(preamble, a.ensureFrame()...)
	preamble = append(preamble, asmLine(slot.Type.LoadOp(), reg.String(), addr(slot.Offset)))
	a.bind(name, reg, slot.Type)
	a.metrics.ReloadCount++
	return reg, preamble, nil
}

// AllocPreferred allocates a register for name, reusing preferred directly
// (eliding the copy a caller would otherwise emit) when coalescing is
// enabled and preferred is currently free. Used by the PHI resolver's edge-
// copy emission, per spec.md §4.6 "PHI coalescing".
func (a *Allocator) AllocPreferred(name string, kind ir.ValueKind, preferred regfile.Register) (regfile.Register, []string, error) {
	if a.coalesce && !regfile.IsScratch(preferred) {
		if _, occupied := a.regToValue[preferred]; !occupied {
			for i, r := range a.pool {
				if r == preferred {
					a.pool = append(a.pool[:i], a.pool[i+1:]...)
					a.bind(name, preferred, kind)
					return preferred, nil, nil
				}
			}
		}
	}
	return a.Alloc(name, kind)
}

// ConsumeUse decrements name's remaining use count, releasing its register
// once every use has been consumed (unless pinned).
func (a *Allocator) ConsumeUse(name string) {
	if a.useCounts[name] > 0 {
		a.useCounts[name]--
	}
	if a.useCounts[name] == 0 && !a.pinned[name] {
		a.Release(name)
	}
}

// Release frees name's register, if it holds one, back to the pool. It does
// not remove name's spill slot, so a later EnsureInReg can still reload it
// if use counting under-reported a use (defensive; should not occur).
func (a *Allocator) Release(name string) []string {
	reg, ok := a.valueToReg[name]
	if !ok {
		return nil
	}
	delete(a.valueToReg, name)
	delete(a.regToValue, reg)
	a.lru.Remove(name)
	a.pushFree(reg)
	return nil
}

// BindFloatAlias records that name (a half/float value) is carried in reg
// via HSX's integer bank rather than through the ordinary allocation path,
// per spec.md §4.3's "half/float values alias into the integer bank".
func (a *Allocator) BindFloatAlias(name string, reg regfile.Register) {
	a.floatAlias[name] = reg
}

// UsedRegisters returns the sorted mnemonics of every register this
// allocator ever bound, for the Metrics.UsedRegisters field.
func (a *Allocator) UsedRegisters() []string {
	var out []string
	for r := regfile.R0; r <= regfile.R15; r++ {
		if _, ok := a.regToValue[r]; ok {
			out = append(out, r.String())
		}
	}
	return out
}

// Metrics returns the final per-function Metrics snapshot.
func (a *Allocator) Metrics() Metrics {
	m := a.metrics
	m.UsedRegisters = a.UsedRegisters()
	return m
}

// RegisterOf reports the register currently bound to name, if live.
func (a *Allocator) RegisterOf(name string) (regfile.Register, bool) {
	r, ok := a.valueToReg[name]
	return r, ok
}

// SpillSlotOf reports the spill slot backing name, if one has been created.
func (a *Allocator) SpillSlotOf(name string) (*SpillSlot, bool) {
	s, ok := a.spillSlots[name]
	return s, ok
}

// SpillSlots returns every spill slot the allocator created, for the
// emitter's .data section.
func (a *Allocator) SpillSlots() map[string]*SpillSlot {
	return a.spillSlots
}

// FrameLabel and FrameBytes describe the function's frame storage block
// (empty label, zero bytes, if the function never needed one), for the
// emitter's .data section per spec.md §4.8.
func (a *Allocator) FrameLabel() string { return a.frameLabel }
func (a *Allocator) FrameBytes() int    { return a.frameBytes }
