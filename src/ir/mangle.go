package ir

import (
	"fmt"
	"regexp"
)

// mangle.go assigns stable identifiers to quoted or otherwise non-identifier
// LLVM global names, per spec.md §3: "Quoted or non-identifier LLVM names
// are mangled to a stable identifier (__hsx_quoted_global_N) with a
// deterministic counter; the mapping is local to one compilation." This has
// no counterpart in original_source/python/hsx-llc.py, which only ever
// handles bare @name globals — see DESIGN.md.

// plainIdentifier matches an LLVM global name that needs no mangling.
var plainIdentifier = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// Mangler assigns deterministic mangled names to quoted/non-identifier
// global names, scoped to a single Program (explicit value, not a package
// global, per spec.md §9's Redesign Notes on implicit state).
type Mangler struct {
	counter int
	mapping map[string]string
}

// NewMangler returns a fresh Mangler with its counter reset to zero.
func NewMangler() *Mangler {
	return &Mangler{mapping: make(map[string]string)}
}

// Mangle returns the stable assembler-safe identifier for raw, which may be
// a quoted LLVM name (e.g. `"my global"`) or an already-plain identifier. A
// given raw name always maps to the same mangled name within one Mangler,
// and distinct raw names are assigned increasing counter values in the
// order first seen, preserving determinism across identical compilations.
func (m *Mangler) Mangle(raw string) string {
	if plainIdentifier.MatchString(raw) {
		return raw
	}
	if existing, ok := m.mapping[raw]; ok {
		return existing
	}
	name := fmt.Sprintf("__hsx_quoted_global_%d", m.counter)
	m.counter++
	m.mapping[raw] = name
	return name
}
