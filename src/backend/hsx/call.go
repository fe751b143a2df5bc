package hsx

import (
	"strings"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
)

// call.go lowers `call`, per spec.md §4.4: positional arguments into
// A0-A2, an import-set entry for non-locally-defined callees, and a
// destination copy from R0 when the call has a result.

// lowerCall lowers `[%d =] call RETTYPE @callee(args...)`.
func (s *Selector) lowerCall(raw, dest string, hasDef bool, rest string) error {
	idx := strings.Index(rest, "call")
	rest = strings.TrimSpace(rest[idx+len("call"):])

	open := strings.Index(rest, "(")
	shut := strings.LastIndex(rest, ")")
	if open < 0 || shut < open {
		return s.fail(raw, "malformed call")
	}
	head := strings.TrimSpace(rest[:open])
	argStr := rest[open+1 : shut]

	headParts := strings.Fields(head)
	if len(headParts) == 0 {
		return s.fail(raw, "malformed call target")
	}
	retTypeTok := headParts[0]
	callee := headParts[len(headParts)-1]
	callee = strings.TrimPrefix(callee, "@")
	callee = unquoteIdent(callee)

	args := splitOperands(argStr)
	if len(args) > len(regfile.ArgRegs) {
		return s.fail(raw, "call with more than 3 args")
	}

	// Each argument may need to be materialized before any of it is moved
	// into place, so immediate/global args get one scratch register apiece
	// rather than sharing one and clobbering each other.
	argScratch := [...]regfile.Register{regfile.ScratchA, regfile.ScratchB, regfile.ScratchC}

	argRegs := make([]regfile.Register, 0, len(args))
	for i, a := range args {
		typeTok, valTok := typeAndValue(a)
		kind := ir.ParseValueKind(typeTok)
		reg, err := s.resolveValue(valTok, kind, argScratch[i])
		if err != nil {
			return err
		}
		argRegs = append(argRegs, reg)
		s.alloc.Pin(valTok)
		defer s.alloc.Unpin(valTok)
	}
	for i, reg := range argRegs {
		target := regfile.ArgRegs[i]
		if reg != target {
			s.emit(asmLine(opMOV, target.String(), reg.String()))
		}
	}
	for _, a := range args {
		_, valTok := typeAndValue(a)
		s.consumeOperand(valTok)
	}

	if _, ok := s.defined[callee]; !ok {
		s.imports[callee] = true
	}

	s.emit(asmLine(opCALL, callee))

	if hasDef {
		kind := ir.ParseValueKind(retTypeTok)
		reg, preamble, err := s.alloc.Alloc(dest, kind)
		if err != nil {
			return err
		}
		s.emitAll(preamble)
		if reg != regfile.RetReg {
			s.emit(asmLine(opMOV, reg.String(), regfile.RetReg.String()))
		}
	}
	return nil
}

func unquoteIdent(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
