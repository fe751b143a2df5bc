package hsx

import (
	"strings"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
)

// conditional.go lowers icmp, select and ret, per spec.md §4.4. The
// branch-producer/consumer flag-lifetime invariant ("no flag-clobbering
// instruction may appear between the producing SUB and the branch or
// materialization that consumes its flags") is enforced structurally via
// Selector.markFlagsProducer/consumeFlags/noteEmitted.

// lowerIcmp lowers `icmp PRED TYPE a, b` into a SUB producing flags
// followed by a label-based 0/1 materialization, per spec.md §4.4. eq/ne
// branch directly off the SUB's flags. The signed order predicates
// (sgt/sge/slt/sle) test the equal case first and only then the sign bit
// of a-b via an AND against 0x80000000, per original_source/python/
// hsx-llc.py's three-way branch — so sgt and sge (and slt and sle) agree
// everywhere except at a==b.
func (s *Selector) lowerIcmp(raw, dest, rest string) error {
	tokens := strings.Fields(rest)
	if len(tokens) < 3 {
		return s.fail(raw, "malformed icmp")
	}
	pred := tokens[1]
	typeTok := tokens[2]
	kind := ir.ParseValueKind(typeTok)

	idx := strings.Index(rest, typeTok)
	operandStr := strings.TrimSpace(rest[idx+len(typeTok):])
	operands := splitOperands(operandStr)
	if len(operands) != 2 {
		return s.fail(raw, "expected two operands")
	}

	a, err := s.resolveValue(operands[0], kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	b, err := s.resolveValue(operands[1], kind, regfile.ScratchB)
	if err != nil {
		return err
	}
	s.consumeOperand(operands[0])
	s.consumeOperand(operands[1])

	s.emit(asmLine(opSUB, regfile.ScratchC.String(), a.String(), b.String()))
	s.markFlagsProducer()

	destReg, preamble, err := s.alloc.Alloc(dest, ir.I1)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	s.materializeImm(destReg, 0)

	switch pred {
	case "eq", "ne":
		branchOp := map[string]string{"eq": opBEQ, "ne": opBNE}[pred]
		trueLabel := s.labels.New("icmp_true")
		endLabel := s.labels.New("icmp_end")
		s.emit(asmLine(branchOp, trueLabel))
		s.consumeFlags()
		s.emit(asmLine(opJMP, endLabel))
		s.emit(trueLabel + ":")
		s.materializeImm(destReg, 1)
		s.emit(endLabel + ":")
	case "sgt", "sge", "slt", "sle":
		equalLabel := s.labels.New("icmp_equal")
		endLabel := s.labels.New("icmp_end")

		// a == b: handled once, up front, since sgt/slt and sge/sle
		// disagree only here.
		s.emit(asmLine(opBEQ, equalLabel))
		s.consumeFlags()

		s.emit(asmLine(opAND, regfile.ScratchB.String(), regfile.ScratchC.String(), "0x80000000"))
		s.markFlagsProducer()
		if pred == "sgt" || pred == "sge" {
			// Sign bit set means a-b is negative, i.e. a < b: not greater.
			s.emit(asmLine(opBNE, endLabel))
		} else {
			// Sign bit clear means a-b is non-negative, i.e. a >= b: not less.
			s.emit(asmLine(opBEQ, endLabel))
		}
		s.consumeFlags()
		s.materializeImm(destReg, 1)
		s.emit(asmLine(opJMP, endLabel))

		s.emit(equalLabel + ":")
		if pred == "sge" || pred == "sle" {
			s.materializeImm(destReg, 1)
		}
		s.emit(endLabel + ":")
	default:
		return s.fail(raw, "unsupported icmp predicate "+pred)
	}
	return nil
}

// lowerSelect lowers `select i1 %cond, TYPE %t, TYPE %f` into a
// condition test and a two-arm sequence with a join label, per spec.md
// §4.4.
func (s *Selector) lowerSelect(raw, dest, rest string) error {
	_, _, operandStr := fields(rest)
	parts := splitOperands(operandStr)
	if len(parts) != 3 {
		return s.fail(raw, "expected cond, true and false operands")
	}
	condTok := lastField(parts[0])
	trueTypeTok, trueTok := typeAndValue(parts[1])
	_, falseTok := typeAndValue(parts[2])
	kind := ir.ParseValueKind(trueTypeTok)

	condReg, err := s.resolveValue(condTok, ir.I1, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(condTok)

	s.emit(asmLine(opSUB, regfile.ScratchC.String(), condReg.String(), "0"))
	s.markFlagsProducer()

	destReg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)

	falseLabel := s.labels.New("select_false")
	endLabel := s.labels.New("select_end")
	s.emit(asmLine(opBEQ, falseLabel))
	s.consumeFlags()

	trueReg, err := s.resolveValue(trueTok, kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(trueTok)
	if destReg != trueReg {
		s.emit(asmLine(opMOV, destReg.String(), trueReg.String()))
	}
	s.emit(asmLine(opJMP, endLabel))

	s.emit(falseLabel + ":")
	falseReg, err := s.resolveValue(falseTok, kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(falseTok)
	if destReg != falseReg {
		s.emit(asmLine(opMOV, destReg.String(), falseReg.String()))
	}
	s.emit(endLabel + ":")
	return nil
}

// lowerRet lowers `ret void` / `ret TYPE value`, ensuring a non-void value
// lands in R0 before emitting RET, per spec.md §4.4.
func (s *Selector) lowerRet(raw, rest string) error {
	if s.trace {
		s.emit("\t; " + raw)
	}
	rest = strings.TrimSpace(rest)
	if rest == "void" || rest == "" {
		s.emit(asmLine(opRET))
		return nil
	}
	typeTok, valueTok := typeAndValue(rest)
	kind := ir.ParseValueKind(typeTok)
	reg, err := s.resolveValue(valueTok, kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(valueTok)
	if reg != regfile.RetReg {
		s.emit(asmLine(opMOV, regfile.RetReg.String(), reg.String()))
	}
	s.emit(asmLine(opRET))
	return nil
}

// typeAndValue splits a "TYPE value" token pair.
func typeAndValue(s string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[0], parts[len(parts)-1]
}

// lastField returns the final whitespace-delimited token of s (used to drop
// a leading type keyword from a "TYPE %value" operand).
func lastField(s string) string {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
