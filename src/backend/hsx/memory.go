package hsx

import (
	"strconv"
	"strings"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
)

// memory.go lowers load/store/alloca/getelementptr, per spec.md §4.4.

// lowerAlloca lowers `%p = alloca TYPE[, align N]`, reserving a frame-
// relative stack slot. The first alloca (or spill) in a function pins R7
// as the frame-pointer base, per spec.md §3.
func (s *Selector) lowerAlloca(raw, dest, rest string) error {
	tokens := strings.Fields(rest)
	if len(tokens) < 2 {
		return s.fail(raw, "malformed alloca")
	}
	elemType := strings.TrimSuffix(tokens[1], ",")
	kind := ir.ParseValueKind(elemType)

	addr, preamble := s.alloc.AllocaSlot(dest, kind)
	s.emitAll(preamble)

	reg, allocPreamble, err := s.alloc.Alloc(dest, ir.Ptr)
	if err != nil {
		return err
	}
	s.emitAll(allocPreamble)
	s.emit(asmLine(opLDI32, reg.String(), addr))
	return nil
}

// lowerLoad lowers `%d = load TYPE, ptr %p`.
func (s *Selector) lowerLoad(raw, dest, rest string) error {
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return s.fail(raw, "malformed load")
	}
	loadTypeTok := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[0]), "load"))
	kind := ir.ParseValueKind(loadTypeTok)
	ptrTok := lastField(parts[1])

	ptrReg, err := s.resolveValue(ptrTok, ir.Ptr, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(ptrTok)

	reg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	s.emit(asmLine(kind.LoadOp(), reg.String(), "["+ptrReg.String()+"]"))
	return nil
}

// lowerStore lowers `store TYPE value, ptr %p`.
func (s *Selector) lowerStore(raw, rest string) error {
	rest = strings.TrimPrefix(strings.TrimSpace(rest), "store")
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return s.fail(raw, "malformed store")
	}
	valTypeTok, valTok := typeAndValue(parts[0])
	kind := ir.ParseValueKind(valTypeTok)
	ptrTok := lastField(parts[1])

	valReg, err := s.resolveValue(valTok, kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(valTok)

	ptrReg, err := s.resolveValue(ptrTok, ir.Ptr, regfile.ScratchB)
	if err != nil {
		return err
	}
	s.consumeOperand(ptrTok)

	s.emit(asmLine(kind.StoreOp(), valReg.String(), "["+ptrReg.String()+"]"))
	return nil
}

// lowerGEP lowers `getelementptr inbounds (TYPE, ptr BASE, i32 0, i32 IDX)`
// and its array/single-element/opaque-struct-pointer shapes, per spec.md
// §4.4. A leading zero index over an SSA inner index multiplies by the
// element stride and adds to the base; constant-zero indices collapse to a
// copy of the base.
func (s *Selector) lowerGEP(raw, dest, rest string) error {
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "getelementptr"))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "inbounds"))
	rest = strings.TrimPrefix(rest, "(")
	rest = strings.TrimSuffix(rest, ")")
	parts := splitOperands(rest)
	if len(parts) < 2 {
		return s.fail(raw, "malformed getelementptr")
	}

	stride := ir.ElementSize(gepElementType(parts[0]))

	_, baseTok := typeAndValue(parts[1])
	baseReg, err := s.resolveValue(baseTok, ir.Ptr, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(baseTok)

	destReg, preamble, err := s.alloc.Alloc(dest, ir.Ptr)
	if err != nil {
		return err
	}
	s.emitAll(preamble)

	if len(parts) < 4 {
		// No inner index: collapse to a copy of the base.
		if destReg != baseReg {
			s.emit(asmLine(opMOV, destReg.String(), baseReg.String()))
		}
		return nil
	}

	_, innerTok := typeAndValue(parts[3])
	if n, err := strconv.ParseInt(innerTok, 0, 64); err == nil && n == 0 {
		if destReg != baseReg {
			s.emit(asmLine(opMOV, destReg.String(), baseReg.String()))
		}
		return nil
	}

	innerReg, err := s.resolveValue(innerTok, ir.I32, regfile.ScratchC)
	if err != nil {
		return err
	}
	s.consumeOperand(innerTok)

	s.materializeImm(regfile.ScratchB, int64(stride))
	s.emit(asmLine(opMUL, regfile.ScratchC.String(), innerReg.String(), regfile.ScratchB.String()))
	s.emit(asmLine(opADD, destReg.String(), baseReg.String(), regfile.ScratchC.String()))
	return nil
}

// gepElementType extracts the element type a getelementptr index strides
// over from its first operand: "[N x TYPE]" yields TYPE, a bare scalar
// pointee type (non-array GEP) yields itself.
func gepElementType(pointeeType string) string {
	tok := strings.TrimSpace(pointeeType)
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
		inner := strings.TrimSuffix(strings.TrimPrefix(tok, "["), "]")
		fields := strings.Fields(inner)
		if len(fields) == 3 && fields[1] == "x" {
			return fields[2]
		}
	}
	return firstToken(tok)
}

// firstToken returns the first whitespace-delimited token of s.
func firstToken(s string) string {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
