package hsx

import (
	"strings"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
)

// expressions.go lowers integer/float arithmetic, shifts, the overflow
// intrinsic and half/float conversions, per spec.md §4.4. Grounded on the
// teacher's src/backend/arm/expressions.go's operand-then-operator shape,
// adapted to HSX's three-operand register form.

// lowerIntArith lowers add/sub/mul on i32, per spec.md §4.4.
func (s *Selector) lowerIntArith(raw, dest, opcode string, kind ir.ValueKind, operands []string) error {
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

	reg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)

	mnem := map[string]string{"add": opADD, "sub": opSUB, "mul": opMUL}[opcode]
	s.emit(asmLine(mnem, reg.String(), a.String(), b.String()))
	s.noteEmitted(mnem)
	return nil
}

// lowerShift lowers shl/lshr/ashr, materializing an immediate shift amount
// into scratch, per spec.md §4.4.
func (s *Selector) lowerShift(raw, dest, opcode string, kind ir.ValueKind, operands []string) error {
	if len(operands) != 2 {
		return s.fail(raw, "expected two operands")
	}
	a, err := s.resolveValue(operands[0], kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	shiftReg, err := s.resolveValue(operands[1], kind, regfile.ScratchB)
	if err != nil {
		return err
	}
	s.consumeOperand(operands[0])
	s.consumeOperand(operands[1])

	reg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)

	mnem := map[string]string{"shl": opSHL, "lshr": opLSHR, "ashr": opASHR}[opcode]
	s.emit(asmLine(mnem, reg.String(), a.String(), shiftReg.String()))
	s.noteEmitted(mnem)
	return nil
}

// lowerOverflowAdd lowers `llvm.uadd.with.overflow.i32`: an ADD followed by
// an ADDC of a zero seed into the carry slot, per spec.md §4.4. The result
// is a {sum, carry} aggregate; extractvalue picks one field back out.
func (s *Selector) lowerOverflowAdd(raw, dest, rest string) error {
	_, _, operandStr := fields(rest)
	operands := splitOperands(operandStr)
	if len(operands) != 2 {
		return s.fail(raw, "expected two operands")
	}
	a, err := s.resolveValue(operands[0], ir.I32, regfile.ScratchA)
	if err != nil {
		return err
	}
	b, err := s.resolveValue(operands[1], ir.I32, regfile.ScratchC)
	if err != nil {
		return err
	}
	s.consumeOperand(operands[0])
	s.consumeOperand(operands[1])

	sumName := dest + ".0"
	carryName := dest + ".1"
	sumReg, preamble, err := s.alloc.Alloc(sumName, ir.I32)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	s.emit(asmLine(opADD, sumReg.String(), a.String(), b.String()))

	carryReg, preamble2, err := s.alloc.Alloc(carryName, ir.I1)
	if err != nil {
		return err
	}
	s.emitAll(preamble2)
	s.materializeImm(regfile.ScratchB, 0)
	s.emit(asmLine(opADDC, carryReg.String(), regfile.ScratchB.String(), regfile.ScratchB.String()))
	return nil
}

// lowerExtractValue lowers `extractvalue {i32, i1} %agg, N` against the
// {sum, carry} pair lowerOverflowAdd produced, per spec.md §4.4.
func (s *Selector) lowerExtractValue(raw, dest, rest string) error {
	_, _, operandStr := fields(rest)
	operands := splitOperands(operandStr)
	if len(operands) != 2 {
		return s.fail(raw, "expected aggregate and index operands")
	}
	field := operands[1]
	aggName := operands[0] + "." + field

	reg, err := s.resolveValue(aggName, ir.I32, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.alloc.ConsumeUse(aggName)

	kind := ir.I32
	if field == "1" {
		kind = ir.I1
	}
	destReg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	if destReg != reg {
		s.emit(asmLine(opMOV, destReg.String(), reg.String()))
	}
	return nil
}

// lowerFloatArith lowers fadd/fsub/fmul/fdiv on half/float, recording the
// destination in the float-alias table, per spec.md §4.4.
func (s *Selector) lowerFloatArith(raw, dest, opcode string, kind ir.ValueKind, operands []string) error {
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

	reg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)

	mnem := map[string]string{"fadd": opFADD, "fsub": opFSUB, "fmul": opFMUL, "fdiv": opFDIV}[opcode]
	s.emit(asmLine(mnem, reg.String(), a.String(), b.String()))
	s.alloc.BindFloatAlias(dest, reg)
	return nil
}

// lowerFloatBridge lowers fpext half->float and fptrunc float->half as a
// representation-only register copy, per spec.md §4.4 (same bit width on
// this ISA).
func (s *Selector) lowerFloatBridge(raw, dest, opcode string, operands []string) error {
	if len(operands) != 1 {
		return s.fail(raw, "expected one operand")
	}
	kind := ir.Half
	if opcode == "fptrunc" {
		kind = ir.Float
	}
	src, err := s.resolveValue(operands[0], kind, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(operands[0])

	reg, preamble, err := s.alloc.Alloc(dest, kind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	if reg != src {
		s.emit(asmLine(opMOV, reg.String(), src.String()))
	}
	s.alloc.BindFloatAlias(dest, reg)
	return nil
}

// lowerFloatToInt lowers fptosi half|float -> i32.
func (s *Selector) lowerFloatToInt(raw, dest string, operands []string) error {
	if len(operands) != 1 {
		return s.fail(raw, "expected one operand")
	}
	src, err := s.resolveValue(operands[0], ir.Float, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(operands[0])

	reg, preamble, err := s.alloc.Alloc(dest, ir.I32)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	s.emit(asmLine(opFTOI, reg.String(), src.String()))
	return nil
}

// lowerConvertToHalf lowers `llvm.convert.to.fp16.f32`: a representation
// move, converting literal float operands to a half bit pattern at compile
// time, per spec.md §4.4.
func (s *Selector) lowerConvertToHalf(raw, dest, rest string) error {
	_, _, operandStr := fields(rest)
	operands := splitOperands(operandStr)
	if len(operands) != 1 {
		return s.fail(raw, "expected one operand")
	}
	token := operands[0]
	reg, preamble, err := s.alloc.Alloc(dest, ir.Half)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	if strings.HasPrefix(token, "%") {
		src, err := s.resolveValue(token, ir.Float, regfile.ScratchA)
		if err != nil {
			return err
		}
		s.consumeOperand(token)
		if reg != src {
			s.emit(asmLine(opMOV, reg.String(), src.String()))
		}
	} else {
		bits, err := ir.FloatLiteralToHalfBits(token)
		if err != nil {
			return s.fail(raw, err.Error())
		}
		s.emit(asmLine(opLDI32, reg.String(), formatHex16(bits)))
	}
	s.alloc.BindFloatAlias(dest, reg)
	return nil
}

// lowerConvertFromHalf lowers `llvm.convert.from.fp16.f32`, the inverse
// representation move.
func (s *Selector) lowerConvertFromHalf(raw, dest, rest string) error {
	_, _, operandStr := fields(rest)
	operands := splitOperands(operandStr)
	if len(operands) != 1 {
		return s.fail(raw, "expected one operand")
	}
	src, err := s.resolveValue(operands[0], ir.Half, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(operands[0])

	reg, preamble, err := s.alloc.Alloc(dest, ir.Float)
	if err != nil {
		return err
	}
	s.emitAll(preamble)
	if reg != src {
		s.emit(asmLine(opMOV, reg.String(), src.String()))
	}
	s.alloc.BindFloatAlias(dest, reg)
	return nil
}

// consumeOperand decrements the use count for token if it is an SSA name;
// literal and global tokens carry no allocator-tracked use.
func (s *Selector) consumeOperand(token string) {
	if strings.HasPrefix(strings.TrimSpace(token), "%") {
		s.alloc.ConsumeUse(strings.TrimSpace(token))
	}
}

func formatHex16(v uint16) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 6)
	b[0], b[1] = '0', 'x'
	for i := 0; i < 4; i++ {
		shift := uint(12 - 4*i)
		b[2+i] = hexDigits[(v>>shift)&0xF]
	}
	return string(b)
}
