package hsx

import (
	"strings"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
)

// cast.go lowers zext/trunc by ANDing with a scratch-materialized mask
// constant, per spec.md §4.4. `zext i1 -> i32` is a plain copy since the bit
// is already in the low bit. sext shifts left and then arithmetic-shifts right
// by a scratch-materialized amount (32 minus the source width); it uses no
// mask, sign-bit test or conditional subtract.

// lowerConvert lowers `%d = OP SRCTYPE %v to DSTTYPE`.
func (s *Selector) lowerConvert(raw, dest, opcode, rest string) error {
	srcTypeTok, valueTok, dstTypeTok, err := parseConvert(rest)
	if err != nil {
		return s.fail(raw, err.Error())
	}
	srcKind := ir.ParseValueKind(srcTypeTok)
	dstKind := ir.ParseValueKind(dstTypeTok)

	src, err := s.resolveValue(valueTok, srcKind, regfile.ScratchA)
	if err != nil {
		return err
	}
	s.consumeOperand(valueTok)

	reg, preamble, err := s.alloc.Alloc(dest, dstKind)
	if err != nil {
		return err
	}
	s.emitAll(preamble)

	switch opcode {
	case "zext":
		if srcKind == ir.I1 {
			if reg != src {
				s.emit(asmLine(opMOV, reg.String(), src.String()))
			}
			return nil
		}
		mask := maskFor(srcKind)
		s.materializeImm(regfile.ScratchB, mask)
		s.emit(asmLine(opAND, reg.String(), src.String(), regfile.ScratchB.String()))
		return nil

	case "trunc":
		mask := maskFor(dstKind)
		s.materializeImm(regfile.ScratchB, mask)
		s.emit(asmLine(opAND, reg.String(), src.String(), regfile.ScratchB.String()))
		return nil

	case "sext":
		shift := 32 - bitsFor(srcKind)
		if shift <= 0 {
			if reg != src {
				s.emit(asmLine(opMOV, reg.String(), src.String()))
			}
			return nil
		}
		s.materializeImm(regfile.ScratchB, int64(shift))
		s.emit(asmLine(opSHL, regfile.ScratchC.String(), src.String(), regfile.ScratchB.String()))
		s.emit(asmLine(opASHR, reg.String(), regfile.ScratchC.String(), regfile.ScratchB.String()))
		return nil

	default:
		return s.fail(raw, "unsupported conversion "+opcode)
	}
}

// parseConvert splits `SRCTYPE %v to DSTTYPE`.
func parseConvert(rest string) (srcType, value, dstType string, err error) {
	idx := strings.Index(rest, " to ")
	if idx < 0 {
		return "", "", "", errValue("malformed conversion: missing 'to'")
	}
	left := strings.TrimSpace(rest[:idx])
	dstType = strings.TrimSpace(rest[idx+len(" to "):])
	srcType, value = typeAndValue(left)
	return srcType, value, dstType, nil
}

func bitsFor(k ir.ValueKind) int {
	switch k {
	case ir.I1:
		return 1
	case ir.I8:
		return 8
	case ir.I16, ir.Half:
		return 16
	default:
		return 32
	}
}

func maskFor(k ir.ValueKind) int64 {
	bits := bitsFor(k)
	if bits >= 32 {
		return -1
	}
	return int64(1<<uint(bits)) - 1
}

type errValue string

func (e errValue) Error() string { return string(e) }
