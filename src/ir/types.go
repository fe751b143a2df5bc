package ir

// types.go classifies IR type tokens into the closed ValueKind set and
// derives load/store widths and data directives, per spec.md §4.3.

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// WidthClass is the load/store/data-directive width class a ValueKind maps
// to: byte, half or word.
type WidthClass int

const (
	WidthByte WidthClass = iota
	WidthHalf
	WidthWord
)

// ---------------------
// ----- Functions -----
// ---------------------

// ParseValueKind maps a leading IR type token (e.g. "i32", "half", "ptr") to
// a ValueKind. Unknown tokens default to I32, matching
// original_source/python/hsx-llc.py's deduce_value_type fallback.
func ParseValueKind(token string) ValueKind {
	switch {
	case token == "void":
		return Void
	case token == "i1":
		return I1
	case token == "i8":
		return I8
	case token == "i16":
		return I16
	case token == "i32":
		return I32
	case token == "half":
		return Half
	case token == "float":
		return Float
	case token == "ptr":
		return Ptr
	default:
		return I32
	}
}

// Width returns the load/store width class for k, per spec.md §4.3's table.
func (k ValueKind) Width() WidthClass {
	switch k {
	case I1, I8:
		return WidthByte
	case I16, Half:
		return WidthHalf
	case I32, Float, Ptr:
		return WidthWord
	default:
		return WidthWord
	}
}

// Size returns the in-memory size, in bytes, of one value of kind k. Used
// for getelementptr stride computation and spill-slot sizing.
func (k ValueKind) Size() int {
	switch k.Width() {
	case WidthByte:
		return 1
	case WidthHalf:
		return 2
	default:
		return 4
	}
}

// LoadOp returns the mnemonic for loading a value of kind k from memory.
func (k ValueKind) LoadOp() string {
	switch k.Width() {
	case WidthByte:
		return "LDB"
	case WidthHalf:
		return "LDH"
	default:
		return "LD"
	}
}

// StoreOp returns the mnemonic for storing a value of kind k to memory.
func (k ValueKind) StoreOp() string {
	switch k.Width() {
	case WidthByte:
		return "STB"
	case WidthHalf:
		return "STH"
	default:
		return "ST"
	}
}

// DataDirective returns the assembler data directive used to lay out a
// global or spill slot of kind k.
func (k ValueKind) DataDirective() string {
	switch k.Width() {
	case WidthByte:
		return ".byte"
	case WidthHalf:
		return ".half"
	default:
		return ".word"
	}
}

// ElementSize returns the stride, in bytes, used by getelementptr index
// arithmetic for an IR element-type token (e.g. "i8", "float").
func ElementSize(elemType string) int {
	return ParseValueKind(elemType).Size()
}
