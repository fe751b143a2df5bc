package backend

import (
	"sort"
	"strconv"
	"strings"

	"hsxcc/src/backend/lir"
	"hsxcc/src/ir"
)

// emit.go serializes the lowered functions into the text sections and
// JSON-ready metadata document spec.md §4.8 describes. Grounded on the
// teacher's backend/arm/armv8.go GenArm (the `.text` header, per-function
// body, then `.data` section ordering) adapted to HSX's flat directive set
// and in-memory string result (no util.Writer file handle, since spec.md
// §5 forbids the core from opening files itself).

// Metadata is the structured debug/allocator report spec.md §4.8 requires
// alongside the assembly text.
type Metadata struct {
	Functions   []lir.Metrics    `json:"functions"`
	Aggregate   lir.Aggregate    `json:"aggregate"`
	Subprograms []SubprogramInfo `json:"subprograms,omitempty"`
}

// SubprogramInfo is one !DISubprogram record surfaced in the metadata
// document.
type SubprogramInfo struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// EmitAssembly renders the final text per spec.md §4.8: an `.entry`
// directive (if `main` is defined), sorted `.export`/`.import` directives,
// a `.data` section of globals followed by per-function frame storage
// labels, and a `.text` section of function bodies in source order.
func EmitAssembly(prog *ir.Program, results []FunctionResult) string {
	var out []string

	if entry := prog.EntryFunction(); entry != nil {
		out = append(out, ".entry\t"+entry.Name)
	}

	exports := make([]string, 0, len(prog.Functions))
	for _, fn := range prog.Functions {
		exports = append(exports, fn.Name)
	}
	sort.Strings(exports)
	for _, name := range exports {
		out = append(out, ".export\t"+name)
	}

	imports := map[string]bool{}
	for _, r := range results {
		for name := range r.Imports {
			imports[name] = true
		}
	}
	importList := make([]string, 0, len(imports))
	for name := range imports {
		importList = append(importList, name)
	}
	sort.Strings(importList)
	for _, name := range importList {
		out = append(out, ".import\t"+name)
	}

	out = append(out, "", ".data")
	for _, g := range prog.Globals {
		out = append(out, globalDirectives(g)...)
	}
	for _, r := range results {
		if r.FrameBytes == 0 {
			continue
		}
		out = append(out, r.FrameLabel+":")
		out = append(out, asmLine(".zero", strconv.Itoa(r.FrameBytes)))
	}

	out = append(out, "", ".text")
	for _, r := range results {
		out = append(out, r.Asm...)
	}

	return strings.Join(out, "\n") + "\n"
}

// globalDirectives renders one global's label, optional alignment and
// type-directed data payload.
func globalDirectives(g *ir.Global) []string {
	var lines []string
	if g.Align > 0 {
		lines = append(lines, asmLine(".align", strconv.Itoa(g.Align)))
	}
	lines = append(lines, g.Name+":")
	switch g.Kind {
	case ir.GlobalBytes:
		for _, b := range g.Bytes {
			lines = append(lines, asmLine(".byte", formatByte(b)))
		}
	case ir.GlobalInt:
		lines = append(lines, asmLine(directiveForBits(g.IntBits), strconv.FormatInt(g.IntValue, 10)))
	case ir.GlobalFloat:
		lines = append(lines, asmLine(".word", formatHex32(g.FloatBits)))
	}
	return lines
}

func directiveForBits(bits int) string {
	switch bits {
	case 8:
		return ".byte"
	case 16:
		return ".half"
	default:
		return ".word"
	}
}

func formatByte(b byte) string {
	const hexDigits = "0123456789abcdef"
	return "0x" + string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}

func formatHex32(v uint32) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 10)
	out[0], out[1] = '0', 'x'
	for i := 0; i < 8; i++ {
		shift := uint(28 - 4*i)
		out[2+i] = hexDigits[(v>>shift)&0xF]
	}
	return string(out)
}

// EmitMetadata assembles the JSON-ready metadata document: every function's
// allocator metrics, the aggregate summary, and the parsed debug
// subprogram list (omitted if the program carried no debug metadata).
func EmitMetadata(prog *ir.Program, results []FunctionResult) Metadata {
	metrics := make([]lir.Metrics, 0, len(results))
	for _, r := range results {
		metrics = append(metrics, r.Metrics)
	}

	md := Metadata{
		Functions: metrics,
		Aggregate: lir.Summarize(metrics),
	}

	if prog.Debug != nil {
		names := make([]string, 0, len(prog.Debug.Subprograms))
		for tag := range prog.Debug.Subprograms {
			names = append(names, tag)
		}
		sort.Strings(names)
		for _, tag := range names {
			sp := prog.Debug.Subprograms[tag]
			info := SubprogramInfo{Name: sp.Name, Line: sp.Line}
			if sp.File != nil {
				info.File = sp.File.Filename
			}
			md.Subprograms = append(md.Subprograms, info)
		}
	}
	return md
}
