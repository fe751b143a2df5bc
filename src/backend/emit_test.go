package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsxcc/src/backend/lir"
	"hsxcc/src/ir"
)

func TestEmitAssembly_EntryExportImportAndTextOrdering(t *testing.T) {
	prog := &ir.Program{
		Functions: []*ir.Function{
			{Name: "main"},
			{Name: "helper"},
		},
	}
	results := []FunctionResult{
		{Name: "main", Asm: []string{"main__entry:", asmLine("CALL", "helper"), asmLine("RET")}, Imports: map[string]bool{"puts": true}},
		{Name: "helper", Asm: []string{"helper__entry:", asmLine("RET")}},
	}

	out := EmitAssembly(prog, results)

	assert.True(t, strings.Contains(out, ".entry\tmain"))
	assert.True(t, strings.Index(out, ".export\thelper") < strings.Index(out, ".export\tmain"),
		"exports must be sorted alphabetically")
	assert.Contains(t, out, ".export\tmain")
	assert.Contains(t, out, ".export\thelper")
	assert.Contains(t, out, ".import\tputs")
	assert.Contains(t, out, ".text")

	// Function bodies appear in source order within .text.
	assert.True(t, strings.Index(out, "main__entry:") < strings.Index(out, "helper__entry:"))
}

func TestEmitAssembly_NoEntryWithoutMain(t *testing.T) {
	prog := &ir.Program{Functions: []*ir.Function{{Name: "f"}}}
	out := EmitAssembly(prog, []FunctionResult{{Name: "f", Asm: []string{asmLine("RET")}}})
	assert.NotContains(t, out, ".entry")
}

func TestEmitAssembly_GlobalBytesDirectives(t *testing.T) {
	prog := &ir.Program{
		Globals: []*ir.Global{
			{Name: "msg", Kind: ir.GlobalBytes, Bytes: []byte{'O', 'K', 0x00}},
		},
	}
	out := EmitAssembly(prog, nil)
	assert.Contains(t, out, "msg:")
	assert.Contains(t, out, asmLine(".byte", "0x4f"))
	assert.Contains(t, out, asmLine(".byte", "0x4b"))
	assert.Contains(t, out, asmLine(".byte", "0x00"))
}

func TestEmitAssembly_FrameLabelEmittedWhenFunctionUsesStack(t *testing.T) {
	prog := &ir.Program{Functions: []*ir.Function{{Name: "f"}}}
	results := []FunctionResult{{Name: "f", Asm: []string{asmLine("RET")}, FrameLabel: "f__frame", FrameBytes: 8}}
	out := EmitAssembly(prog, results)
	assert.Contains(t, out, "f__frame:")
	assert.Contains(t, out, asmLine(".zero", "8"))
}

func TestEmitMetadata_AggregatesAcrossFunctions(t *testing.T) {
	prog := &ir.Program{Debug: &ir.Debug{}}
	results := []FunctionResult{
		{Name: "f", Metrics: lir.Metrics{Function: "f", SpillCount: 2}},
		{Name: "g", Metrics: lir.Metrics{Function: "g", SpillCount: 0}},
	}
	md := EmitMetadata(prog, results)
	require.Len(t, md.Functions, 2)
	assert.Equal(t, 2, md.Aggregate.TotalSpills)
	assert.Equal(t, 1, md.Aggregate.FunctionsWithSpills)
	assert.Equal(t, 2, md.Aggregate.TotalFunctions)
}

func TestEmitMetadata_SubprogramsSortedByTag(t *testing.T) {
	prog := &ir.Program{
		Debug: &ir.Debug{
			Subprograms: map[string]*ir.Subprogram{
				"2": {Name: "g", Line: 20},
				"1": {Name: "f", Line: 10, File: &ir.File{Filename: "prog.c"}},
			},
		},
	}
	md := EmitMetadata(prog, nil)
	require.Len(t, md.Subprograms, 2)
	assert.Equal(t, "f", md.Subprograms[0].Name)
	assert.Equal(t, "prog.c", md.Subprograms[0].File)
	assert.Equal(t, "g", md.Subprograms[1].Name)
}
