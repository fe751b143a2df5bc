package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunPeephole_FoldsImmediateIntoMove(t *testing.T) {
	in := []string{
		asmLine("LDI", "R4", "7"),
		asmLine("MOV", "R5", "R4"),
		asmLine("RET"),
	}
	out := RunPeephole(in)
	assert.Equal(t, []string{asmLine("LDI", "R5", "7"), asmLine("RET")}, out)
}

func TestRunPeephole_LeavesR0DestinationAlone(t *testing.T) {
	in := []string{
		asmLine("LDI", "R4", "7"),
		asmLine("MOV", "R0", "R4"),
		asmLine("RET"),
	}
	out := RunPeephole(in)
	assert.Equal(t, in, out, "a move into R0 is the return-value placement and must not be folded")
}

func TestRunPeephole_DropsSelfMoves(t *testing.T) {
	in := []string{
		asmLine("MOV", "R4", "R4"),
		asmLine("RET"),
	}
	out := RunPeephole(in)
	assert.Equal(t, []string{asmLine("RET")}, out)
}

func TestRunPeephole_FixpointIteratesUntilNoRuleFires(t *testing.T) {
	in := []string{
		asmLine("LDI", "R4", "7"),
		asmLine("MOV", "R5", "R4"),
		asmLine("MOV", "R5", "R5"),
		asmLine("RET"),
	}
	out := RunPeephole(in)
	assert.Equal(t, []string{asmLine("LDI", "R5", "7"), asmLine("RET")}, out)
}

func TestRunPeephole_LabelsAndTraceCommentsBreakAdjacency(t *testing.T) {
	in := []string{
		asmLine("LDI", "R4", "7"),
		"\t; %a = add i32 3, 4",
		asmLine("MOV", "R5", "R4"),
		asmLine("RET"),
	}
	out := RunPeephole(in)
	assert.Equal(t, in, out, "a trace comment between the load and the move must prevent folding")
}

func TestParseInstruction(t *testing.T) {
	op, operands, ok := parseInstruction(asmLine("ADD", "R4", "R5", "R6"))
	assert.True(t, ok)
	assert.Equal(t, "ADD", op)
	assert.Equal(t, []string{"R4", "R5", "R6"}, operands)

	_, _, ok = parseInstruction("entry__merge:")
	assert.False(t, ok)

	_, _, ok = parseInstruction("\t; a comment")
	assert.False(t, ok)

	_, _, ok = parseInstruction("")
	assert.False(t, ok)
}
