package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsxcc/src/util"
)

func baseOptions() util.Options {
	return util.Options{EnablePeephole: true}
}

// Scenario 1: identity return.
func TestCompile_IdentityReturn(t *testing.T) {
	src := `define i32 @f(i32 %x) {
entry:
  ret i32 %x
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)

	assert.NotContains(t, result.Asm, ".entry")
	assert.Contains(t, result.Asm, ".export\tf")
	assert.Contains(t, result.Asm, "RET")
}

// Scenario 2: immediate sum.
func TestCompile_ImmediateSum(t *testing.T) {
	src := `define i32 @add2() {
entry:
  %a = add i32 1, 2
  ret i32 %a
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)

	assert.Contains(t, result.Asm, "1")
	assert.Contains(t, result.Asm, "2")
	assert.Contains(t, result.Asm, "ADD")
	assert.Contains(t, result.Asm, "RET")
}

// Scenario 3: PHI over a diamond.
func TestCompile_PhiDiamond(t *testing.T) {
	src := `define i32 @pick(i1 %cond) {
entry:
  br i1 %cond, label %then, label %else
then:
  %a = add i32 1, 0
  br label %merge
else:
  %b = add i32 2, 0
  br label %merge
merge:
  %r = phi i32 [ %a, %then ], [ %b, %else ]
  ret i32 %r
}
`
	opt := baseOptions()
	opt.AllocCoalesce = true

	result, err := Compile(src, opt)
	require.NoError(t, err)

	assert.Contains(t, result.Asm, "pick__then:")
	assert.Contains(t, result.Asm, "pick__else:")
	assert.Contains(t, result.Asm, "pick__merge:")
	assert.Contains(t, result.Asm, "RET")
}

// Scenario 4: enough independent live values to force a spill.
func TestCompile_SpillForcing(t *testing.T) {
	var b strings.Builder
	b.WriteString("define i32 @spill_chain() {\nentry:\n")
	for i := 0; i < 10; i++ {
		b.WriteString(asmLine("%v"+itoa(i), "add i32 "+itoa(i+1)+", 0"))
	}
	b.WriteString("  %s0 = add i32 %v0, %v1\n")
	b.WriteString("  %s1 = add i32 %v2, %v3\n")
	b.WriteString("  %s2 = add i32 %v4, %v5\n")
	b.WriteString("  %s3 = add i32 %v6, %v7\n")
	b.WriteString("  %s4 = add i32 %v8, %v9\n")
	b.WriteString("  %t0 = add i32 %s0, %s1\n")
	b.WriteString("  %t1 = add i32 %s2, %s3\n")
	b.WriteString("  %u0 = add i32 %t0, %t1\n")
	b.WriteString("  %u1 = add i32 %u0, %s4\n")
	b.WriteString("  ret i32 %u1\n}\n")

	result, err := Compile(b.String(), baseOptions())
	require.NoError(t, err)

	require.Len(t, result.Metadata.Functions, 1)
	m := result.Metadata.Functions[0]
	assert.Greater(t, m.SpillCount, 0)
	assert.GreaterOrEqual(t, m.StackBytes, 4)
	assert.Contains(t, result.Asm, "[R7+")
}

func asmLine(dest, rhs string) string {
	return "  " + dest + " = " + rhs + "\n"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

// Scenario 5: global string load with a byte GEP and sign extension.
func TestCompile_GlobalStringLoad(t *testing.T) {
	src := `@msg = constant [3 x i8] c"OK\00"

define i32 @loadbyte(i32 %i) {
entry:
  %p = getelementptr inbounds ([3 x i8], ptr @msg, i32 0, i32 %i)
  %b = load i8, ptr %p
  %r = sext i8 %b to i32
  ret i32 %r
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)

	assert.Contains(t, result.Asm, "msg:")
	assert.Contains(t, result.Asm, asmDirective(".byte", "0x4f"))
	assert.Contains(t, result.Asm, asmDirective(".byte", "0x4b"))
	assert.Contains(t, result.Asm, asmDirective(".byte", "0x00"))
	assert.Contains(t, result.Asm, "LDI32")
	assert.Contains(t, result.Asm, "LDB")
}

func asmDirective(op, operand string) string {
	return "\t" + op + "\t" + operand
}

// Scenario 6: a call with more than three arguments is rejected.
func TestCompile_TooManyCallArgumentsIsRejected(t *testing.T) {
	src := `declare i32 @callee(i32, i32, i32, i32)

define i32 @f() {
entry:
  %r = call i32 @callee(i32 1, i32 2, i32 3, i32 4)
  ret i32 %r
}
`
	_, err := Compile(src, baseOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 3 args")
}

// Round-trip/idempotence: identical input and options must produce
// byte-identical output.
func TestCompile_IsIdempotent(t *testing.T) {
	src := `define i32 @add2() {
entry:
  %a = add i32 1, 2
  ret i32 %a
}
`
	opt := baseOptions()
	first, err := Compile(src, opt)
	require.NoError(t, err)
	second, err := Compile(src, opt)
	require.NoError(t, err)

	assert.Equal(t, first.Asm, second.Asm)
	assert.Equal(t, first.Metadata, second.Metadata)
}

// Boundary case: a function with no explicit label gets its first block
// labelled `entry`, emitted as the function-qualified `f__entry` label.
func TestCompile_ImplicitEntryLabel(t *testing.T) {
	src := `define i32 @f() {
  ret i32 0
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)
	assert.Contains(t, result.Asm, "f__entry:")
}

// icmp over two immediates must not let the second clobber the first before
// the comparison's SUB reads both.
func TestCompile_IcmpOverTwoImmediates(t *testing.T) {
	src := `define i32 @cmp() {
entry:
  %c = icmp slt i32 1, 2
  %r = select i1 %c, i32 10, i32 20
  ret i32 %r
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)
	assert.Contains(t, result.Asm, "SUB")
	assert.Contains(t, result.Asm, "RET")
}

// A call with two immediate arguments must route each through its own
// scratch register rather than one clobbering the other.
func TestCompile_CallWithTwoImmediateArgs(t *testing.T) {
	src := `declare i32 @add2(i32, i32)

define i32 @f() {
entry:
  %r = call i32 @add2(i32 7, i32 9)
  ret i32 %r
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)
	assert.Contains(t, result.Asm, "CALL\tadd2")
	assert.Contains(t, result.Asm, ".import\tadd2")
}

// zext from i1 is a plain copy, sext from i1 is a shift pair that
// sign-extends bit 0, and trunc to i8 masks the low byte. All three must
// lower without error.
func TestCompile_NarrowConversions(t *testing.T) {
	src := `define i32 @f(i1 %b, i32 %w) {
entry:
  %a = zext i1 %b to i32
  %c = sext i1 %b to i32
  %d = trunc i32 %w to i8
  %e = sext i8 %d to i32
  %sum = add i32 %a, %c
  %sum2 = add i32 %sum, %e
  ret i32 %sum2
}
`
	result, err := Compile(src, baseOptions())
	require.NoError(t, err)
	assert.Contains(t, result.Asm, "RET")
}
