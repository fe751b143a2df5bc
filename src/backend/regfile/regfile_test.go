package regfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegister_String(t *testing.T) {
	assert.Equal(t, "R0", R0.String())
	assert.Equal(t, "R7", R7.String())
	assert.Equal(t, "R15", R15.String())
}

func TestIsScratch(t *testing.T) {
	assert.True(t, IsScratch(ScratchA))
	assert.True(t, IsScratch(ScratchB))
	assert.True(t, IsScratch(ScratchC))
	assert.False(t, IsScratch(R0))
	assert.False(t, IsScratch(R7))
	for _, r := range AllocatablePool {
		assert.False(t, IsScratch(r), "%s must not be a scratch register", r)
	}
}

func TestAllocatablePool_ExcludesReservedRegisters(t *testing.T) {
	reserved := map[Register]bool{
		RetReg:     true,
		FrameReg:   true,
		ScratchA:   true,
		ScratchB:   true,
		ScratchC:   true,
	}
	for _, a := range ArgRegs {
		reserved[a] = true
	}

	for _, r := range AllocatablePool {
		assert.False(t, reserved[r], "%s is reserved and must not appear in the allocatable pool", r)
	}
}

func TestCycleBreakScratch_IsAScratchRegister(t *testing.T) {
	assert.True(t, IsScratch(CycleBreakScratch))
}
