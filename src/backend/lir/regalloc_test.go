package lir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hsxcc/src/backend/regfile"
	"hsxcc/src/ir"
	"hsxcc/src/util"
)

func newTestAllocator(coalesce, split bool) *Allocator {
	labels := util.NewLabelAllocator("f")
	return NewAllocator("f", nil, coalesce, split, labels)
}

func TestAllocator_AllocAndReleaseRoundTrip(t *testing.T) {
	a := newTestAllocator(false, false)

	reg, preamble, err := a.Alloc("%a", ir.I32)
	require.NoError(t, err)
	require.Empty(t, preamble)

	got, ok := a.RegisterOf("%a")
	require.True(t, ok)
	require.Equal(t, reg, got)

	a.Release("%a")
	_, ok = a.RegisterOf("%a")
	require.False(t, ok, "a released value must no longer hold a register")
}

func TestAllocator_SpillsWhenPoolExhausted(t *testing.T) {
	a := newTestAllocator(false, false)

	// The allocatable pool has 8 registers; a ninth concurrently live value
	// forces a spill of the least-recently-touched one.
	names := make([]string, 0, len(regfile.AllocatablePool)+1)
	for i := 0; i < len(regfile.AllocatablePool)+1; i++ {
		name := "%v" + string(rune('a'+i))
		names = append(names, name)
		a.Seed(map[string]int{name: 1}, map[string][]int{name: {i + 1}})
	}

	var sawSpillPreamble bool
	for _, name := range names {
		a.Advance()
		_, preamble, err := a.Alloc(name, ir.I32)
		require.NoError(t, err)
		if len(preamble) > 0 {
			sawSpillPreamble = true
		}
	}

	require.True(t, sawSpillPreamble, "allocating past pool capacity must emit a spill preamble")
	require.Greater(t, a.Metrics().SpillCount, 0)
	require.Greater(t, a.Metrics().StackBytes, 0)
}

func TestAllocator_EnsureInRegReloadsASpilledValue(t *testing.T) {
	a := newTestAllocator(false, false)
	a.Seed(map[string]int{"%a": 1}, map[string][]int{"%a": {5}})

	_, _, err := a.Alloc("%a", ir.I32)
	require.NoError(t, err)

	_, err = a.spill("%a", mustRegisterOf(t, a, "%a"))
	require.NoError(t, err)
	_, ok := a.RegisterOf("%a")
	require.False(t, ok)

	reg, preamble, err := a.EnsureInReg("%a")
	require.NoError(t, err)
	require.NotEmpty(t, preamble, "reloading a spilled value must emit a load")
	require.Equal(t, 1, a.Metrics().ReloadCount)

	got, ok := a.RegisterOf("%a")
	require.True(t, ok)
	require.Equal(t, reg, got)
}

func mustRegisterOf(t *testing.T, a *Allocator, name string) regfile.Register {
	t.Helper()
	reg, ok := a.RegisterOf(name)
	require.True(t, ok)
	return reg
}

func TestAllocator_ConsumeUseReleasesOnLastUse(t *testing.T) {
	a := newTestAllocator(false, false)
	a.Seed(map[string]int{"%a": 2}, map[string][]int{"%a": {1, 2}})

	_, _, err := a.Alloc("%a", ir.I32)
	require.NoError(t, err)

	a.ConsumeUse("%a")
	_, ok := a.RegisterOf("%a")
	require.True(t, ok, "one remaining use must keep the register bound")

	a.ConsumeUse("%a")
	_, ok = a.RegisterOf("%a")
	require.False(t, ok, "the last use must release the register")
}

func TestAllocator_PinPreventsReleaseOnLastUse(t *testing.T) {
	a := newTestAllocator(false, false)
	a.Seed(map[string]int{"%a": 1}, map[string][]int{"%a": {1}})

	_, _, err := a.Alloc("%a", ir.I32)
	require.NoError(t, err)

	a.Pin("%a")
	a.ConsumeUse("%a")
	_, ok := a.RegisterOf("%a")
	require.True(t, ok, "a pinned value must not be released even at zero remaining uses")
}

func TestAllocator_AllocPreferred_CoalescesWhenFree(t *testing.T) {
	a := newTestAllocator(true, false)

	src, _, err := a.Alloc("%src", ir.I32)
	require.NoError(t, err)
	a.Release("%src")

	reg, preamble, err := a.AllocPreferred("%dst", ir.I32, src)
	require.NoError(t, err)
	require.Equal(t, src, reg, "coalescing must reuse the free preferred register")
	require.Empty(t, preamble)
}

func TestAllocator_AllocPreferred_FallsBackWhenOccupied(t *testing.T) {
	a := newTestAllocator(true, false)

	occupant, _, err := a.Alloc("%occupant", ir.I32)
	require.NoError(t, err)

	reg, _, err := a.AllocPreferred("%dst", ir.I32, occupant)
	require.NoError(t, err)
	require.NotEqual(t, occupant, reg, "a still-occupied preferred register must not be stolen")
}

func TestAllocator_ProactiveSplit_OnlyWhenEnabled(t *testing.T) {
	buildPressure := func(split bool) int {
		a := newTestAllocator(false, split)
		total := len(regfile.AllocatablePool)
		for i := 0; i < total; i++ {
			name := "%v" + string(rune('a'+i))
			a.Seed(map[string]int{name: 1}, map[string][]int{name: {i + 100}})
			a.Advance()
			_, _, err := a.Alloc(name, ir.I32)
			require.NoError(t, err)
		}
		return a.Metrics().ProactiveSplits
	}

	require.Equal(t, 0, buildPressure(false), "split=false must never proactively split")
	require.GreaterOrEqual(t, buildPressure(true), buildPressure(false),
		"disabling split must never increase the number of proactive splits")
}

func TestAllocator_ParamsEnterPreboundToArgRegs(t *testing.T) {
	labels := util.NewLabelAllocator("f")
	a := NewAllocator("f", []ir.Param{{Name: "%x", Type: ir.I32}}, false, false, labels)

	reg, ok := a.RegisterOf("%x")
	require.True(t, ok)
	require.Equal(t, regfile.ArgRegs[0], reg)
}
