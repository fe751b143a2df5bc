package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMangler_PlainIdentifierPassesThrough(t *testing.T) {
	m := NewMangler()
	assert.Equal(t, "my_global.1", m.Mangle("my_global.1"))
}

func TestMangler_QuotedNamesGetStableIncreasingNames(t *testing.T) {
	m := NewMangler()

	first := m.Mangle("a quoted name")
	second := m.Mangle("another quoted name")
	again := m.Mangle("a quoted name")

	assert.Equal(t, "__hsx_quoted_global_0", first)
	assert.Equal(t, "__hsx_quoted_global_1", second)
	assert.Equal(t, first, again, "the same raw name must always mangle to the same identifier")
}

func TestMangler_ScopedToOneInstance(t *testing.T) {
	a := NewMangler()
	b := NewMangler()

	assert.Equal(t, "__hsx_quoted_global_0", a.Mangle("x"))
	assert.Equal(t, "__hsx_quoted_global_0", b.Mangle("x"), "a fresh Mangler restarts its counter")
}
