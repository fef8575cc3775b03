package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditGuard(t *testing.T) {
	g := NewEditGuard()

	assert.False(t, g.Editing(7))

	g.Set(7, 1, true)
	assert.True(t, g.SlotEditing(7, 1))
	assert.False(t, g.SlotEditing(7, 2))
	assert.True(t, g.Editing(7), "any flagged slot marks the dispenser as editing")
	assert.False(t, g.Editing(8), "flags are scoped to the dispenser")

	g.Set(7, 1, false)
	assert.False(t, g.Editing(7))
}

func TestEditGuardCompositeKey(t *testing.T) {
	g := NewEditGuard()

	// Same slot number on different dispensers must not collide.
	g.Set(1, 2, true)
	assert.False(t, g.SlotEditing(2, 2))
	assert.True(t, g.SlotEditing(1, 2))

	// Clearing one dispenser's slot leaves the other untouched.
	g.Set(2, 2, true)
	g.Set(1, 2, false)
	assert.True(t, g.Editing(2))
	assert.False(t, g.Editing(1))
}
