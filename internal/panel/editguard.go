package panel

import "sync"

// SlotKey identifies one editable slot on one dispenser.
type SlotKey struct {
	DispenserID int64
	Slot        int
}

// EditGuard tracks which slots are mid-edit so background refreshes do not
// clobber unsaved operator input. Keys for deleted dispensers are never
// garbage-collected; the set is tiny and bound to the session lifetime.
type EditGuard struct {
	mu      sync.Mutex
	editing map[SlotKey]bool
}

// NewEditGuard creates an empty guard.
func NewEditGuard() *EditGuard {
	return &EditGuard{editing: make(map[SlotKey]bool)}
}

// Set marks a slot as being edited (or not).
func (g *EditGuard) Set(dispenserID int64, slot int, v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.editing[SlotKey{DispenserID: dispenserID, Slot: slot}] = v
}

// SlotEditing reports the flag for one specific slot.
func (g *EditGuard) SlotEditing(dispenserID int64, slot int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.editing[SlotKey{DispenserID: dispenserID, Slot: slot}]
}

// Editing reports whether any slot of the given dispenser is mid-edit.
// Refresh suppression is all-or-nothing per dispenser.
func (g *EditGuard) Editing(dispenserID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range g.editing {
		if v && k.DispenserID == dispenserID {
			return true
		}
	}
	return false
}
