package panel

import (
	"strconv"

	"dispen-agua-admin/internal/backend"
)

// SlotCount is the number of addressable slots per dispenser. Slot 1 is cold
// water, slot 2 is hot water.
const SlotCount = 2

// Slot is the client-side view of one dispenser slot. A slot without a
// backing product is a placeholder: nil ID, default name, empty price,
// disabled. Precio stays a string so unsaved operator input survives
// round-trips through the editing API.
type Slot struct {
	ID          *int64 `json:"id"`
	Nombre      string `json:"nombre"`
	Precio      string `json:"precio"`
	Slot        int    `json:"slot"`
	Habilitado  bool   `json:"habilitado"`
	Placeholder bool   `json:"placeholder"`
}

// defaultSlotName returns the display name for an unconfigured slot.
func defaultSlotName(slot int) string {
	if slot == 1 {
		return "Agua fría"
	}
	return "Agua caliente"
}

// formatPrecio renders a backend price for the editing field.
func formatPrecio(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// NormalizeTwo maps a sparse, unordered product list onto a dense sequence of
// exactly SlotCount entries ordered by slot number. Slots without a matching
// product get a placeholder. Duplicate slot numbers resolve to the last
// record seen; out-of-range slot numbers are dropped.
func NormalizeTwo(products []backend.Product) []Slot {
	bySlot := make(map[int]backend.Product, len(products))
	for _, p := range products {
		if p.Slot < 1 || p.Slot > SlotCount {
			continue
		}
		bySlot[p.Slot] = p
	}

	slots := make([]Slot, 0, SlotCount)
	for s := 1; s <= SlotCount; s++ {
		p, ok := bySlot[s]
		if !ok {
			slots = append(slots, Slot{
				ID:          nil,
				Nombre:      defaultSlotName(s),
				Precio:      "",
				Slot:        s,
				Habilitado:  false,
				Placeholder: true,
			})
			continue
		}
		id := p.ID
		slots = append(slots, Slot{
			ID:         &id,
			Nombre:     p.Nombre,
			Precio:     formatPrecio(p.Precio),
			Slot:       s,
			Habilitado: p.Habilitado,
		})
	}
	return slots
}

// slotFromProduct converts a backend record into the row shape, keeping the
// record's own slot number.
func slotFromProduct(p *backend.Product) Slot {
	id := p.ID
	return Slot{
		ID:         &id,
		Nombre:     p.Nombre,
		Precio:     formatPrecio(p.Precio),
		Slot:       p.Slot,
		Habilitado: p.Habilitado,
	}
}
