package panel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"dispen-agua-admin/internal/backend"
)

// ValidationError is a user-facing rejection raised before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// CanRetry reports whether a payment is eligible for a manual dispense retry.
func CanRetry(p backend.Payment) bool {
	return p.Estado == "approved" && !p.Dispensado
}

// Panel holds the synchronized client-side view of the backend: dispensers,
// their normalized slots, recent payments, payment mode, and OAuth link
// status. The backend is the sole source of truth; everything here is a
// cache that is invalidated and re-read, never authoritative.
type Panel struct {
	client *backend.Client
	guard  *EditGuard
	limit  int

	mu          sync.Mutex
	dispensers  []backend.Dispenser
	slots       map[int64][]Slot
	payments    []backend.Payment
	mode        string
	oauth       backend.OAuthStatus
	paymentLink string
}

// New creates a panel bound to one authenticated backend client.
func New(client *backend.Client, paymentsLimit int) *Panel {
	if paymentsLimit <= 0 {
		paymentsLimit = 10
	}
	return &Panel{
		client: client,
		guard:  NewEditGuard(),
		limit:  paymentsLimit,
		slots:  make(map[int64][]Slot),
		mode:   "test",
	}
}

// Guard exposes the edit-guard tracker.
func (p *Panel) Guard() *EditGuard { return p.guard }

// PaymentView augments a payment with its retry eligibility.
type PaymentView struct {
	backend.Payment
	CanRetry bool `json:"can_retry"`
}

// State is a point-in-time copy of the panel for rendering.
type State struct {
	Mode        string              `json:"mode"`
	Live        bool                `json:"live"`
	OAuth       backend.OAuthStatus `json:"oauth"`
	Dispensers  []backend.Dispenser `json:"dispensers"`
	Slots       map[int64][]Slot    `json:"slots"`
	Payments    []PaymentView       `json:"payments"`
	PaymentLink string              `json:"payment_link"`
}

// Snapshot returns a deep copy of the current state.
func (p *Panel) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := State{
		Mode:        p.mode,
		Live:        p.mode == "live",
		OAuth:       p.oauth,
		Dispensers:  append([]backend.Dispenser(nil), p.dispensers...),
		Slots:       make(map[int64][]Slot, len(p.slots)),
		PaymentLink: p.paymentLink,
	}
	for id, rows := range p.slots {
		st.Slots[id] = append([]Slot(nil), rows...)
	}
	// Every dispenser renders two rows even before its slots loaded.
	for _, d := range p.dispensers {
		if _, ok := st.Slots[d.ID]; !ok {
			st.Slots[d.ID] = NormalizeTwo(nil)
		}
	}
	st.Payments = make([]PaymentView, len(p.payments))
	for i, pay := range p.payments {
		st.Payments[i] = PaymentView{Payment: pay, CanRetry: CanRetry(pay)}
	}
	return st
}

// Mode returns the active payment mode.
func (p *Panel) Mode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// DispenserCount returns the number of known dispensers.
func (p *Panel) DispenserCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dispensers)
}

// RefreshMode re-reads the payment mode from the backend.
func (p *Panel) RefreshMode(ctx context.Context) error {
	mode, err := p.client.GetMode(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
	return nil
}

// RefreshOAuthStatus re-reads the MercadoPago link status.
func (p *Panel) RefreshOAuthStatus(ctx context.Context) error {
	st, err := p.client.OAuthStatus(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.oauth = st
	p.mu.Unlock()
	return nil
}

// RefreshDispensers re-reads the dispenser list. It reports whether the list
// length changed, which is the trigger for re-fetching all slot data.
func (p *Panel) RefreshDispensers(ctx context.Context) (changed bool, err error) {
	ds, err := p.client.ListDispensers(ctx)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	changed = len(ds) != len(p.dispensers)
	p.dispensers = ds
	p.mu.Unlock()
	return changed, nil
}

// RefreshSlots fetches and normalizes one dispenser's products. The result is
// discarded when any slot of that dispenser is mid-edit, so an in-progress
// keystroke is never clobbered; suppression is all-or-nothing per dispenser.
func (p *Panel) RefreshSlots(ctx context.Context, dispenserID int64) error {
	products, err := p.client.ListProducts(ctx, dispenserID)
	if err != nil {
		return err
	}
	rows := NormalizeTwo(products)

	if p.guard.Editing(dispenserID) {
		return nil
	}
	p.mu.Lock()
	p.slots[dispenserID] = rows
	p.mu.Unlock()
	return nil
}

// RefreshAllSlots fetches every dispenser's slots in parallel. Individual
// failures are logged and the previous known-good rows retained.
func (p *Panel) RefreshAllSlots(ctx context.Context) {
	p.mu.Lock()
	ids := make([]int64, len(p.dispensers))
	for i, d := range p.dispensers {
		ids[i] = d.ID
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(dispenserID int64) {
			defer wg.Done()
			if err := p.RefreshSlots(ctx, dispenserID); err != nil {
				log.Printf("slot refresh for dispenser %d failed: %v", dispenserID, err)
			}
		}(id)
	}
	wg.Wait()
}

// RefreshPayments re-reads the most recent payments and returns them so the
// caller can feed the archive.
func (p *Panel) RefreshPayments(ctx context.Context) ([]backend.Payment, error) {
	pagos, err := p.client.ListPayments(ctx, p.limit)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.payments = pagos
	p.mu.Unlock()
	return pagos, nil
}

// rowsLocked returns the slot rows for a dispenser, materializing the two
// placeholder rows when nothing was loaded yet. Callers hold p.mu.
func (p *Panel) rowsLocked(dispenserID int64) []Slot {
	rows, ok := p.slots[dispenserID]
	if !ok || len(rows) < SlotCount {
		rows = NormalizeTwo(nil)
		p.slots[dispenserID] = rows
	}
	return rows
}

// slotRow returns a copy of one slot row.
func (p *Panel) slotRow(dispenserID int64, slot int) (Slot, error) {
	if slot < 1 || slot > SlotCount {
		return Slot{}, fmt.Errorf("slot %d out of range", slot)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rowsLocked(dispenserID)[slot-1], nil
}

// applySlotRow overwrites one slot row with an authoritative record.
func (p *Panel) applySlotRow(dispenserID int64, slot int, row Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rowsLocked(dispenserID)[slot-1] = row
}

// EditSlot applies an in-progress field edit to the local row and flags the
// slot as mid-edit so refreshes keep their hands off.
func (p *Panel) EditSlot(dispenserID int64, slot int, nombre, precio *string) error {
	if slot < 1 || slot > SlotCount {
		return fmt.Errorf("slot %d out of range", slot)
	}
	p.mu.Lock()
	rows := p.rowsLocked(dispenserID)
	if nombre != nil {
		rows[slot-1].Nombre = *nombre
	}
	if precio != nil {
		rows[slot-1].Precio = *precio
	}
	p.mu.Unlock()

	p.guard.Set(dispenserID, slot, true)
	return nil
}

// SaveSlot persists the local row: a placeholder becomes a new product, an
// existing product gets a full update. Validation failures abort before any
// network call. The edit flag is cleared and a fresh per-dispenser fetch
// issued on both the success and the error path.
func (p *Panel) SaveSlot(ctx context.Context, dispenserID int64, slot int) error {
	row, err := p.slotRow(dispenserID, slot)
	if err != nil {
		return err
	}

	nombre := strings.TrimSpace(row.Nombre)
	if nombre == "" {
		return &ValidationError{Msg: "Ingresá un nombre"}
	}
	precio, perr := strconv.ParseFloat(strings.TrimSpace(row.Precio), 64)
	if perr != nil || precio <= 0 {
		return &ValidationError{Msg: "Ingresá un precio mayor a 0"}
	}

	// Scoped release: whatever the save did, drop the edit flag and
	// reconcile against a fresh authoritative read.
	defer func() {
		p.guard.Set(dispenserID, slot, false)
		if rerr := p.RefreshSlots(ctx, dispenserID); rerr != nil {
			log.Printf("post-save refresh for dispenser %d failed: %v", dispenserID, rerr)
		}
	}()

	var saved *backend.Product
	if row.Placeholder || row.ID == nil {
		saved, err = p.client.CreateProduct(ctx, backend.NewProduct{
			Nombre:      nombre,
			Precio:      precio,
			Habilitado:  row.Habilitado,
			Slot:        slot,
			DispenserID: dispenserID,
		})
	} else {
		habilitado := row.Habilitado
		slotNum := slot
		saved, err = p.client.UpdateProduct(ctx, *row.ID, backend.ProductPatch{
			Nombre:     &nombre,
			Precio:     &precio,
			Habilitado: &habilitado,
			Slot:       &slotNum,
		})
	}
	if err != nil {
		return err
	}
	if saved != nil {
		p.applySlotRow(dispenserID, slot, slotFromProduct(saved))
	}
	return nil
}

// ToggleEnabled flips a slot's enablement. The new value is applied locally
// before the network call resolves; when the call succeeds the server's
// record wins, when it fails the optimistic value is left in place. A
// placeholder slot is rejected before any network traffic.
func (p *Panel) ToggleEnabled(ctx context.Context, dispenserID int64, slot int, enabled bool) error {
	row, err := p.slotRow(dispenserID, slot)
	if err != nil {
		return err
	}
	if row.ID == nil {
		return &ValidationError{Msg: "Primero guardá el producto"}
	}

	row.Habilitado = enabled
	p.applySlotRow(dispenserID, slot, row)

	saved, err := p.client.UpdateProduct(ctx, *row.ID, backend.ProductPatch{Habilitado: &enabled})
	if err != nil {
		log.Printf("toggle habilitado for product %d failed: %v", *row.ID, err)
		return nil
	}
	if saved != nil {
		p.applySlotRow(dispenserID, slot, slotFromProduct(saved))
	}
	return nil
}

// CreatePaymentLink requests a fresh payment preference for a slot's product
// and remembers the link for QR display. Placeholders are rejected without a
// network call.
func (p *Panel) CreatePaymentLink(ctx context.Context, dispenserID int64, slot int) (string, error) {
	row, err := p.slotRow(dispenserID, slot)
	if err != nil {
		return "", err
	}
	if row.ID == nil {
		return "", &ValidationError{Msg: "Guardá primero el producto"}
	}

	link, err := p.client.CreatePreference(ctx, *row.ID)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.paymentLink = link
	p.mu.Unlock()
	return link, nil
}

// CreateDispenser asks for a new dispenser with defaults and reloads the
// list; when the list grew, all slot data is re-fetched.
func (p *Panel) CreateDispenser(ctx context.Context) (*backend.Dispenser, error) {
	d, err := p.client.CreateDispenser(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := p.RefreshDispensers(ctx)
	if err != nil {
		log.Printf("dispenser list reload after create failed: %v", err)
		return d, nil
	}
	if changed {
		p.RefreshAllSlots(ctx)
	}
	return d, nil
}

// ToggleMode flips between test and live and confirms the new value with a
// fresh config read rather than assuming the toggle took effect.
func (p *Panel) ToggleMode(ctx context.Context) (string, error) {
	target := "live"
	if p.Mode() == "live" {
		target = "test"
	}
	if err := p.client.SetMode(ctx, target); err != nil {
		return "", err
	}
	if err := p.RefreshMode(ctx); err != nil {
		log.Printf("config reload after mode toggle failed: %v", err)
	}
	return p.Mode(), nil
}

// OAuthAuthorizeURL fetches the MercadoPago authorization URL for the
// operator to open in a browser.
func (p *Panel) OAuthAuthorizeURL(ctx context.Context) (string, error) {
	return p.client.OAuthInitURL(ctx)
}

// OAuthUnlink disconnects the MercadoPago account and re-reads link status.
func (p *Panel) OAuthUnlink(ctx context.Context) error {
	if err := p.client.OAuthUnlink(ctx); err != nil {
		return err
	}
	if err := p.RefreshOAuthStatus(ctx); err != nil {
		log.Printf("oauth status reload after unlink failed: %v", err)
	}
	return nil
}

// RetryDispense re-sends the dispense command for a payment. Eligibility is
// checked against the last polled payment list when the payment is known.
func (p *Panel) RetryDispense(ctx context.Context, paymentID int64) (string, error) {
	p.mu.Lock()
	for _, pay := range p.payments {
		if pay.ID == paymentID && !CanRetry(pay) {
			p.mu.Unlock()
			return "", &ValidationError{Msg: "El pago no admite reintento"}
		}
	}
	p.mu.Unlock()
	return p.client.RetryDispense(ctx, paymentID)
}
