package panel

import (
	"context"
	"log"
	"sync"
	"time"

	"dispen-agua-admin/internal/backend"
)

// Poller drives the refresh cycle for one authenticated session: an initial
// parallel fetch of {mode, oauth status, dispensers}, a one-time slot load
// once the dispenser list is non-empty, then a recurring payment poll.
type Poller struct {
	panel    *Panel
	interval time.Duration

	// OnPayments, when set, receives every successfully polled payment
	// batch (archive/notification hook).
	OnPayments func(ctx context.Context, payments []backend.Payment)

	slotsLoaded bool
}

// NewPoller creates a poller for the given panel.
func NewPoller(p *Panel, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{panel: p, interval: interval}
}

// Run blocks until ctx is cancelled. Failed cycles are logged and skipped;
// there is no backoff or retry, the next scheduled tick proceeds regardless.
// The timer is re-armed only after a cycle completes, so polls never pile up
// behind a stalled network.
func (pl *Poller) Run(ctx context.Context) {
	log.Println("Starting panel poller...")

	pl.initialLoad(ctx)
	pl.tick(ctx)

	timer := time.NewTimer(pl.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Panel poller shutting down.")
			return
		case <-timer.C:
			pl.tick(ctx)
			timer.Reset(pl.interval)
		}
	}
}

// initialLoad performs the parallel first fetch of config, OAuth status, and
// the dispenser list. Failures are logged only; the panel simply starts out
// emptier.
func (pl *Poller) initialLoad(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := pl.panel.RefreshMode(ctx); err != nil {
			log.Printf("config load failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := pl.panel.RefreshOAuthStatus(ctx); err != nil {
			log.Printf("oauth status load failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := pl.panel.RefreshDispensers(ctx); err != nil {
			log.Printf("dispenser list load failed: %v", err)
		}
	}()
	wg.Wait()
}

// tick runs one refresh cycle: the one-time slot load once dispensers exist,
// then the payment poll.
func (pl *Poller) tick(ctx context.Context) {
	if pl.panel.DispenserCount() == 0 {
		// Nothing to poll for yet; a dispenser may still be created
		// mid-session, so keep checking.
		if _, err := pl.panel.RefreshDispensers(ctx); err != nil {
			log.Printf("dispenser list poll failed: %v", err)
		}
		if pl.panel.DispenserCount() == 0 {
			return
		}
	}

	if !pl.slotsLoaded {
		pl.panel.RefreshAllSlots(ctx)
		pl.slotsLoaded = true
	}

	pagos, err := pl.panel.RefreshPayments(ctx)
	if err != nil {
		log.Printf("payment poll failed: %v", err)
		return
	}
	if pl.OnPayments != nil {
		pl.OnPayments(ctx, pagos)
	}
}
