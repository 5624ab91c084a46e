package invoice

import (
	"sync"

	"invoice-pay/pkg/types"
)

// View is the locally displayed state of one invoice: the latest server
// snapshot and the status shown to the payer. The displayed status only
// moves forward: it never leaves paid and never returns to pending once
// something else was shown.
type View struct {
	mu       sync.RWMutex
	snapshot types.Invoice
	status   types.InvoiceStatus
	watchers []func(types.InvoiceStatus)
}

// NewView creates a view from the snapshot the invoice was opened with
func NewView(inv types.Invoice) *View {
	status := inv.Status
	if status == "" {
		status = types.StatusPending
	}
	return &View{snapshot: inv, status: status}
}

// Snapshot returns the last observed invoice
func (v *View) Snapshot() types.Invoice {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// Status returns the displayed status
func (v *View) Status() types.InvoiceStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// IsPaid reports whether the displayed status reached paid
func (v *View) IsPaid() bool {
	return v.Status() == types.StatusPaid
}

// OnStatusChange registers a callback run after every displayed status change
func (v *View) OnStatusChange(fn func(types.InvoiceStatus)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.watchers = append(v.watchers, fn)
}

// Observe merges a server snapshot. The snapshot is always replaced; the
// displayed status follows it unless that would regress. Returns whether
// the displayed status changed.
func (v *View) Observe(inv types.Invoice) bool {
	v.mu.Lock()
	v.snapshot = inv
	changed := v.advance(inv.Status)
	status, watchers := v.status, v.watchers
	v.mu.Unlock()

	if changed {
		notify(watchers, status)
	}
	return changed
}

// SetOptimistic shows a status before the server confirms it.
// The next Observe confirms or corrects the guess.
func (v *View) SetOptimistic(status types.InvoiceStatus) bool {
	v.mu.Lock()
	changed := v.advance(status)
	current, watchers := v.status, v.watchers
	v.mu.Unlock()

	if changed {
		notify(watchers, current)
	}
	return changed
}

func (v *View) advance(next types.InvoiceStatus) bool {
	if next == "" || next == types.StatusPending {
		return false
	}
	if v.status == types.StatusPaid || v.status == next {
		return false
	}
	v.status = next
	return true
}

func notify(watchers []func(types.InvoiceStatus), status types.InvoiceStatus) {
	for _, fn := range watchers {
		fn(status)
	}
}
