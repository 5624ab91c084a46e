package payment

import (
	"context"
	"strings"
	"sync"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/route"
	"invoice-pay/pkg/types"
)

// Session is the state of one open invoice: the displayed invoice, its
// routes and the progress of the payment attempt. Each view owns its own
// session; nothing here is shared between invoices.
type Session struct {
	Invoice *invoice.View
	Routes  *route.Book

	mu        sync.Mutex
	wallet    string
	progress  Progress
	pending   *pendingRoutes
	observers []func(Progress)
}

// pendingRoutes is a route change held back until the attempt ends. A nil
// resp only invalidates the routes of any other wallet.
type pendingRoutes struct {
	wallet string
	resp   *types.RoutesResponse
}

// NewSession opens a session on an invoice for the connected wallet
func NewSession(view *invoice.View, routes *route.Book, wallet string) *Session {
	return &Session{Invoice: view, Routes: routes, wallet: wallet}
}

// Wallet returns the connected wallet address
func (s *Session) Wallet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet
}

// Progress returns the step of the running attempt, Idle when none
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// OnProgress registers a callback run on every progress change
func (s *Session) OnProgress(fn func(Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// SetWallet switches the connected wallet and requotes routes for it. On a
// change the routes quoted for the previous wallet are dropped first, or
// once the running attempt ends, so a failed requote leaves no route.
func (s *Session) SetWallet(ctx context.Context, wallet string) error {
	s.mu.Lock()
	changed := !strings.EqualFold(s.wallet, wallet)
	s.wallet = wallet
	deferred := changed && s.progress != Idle
	if deferred {
		s.pending = &pendingRoutes{wallet: wallet}
	}
	s.mu.Unlock()

	if changed && !deferred {
		s.Routes.Invalidate(wallet)
	}
	if !changed && s.Routes.Selected() != nil {
		return nil
	}
	return s.RefreshRoutes(ctx)
}

// RefreshRoutes requotes routes for the connected wallet. The fetch runs
// regardless of the attempt state, but while an attempt is running the
// result is held back and applied once the attempt ends so the route it
// follows stays put.
func (s *Session) RefreshRoutes(ctx context.Context) error {
	wallet := s.Wallet()

	resp, err := s.Routes.Fetch(ctx, wallet)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.progress != Idle {
		s.pending = &pendingRoutes{wallet: wallet, resp: resp}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.Routes.Apply(wallet, resp)
}

// begin moves Idle to GettingTransactions, false when an attempt is running
func (s *Session) begin() bool {
	s.mu.Lock()
	if s.progress != Idle {
		s.mu.Unlock()
		return false
	}
	s.progress = GettingTransactions
	observers := s.observers
	s.mu.Unlock()

	emit(observers, GettingTransactions)
	return true
}

func (s *Session) setProgress(p Progress) {
	s.mu.Lock()
	s.progress = p
	observers := s.observers
	s.mu.Unlock()

	emit(observers, p)
}

// finish returns to Idle and applies the route change held back during the
// attempt. The error is the one applying it produced.
func (s *Session) finish() error {
	s.mu.Lock()
	s.progress = Idle
	pending := s.pending
	s.pending = nil
	observers := s.observers
	s.mu.Unlock()

	var err error
	if pending != nil {
		if pending.resp == nil {
			s.Routes.Invalidate(pending.wallet)
		} else {
			err = s.Routes.Apply(pending.wallet, pending.resp)
		}
	}
	emit(observers, Idle)
	return err
}

func emit(observers []func(Progress), p Progress) {
	for _, fn := range observers {
		fn(p)
	}
}
