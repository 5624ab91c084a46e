package route

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"invoice-pay/pkg/types"
)

// ErrRouteUnavailable is returned when the provider has no route for the wallet
var ErrRouteUnavailable = errors.New("no payment route available")

// Provider quotes payment routes for an invoice and a payer wallet
type Provider interface {
	GetPaymentRoutes(ctx context.Context, requestID, wallet string) (*types.RoutesResponse, error)
}

// Book holds the routes quoted for one wallet and the current selection.
// Routes are dropped when the wallet changes.
type Book struct {
	provider  Provider
	requestID string

	mu          sync.RWMutex
	wallet      string
	routes      []types.QuotedRoute
	platformFee *types.PlatformFee
	selected    *types.QuotedRoute
}

// NewBook creates an empty route book for an invoice request
func NewBook(provider Provider, requestID string) *Book {
	return &Book{provider: provider, requestID: requestID}
}

// Fetch queries the provider for a wallet without touching the book
func (b *Book) Fetch(ctx context.Context, wallet string) (*types.RoutesResponse, error) {
	resp, err := b.provider.GetPaymentRoutes(ctx, b.requestID, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment routes: %w", err)
	}
	if resp == nil {
		resp = &types.RoutesResponse{}
	}
	return resp, nil
}

// Apply replaces the book content with a fetched response for a wallet.
// The selection resets to the first route.
func (b *Book) Apply(wallet string, resp *types.RoutesResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wallet = strings.ToLower(wallet)
	b.routes = append([]types.QuotedRoute(nil), resp.Routes...)
	b.platformFee = resp.PlatformFee
	b.selected = nil

	if len(b.routes) == 0 {
		return ErrRouteUnavailable
	}

	first := b.routes[0]
	b.selected = &first
	return nil
}

// Refresh fetches and applies in one step
func (b *Book) Refresh(ctx context.Context, wallet string) error {
	resp, err := b.Fetch(ctx, wallet)
	if err != nil {
		return err
	}
	return b.Apply(wallet, resp)
}

// Invalidate drops the routes when the wallet differs from the one they were quoted for
func (b *Book) Invalidate(wallet string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wallet == strings.ToLower(wallet) {
		return false
	}
	b.wallet = ""
	b.routes = nil
	b.platformFee = nil
	b.selected = nil
	return true
}

// Select picks a route from the current list by id
func (b *Book) Select(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.routes {
		if r.ID == id {
			picked := r
			b.selected = &picked
			return nil
		}
	}
	return fmt.Errorf("route '%s' not found", id)
}

// Selected returns a copy of the selected route, nil when there is none
func (b *Book) Selected() *types.QuotedRoute {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.selected == nil {
		return nil
	}
	r := *b.selected
	return &r
}

// SelectedFor returns a copy of the selected route only when the routes
// were quoted for wallet
func (b *Book) SelectedFor(wallet string) *types.QuotedRoute {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.selected == nil || b.wallet != strings.ToLower(wallet) {
		return nil
	}
	r := *b.selected
	return &r
}

// Routes returns the quoted routes in provider order
func (b *Book) Routes() []types.QuotedRoute {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]types.QuotedRoute(nil), b.routes...)
}

// PlatformFee returns the fee quoted with the routes
func (b *Book) PlatformFee() *types.PlatformFee {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.platformFee
}

// Wallet returns the wallet the routes were quoted for
func (b *Book) Wallet() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.wallet
}
