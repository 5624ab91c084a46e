package types

import "github.com/shopspring/decimal"

// SameNetworkRouteID is the reserved route identifier meaning "pay on the invoice's own network"
const SameNetworkRouteID = "REQUEST_NETWORK_PAYMENT"

// QuotedRoute is one candidate path for paying an invoice
type QuotedRoute struct {
	ID             string           `json:"id" validate:"required"`
	Chain          string           `json:"chain,omitempty"`
	Token          string           `json:"token,omitempty"`
	IsCryptoToFiat bool             `json:"isCryptoToFiat,omitempty"`
	Fee            *decimal.Decimal `json:"fee,omitempty"`
	PriceImpact    *decimal.Decimal `json:"price_impact,omitempty"`
}

// IsSameNetwork reports whether the route is the reserved same-network route
func (r *QuotedRoute) IsSameNetwork() bool {
	return r.ID == SameNetworkRouteID
}

// PlatformFee is the fee the platform takes on top of a route
type PlatformFee struct {
	Percentage decimal.Decimal `json:"percentage"`
	Address    string          `json:"address,omitempty"`
}

// RoutesResponse is the Route Provider answer for an invoice and wallet
type RoutesResponse struct {
	Routes      []QuotedRoute `json:"routes" validate:"dive"`
	PlatformFee *PlatformFee  `json:"platformFee,omitempty"`
}
