package route

import (
	"fmt"
	"strings"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/types"
)

// Kind is the semantic category of a payment route
type Kind string

const (
	KindDirect         Kind = "direct"
	KindSameChainToken Kind = "same-chain-token"
	KindCrosschain     Kind = "crosschain"
	KindCryptoToFiat   Kind = "crypto-to-fiat"
)

// Classification is the derived label of a route
type Classification struct {
	Kind        Kind   `json:"type"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// settlementNetworks maps invoice currency chains to the network names routes use
var settlementNetworks = map[string]string{
	"matic":        "polygon",
	"base":         "base",
	"arbitrum-one": "arbitrum",
	"arbitrum":     "arbitrum",
	"optimism":     "optimism",
	"mainnet":      "ethereum",
}

// SettlementNetwork returns the route network name for an invoice chain
func SettlementNetwork(invoiceChain string) (string, bool) {
	n, ok := settlementNetworks[strings.ToLower(invoiceChain)]
	return n, ok
}

// InvoiceChain returns the chain an invoice settles on, from its payment currency
func InvoiceChain(paymentCurrency string) string {
	return invoice.ChainFromCurrency(paymentCurrency)
}

// Classify labels a route relative to the invoice chain. Same-network checks
// win over chain equality, which wins over the crosschain fallback.
func Classify(r types.QuotedRoute, invoiceChain string) Classification {
	if r.IsSameNetwork() && r.IsCryptoToFiat {
		return Classification{
			Kind:        KindCryptoToFiat,
			Label:       "Crypto-to-fiat",
			Description: "Pay with crypto for a fiat invoice",
		}
	}

	if r.IsSameNetwork() {
		return Classification{
			Kind:        KindDirect,
			Label:       "Direct Payment",
			Description: "Pay directly on the same network",
		}
	}

	if network, ok := SettlementNetwork(invoiceChain); ok && strings.ToLower(r.Chain) == network {
		return Classification{
			Kind:        KindSameChainToken,
			Label:       "Same-Chain ERC20",
			Description: fmt.Sprintf("Pay with %s (no gas token needed)", r.Token),
		}
	}

	return Classification{
		Kind:        KindCrosschain,
		Label:       "Crosschain Payment",
		Description: fmt.Sprintf("Pay from %s network using %s", r.Chain, r.Token),
	}
}

// Labeled pairs a route with its classification
type Labeled struct {
	Route          types.QuotedRoute `json:"route"`
	Classification Classification    `json:"classification"`
}

// ClassifyAll labels every route in order
func ClassifyAll(routes []types.QuotedRoute, invoiceChain string) []Labeled {
	out := make([]Labeled, len(routes))
	for i, r := range routes {
		out[i] = Labeled{Route: r, Classification: Classify(r, invoiceChain)}
	}
	return out
}
