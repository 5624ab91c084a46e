package invoice

import "strings"

var chainLabels = map[string]string{
	"mainnet":      "Ethereum",
	"base":         "Base",
	"matic":        "Polygon",
	"optimism":     "Optimism",
	"arbitrum":     "Arbitrum",
	"arbitrum-one": "Arbitrum One",
	"sepolia":      "Sepolia",
	"base-sepolia": "Base Sepolia",
}

// mainnetChains move real value; testnet currencies are not listed
var mainnetChains = map[string]bool{
	"mainnet":      true,
	"base":         true,
	"matic":        true,
	"optimism":     true,
	"arbitrum":     true,
	"arbitrum-one": true,
}

// ChainFromCurrency extracts the chain from a currency code like "USDC-base".
// Codes without a chain suffix return an empty string.
func ChainFromCurrency(currency string) string {
	symbol, chain, ok := strings.Cut(currency, "-")
	if !ok || symbol == "" {
		return ""
	}
	return strings.ToLower(chain)
}

// SymbolFromCurrency returns the token symbol part of a currency code
func SymbolFromCurrency(currency string) string {
	symbol, _, _ := strings.Cut(currency, "-")
	return symbol
}

// CurrencyLabel formats a currency code for display: "USDC-base" becomes "USDC (Base)"
func CurrencyLabel(currency string) string {
	chain := ChainFromCurrency(currency)
	if chain == "" {
		return currency
	}

	label, ok := chainLabels[chain]
	if !ok {
		label = strings.ToUpper(chain[:1]) + chain[1:]
	}
	return SymbolFromCurrency(currency) + " (" + label + ")"
}

// IsMainnetCurrency reports whether paying in this currency transfers real value
func IsMainnetCurrency(currency string) bool {
	return mainnetChains[ChainFromCurrency(currency)]
}
