package network

import "strings"

var chainIDs = map[string]int64{
	"ethereum":     1,
	"mainnet":      1,
	"optimism":     10,
	"polygon":      137,
	"matic":        137,
	"base":         8453,
	"arbitrum":     42161,
	"arbitrum-one": 42161,
	"sepolia":      11155111,
	"base-sepolia": 84532,
}

var chainNames = map[int64]string{
	1:        "ethereum",
	10:       "optimism",
	137:      "polygon",
	8453:     "base",
	42161:    "arbitrum",
	11155111: "sepolia",
	84532:    "base-sepolia",
}

// ChainID maps a chain name to its EVM chain id
func ChainID(name string) (int64, bool) {
	id, ok := chainIDs[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Name returns the canonical name of a chain id
func Name(id int64) string {
	if n, ok := chainNames[id]; ok {
		return n
	}
	return "unknown"
}
