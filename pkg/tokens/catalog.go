package tokens

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"invoice-pay/pkg/client"
	"invoice-pay/pkg/types"
)

// Token is one asset crosschain routes can settle through
type Token struct {
	Symbol          string  `json:"symbol"`
	Blockchain      string  `json:"blockchain"`
	Decimals        float64 `json:"decimals"`
	ContractAddress string  `json:"contractAddress,omitempty"`
	AssetID         string  `json:"assetId"`
}

// Source lists tokens
type Source interface {
	Tokens(ctx context.Context) ([]Token, error)
}

// OneClickSource reads the token list from the 1Click API
type OneClickSource struct {
	client *client.OneClickClient
}

// NewOneClickSource creates a source over a 1Click client
func NewOneClickSource(c *client.OneClickClient) *OneClickSource {
	return &OneClickSource{client: c}
}

// Tokens implements Source
func (s *OneClickSource) Tokens(ctx context.Context) ([]Token, error) {
	resp, err := s.client.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Token, 0, len(resp))
	for _, t := range resp {
		out = append(out, Token{
			Symbol:          t.GetSymbol(),
			Blockchain:      t.GetBlockchain(),
			Decimals:        float64(t.GetDecimals()),
			ContractAddress: t.GetContractAddress(),
			AssetID:         t.GetAssetId(),
		})
	}
	return out, nil
}

// Catalog caches the token list for the lifetime of a command
type Catalog struct {
	source Source

	mu     sync.Mutex
	tokens []Token
	loaded bool
}

// NewCatalog creates a catalog over a source
func NewCatalog(source Source) *Catalog {
	return &Catalog{source: source}
}

// All returns every token, fetching once
func (c *Catalog) All(ctx context.Context) ([]Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.tokens, nil
	}

	list, err := c.source.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token catalog: %w", err)
	}
	c.tokens = list
	c.loaded = true
	return list, nil
}

// FindOnChain looks a token up by symbol on one chain
func (c *Catalog) FindOnChain(ctx context.Context, symbol, chain string) (*Token, error) {
	list, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range list {
		if strings.EqualFold(t.Symbol, symbol) && strings.EqualFold(t.Blockchain, chainAlias(chain)) {
			found := t
			return &found, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found on chain '%s'", strings.ToUpper(symbol), strings.ToLower(chain))
}

// Annotate finds the catalog entry of every route that names a chain and token.
// Routes without a match are left out of the result.
func (c *Catalog) Annotate(ctx context.Context, routes []types.QuotedRoute) (map[string]Token, error) {
	out := make(map[string]Token)
	for _, r := range routes {
		if r.Chain == "" || r.Token == "" {
			continue
		}
		t, err := c.FindOnChain(ctx, r.Token, r.Chain)
		if err != nil {
			if _, loadErr := c.All(ctx); loadErr != nil {
				return nil, loadErr
			}
			continue
		}
		out[r.ID] = *t
	}
	return out, nil
}

// Filter keeps the tokens on chain (exact, case-insensitive) whose symbol contains symbol
func Filter(list []Token, chain, symbol string) []Token {
	var out []Token
	for _, t := range list {
		if chain != "" && !strings.EqualFold(t.Blockchain, chainAlias(chain)) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GroupByChain groups tokens per blockchain, chains sorted alphabetically
func GroupByChain(list []Token) ([]string, map[string][]Token) {
	grouped := make(map[string][]Token)
	for _, t := range list {
		grouped[t.Blockchain] = append(grouped[t.Blockchain], t)
	}

	chains := make([]string, 0, len(grouped))
	for chain := range grouped {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains, grouped
}

// 1Click uses short chain codes
var chainAliases = map[string]string{
	"ethereum":     "eth",
	"mainnet":      "eth",
	"arbitrum":     "arb",
	"arbitrum-one": "arb",
	"polygon":      "pol",
	"matic":        "pol",
	"optimism":     "op",
}

func chainAlias(chain string) string {
	chain = strings.ToLower(chain)
	if alias, ok := chainAliases[chain]; ok {
		return alias
	}
	return chain
}
