package tokens

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-pay/pkg/types"
)

type staticSource struct {
	tokens []Token
	err    error
	calls  int
}

func (s *staticSource) Tokens(context.Context) ([]Token, error) {
	s.calls++
	return s.tokens, s.err
}

var sample = []Token{
	{Symbol: "USDC", Blockchain: "arb", Decimals: 6, ContractAddress: "0xaf88", AssetID: "nep141:arb-usdc"},
	{Symbol: "USDC", Blockchain: "base", Decimals: 6, ContractAddress: "0x8335", AssetID: "nep141:base-usdc"},
	{Symbol: "USDT", Blockchain: "eth", Decimals: 6, ContractAddress: "0xdac1", AssetID: "nep141:eth-usdt"},
	{Symbol: "wNEAR", Blockchain: "near", Decimals: 24, AssetID: "nep141:wrap.near"},
}

func TestCatalogFetchesOnce(t *testing.T) {
	src := &staticSource{tokens: sample}
	c := NewCatalog(src)

	_, err := c.All(context.Background())
	require.NoError(t, err)
	_, err = c.FindOnChain(context.Background(), "usdc", "base")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
}

func TestFindOnChainUsesAliases(t *testing.T) {
	c := NewCatalog(&staticSource{tokens: sample})

	tok, err := c.FindOnChain(context.Background(), "USDC", "Arbitrum")
	require.NoError(t, err)
	assert.Equal(t, "nep141:arb-usdc", tok.AssetID)

	tok, err = c.FindOnChain(context.Background(), "usdt", "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "0xdac1", tok.ContractAddress)

	_, err = c.FindOnChain(context.Background(), "DAI", "base")
	assert.Error(t, err)
}

func TestAnnotate(t *testing.T) {
	c := NewCatalog(&staticSource{tokens: sample})

	got, err := c.Annotate(context.Background(), []types.QuotedRoute{
		{ID: types.SameNetworkRouteID},
		{ID: "arb-usdc", Chain: "arbitrum", Token: "USDC"},
		{ID: "op-usdc", Chain: "optimism", Token: "USDC"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 6.0, got["arb-usdc"].Decimals)
}

func TestAnnotateSourceError(t *testing.T) {
	c := NewCatalog(&staticSource{err: errors.New("unauthorized")})

	_, err := c.Annotate(context.Background(), []types.QuotedRoute{{ID: "arb-usdc", Chain: "arbitrum", Token: "USDC"}})
	require.Error(t, err)
}

func TestFilterAndGroup(t *testing.T) {
	assert.Len(t, Filter(sample, "", "usd"), 3)
	assert.Len(t, Filter(sample, "ARB", ""), 1)
	assert.Len(t, Filter(sample, "arbitrum", "usdc"), 1)

	chains, grouped := GroupByChain(sample)
	assert.Equal(t, []string{"arb", "base", "eth", "near"}, chains)
	assert.Len(t, grouped["base"], 1)
}
