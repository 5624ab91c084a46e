package route

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"invoice-pay/pkg/types"
)

func TestClassifyIsDeterministic(t *testing.T) {
	routes := []types.QuotedRoute{
		{ID: types.SameNetworkRouteID},
		{ID: types.SameNetworkRouteID, IsCryptoToFiat: true},
		{ID: "base-usdt", Chain: "BASE", Token: "USDT"},
		{ID: "arb-usdc", Chain: "arbitrum", Token: "USDC"},
	}
	chains := []string{"base", "mainnet", "matic", "", "unknown"}

	for _, r := range routes {
		for _, c := range chains {
			assert.Equal(t, Classify(r, c), Classify(r, c))
		}
	}
}

func TestClassifyCryptoToFiatWinsOverDirect(t *testing.T) {
	for _, chain := range []string{"", "base", "ethereum", "polygon"} {
		r := types.QuotedRoute{ID: types.SameNetworkRouteID, IsCryptoToFiat: true, Chain: chain}
		c := Classify(r, "base")
		assert.Equal(t, KindCryptoToFiat, c.Kind)
		assert.Equal(t, "Crypto-to-fiat", c.Label)
	}
}

func TestClassifyReservedRouteIsDirect(t *testing.T) {
	for _, chain := range []string{"", "base", "arbitrum"} {
		c := Classify(types.QuotedRoute{ID: types.SameNetworkRouteID, Chain: chain}, "base")
		assert.Equal(t, KindDirect, c.Kind)
		assert.Equal(t, "Pay directly on the same network", c.Description)
	}
}

func TestClassifySameChainIgnoresCase(t *testing.T) {
	c := Classify(types.QuotedRoute{ID: "base-usdt", Chain: "Base", Token: "USDT"}, "base")
	assert.Equal(t, KindSameChainToken, c.Kind)
	assert.Equal(t, "Pay with USDT (no gas token needed)", c.Description)

	c = Classify(types.QuotedRoute{ID: "pol-usdt", Chain: "polygon", Token: "USDT"}, "MATIC")
	assert.Equal(t, KindSameChainToken, c.Kind)
}

func TestClassifyCrosschain(t *testing.T) {
	c := Classify(types.QuotedRoute{ID: "arb-usdc", Chain: "arbitrum", Token: "USDC"}, "mainnet")
	assert.Equal(t, KindCrosschain, c.Kind)
	assert.Equal(t, "Pay from arbitrum network using USDC", c.Description)

	c = Classify(types.QuotedRoute{ID: "x", Chain: "base", Token: "USDC"}, "")
	assert.Equal(t, KindCrosschain, c.Kind, "unknown invoice chain falls back to crosschain")
}

type fakeProvider struct {
	resp  *types.RoutesResponse
	err   error
	calls []string
}

func (f *fakeProvider) GetPaymentRoutes(_ context.Context, requestID, wallet string) (*types.RoutesResponse, error) {
	f.calls = append(f.calls, requestID+"/"+wallet)
	return f.resp, f.err
}

func TestBookSelectsFirstRoute(t *testing.T) {
	fee := &types.PlatformFee{Percentage: decimal.RequireFromString("0.5")}
	p := &fakeProvider{resp: &types.RoutesResponse{
		Routes:      []types.QuotedRoute{{ID: types.SameNetworkRouteID}, {ID: "arb-usdc", Chain: "arbitrum", Token: "USDC"}},
		PlatformFee: fee,
	}}
	b := NewBook(p, "req-1")

	require.NoError(t, b.Refresh(context.Background(), "0xABC"))
	assert.Equal(t, []string{"req-1/0xABC"}, p.calls)
	assert.Equal(t, types.SameNetworkRouteID, b.Selected().ID)
	assert.Equal(t, fee, b.PlatformFee())

	require.NoError(t, b.Select("arb-usdc"))
	assert.Equal(t, "arb-usdc", b.Selected().ID)
	assert.Error(t, b.Select("missing"))
}

func TestBookEmptyRoutes(t *testing.T) {
	b := NewBook(&fakeProvider{resp: &types.RoutesResponse{}}, "req-1")

	err := b.Refresh(context.Background(), "0xabc")
	require.ErrorIs(t, err, ErrRouteUnavailable)
	assert.Nil(t, b.Selected())
}

func TestBookProviderError(t *testing.T) {
	b := NewBook(&fakeProvider{err: errors.New("boom")}, "req-1")

	err := b.Refresh(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestBookInvalidatesOnWalletChange(t *testing.T) {
	b := NewBook(&fakeProvider{resp: &types.RoutesResponse{Routes: []types.QuotedRoute{{ID: "a"}}}}, "req-1")
	require.NoError(t, b.Refresh(context.Background(), "0xAbC"))

	assert.False(t, b.Invalidate("0xabc"))
	assert.NotNil(t, b.Selected())

	assert.True(t, b.Invalidate("0xdef"))
	assert.Nil(t, b.Selected())
	assert.Empty(t, b.Routes())
}

func TestSelectedForChecksWallet(t *testing.T) {
	b := NewBook(&fakeProvider{resp: &types.RoutesResponse{Routes: []types.QuotedRoute{{ID: "a"}}}}, "req-1")
	require.NoError(t, b.Refresh(context.Background(), "0xAbC"))

	require.NotNil(t, b.SelectedFor("0xABC"))
	assert.Equal(t, "a", b.SelectedFor("0xabc").ID)
	assert.Nil(t, b.SelectedFor("0xdef"))
}

func TestSelectedIsACopy(t *testing.T) {
	b := NewBook(&fakeProvider{resp: &types.RoutesResponse{Routes: []types.QuotedRoute{{ID: "a", Token: "USDC"}}}}, "req-1")
	require.NoError(t, b.Refresh(context.Background(), "0x1"))

	r := b.Selected()
	r.Token = "DAI"
	assert.Equal(t, "USDC", b.Selected().Token)
}

func TestInvoiceChain(t *testing.T) {
	assert.Equal(t, "base", InvoiceChain("USDC-base"))
	assert.Equal(t, "", InvoiceChain("USD"))
}
