package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-pay/pkg/payment"
	"invoice-pay/pkg/types"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeBackend struct {
	mu        sync.Mutex
	chainID   int64
	nonce     uint64
	gasPrice  int64
	estimate  uint64
	sent      []*gethtypes.Transaction
	notFound  int
	status    uint64
	closed    bool
	estimated bool
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.gasPrice), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimated = true
	return f.estimate, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notFound > 0 {
		f.notFound--
		return nil, ethereum.NotFound
	}
	return &gethtypes.Receipt{Status: f.status, BlockNumber: big.NewInt(42), TxHash: txHash}, nil
}

func (f *fakeBackend) Close() {
	f.closed = true
}

func newTestWallet(t *testing.T, backends map[string]*fakeBackend, opts ...Option) *Wallet {
	t.Helper()
	dialer := func(ctx context.Context, rpcURL string) (Backend, error) {
		b, ok := backends[rpcURL]
		if !ok {
			return nil, errors.New("unreachable")
		}
		return b, nil
	}
	networks := []Network{
		{Name: "base", ChainID: 8453, RPCUrl: "http://base"},
		{Name: "arbitrum", ChainID: 42161, RPCUrl: "http://arb"},
	}
	opts = append([]Option{WithDialer(dialer), WithReceiptPollInterval(time.Millisecond)}, opts...)
	w, err := New(testKey, networks, 8453, opts...)
	require.NoError(t, err)
	return w
}

func permitPayload(owner string) *types.TypedDataPayload {
	return &types.TypedDataPayload{
		Domain: map[string]any{
			"name":              "USD Coin",
			"version":           "2",
			"chainId":           "8453",
			"verifyingContract": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		},
		Types: map[string][]types.TypedDataField{
			"Permit": {
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		Values: map[string]any{
			"owner":    owner,
			"spender":  "0x2222222222222222222222222222222222222222",
			"value":    "1000000",
			"nonce":    "3",
			"deadline": "1893456000",
		},
	}
}

// permitDigest hashes an EIP-2612 permit field by field
func permitDigest(owner common.Address) []byte {
	word := func(b []byte) []byte { return common.LeftPadBytes(b, 32) }

	domainType := crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	domain := crypto.Keccak256(
		domainType,
		crypto.Keccak256([]byte("USD Coin")),
		crypto.Keccak256([]byte("2")),
		word(big.NewInt(8453).Bytes()),
		word(common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913").Bytes()),
	)

	permitType := crypto.Keccak256([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))
	structHash := crypto.Keccak256(
		permitType,
		word(owner.Bytes()),
		word(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
		word(big.NewInt(1000000).Bytes()),
		word(big.NewInt(3).Bytes()),
		word(big.NewInt(1893456000).Bytes()),
	)

	return crypto.Keccak256([]byte{0x19, 0x01}, domain, structHash)
}

func TestSignTypedDataPermit(t *testing.T) {
	w := newTestWallet(t, nil)
	payload := permitPayload(w.Address())

	sig, err := w.SignTypedData(context.Background(), payload)
	require.NoError(t, err)

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	require.Len(t, raw, 65)
	assert.True(t, raw[64] == 27 || raw[64] == 28)

	raw[64] -= 27
	pub, err := crypto.SigToPub(permitDigest(common.HexToAddress(w.Address())), raw)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), crypto.PubkeyToAddress(*pub).Hex())

	recovered, err := RecoverTypedDataSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), recovered)
}

func TestSignTypedDataDeclined(t *testing.T) {
	w := newTestWallet(t, nil, WithConfirmer(func(string) (bool, error) { return false, nil }))

	_, err := w.SignTypedData(context.Background(), permitPayload(w.Address()))
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrSignatureRejected)
}

func TestPrimaryTypeInference(t *testing.T) {
	all := map[string][]types.TypedDataField{
		"EIP712Domain": {{Name: "name", Type: "string"}},
		"Intent": {
			{Name: "payer", Type: "address"},
			{Name: "items", Type: "Item[]"},
		},
		"Item": {{Name: "amount", Type: "uint256"}},
	}

	primary, err := primaryType(all)
	require.NoError(t, err)
	assert.Equal(t, "Intent", primary)

	all["Other"] = []types.TypedDataField{{Name: "x", Type: "uint256"}}
	_, err = primaryType(all)
	assert.Error(t, err)
}

func TestDomainTypeKeepsCanonicalOrder(t *testing.T) {
	fields := domainType(map[string]any{"verifyingContract": "0x1", "chainId": 1, "name": "X"})
	require.Len(t, fields, 3)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "chainId", fields[1].Name)
	assert.Equal(t, "verifyingContract", fields[2].Name)
}

func TestSwitchChainVerifiesEndpoint(t *testing.T) {
	base := &fakeBackend{chainID: 8453}
	arb := &fakeBackend{chainID: 42161}
	w := newTestWallet(t, map[string]*fakeBackend{"http://base": base, "http://arb": arb})

	active, err := w.ActiveChain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8453), active)

	require.NoError(t, w.SwitchChain(context.Background(), 42161))
	active, err = w.ActiveChain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42161), active)
	assert.True(t, base.closed)

	assert.Error(t, w.SwitchChain(context.Background(), 10))
}

func TestSwitchChainRejectsWrongChainID(t *testing.T) {
	base := &fakeBackend{chainID: 8453}
	wrong := &fakeBackend{chainID: 1}
	w := newTestWallet(t, map[string]*fakeBackend{"http://base": base, "http://arb": wrong})

	err := w.SwitchChain(context.Background(), 42161)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 42161")
	assert.True(t, wrong.closed)
}

func TestSendTransactionAndWait(t *testing.T) {
	base := &fakeBackend{chainID: 8453, nonce: 7, gasPrice: 1000, estimate: 50000, notFound: 2, status: gethtypes.ReceiptStatusSuccessful}
	w := newTestWallet(t, map[string]*fakeBackend{"http://base": base})

	pending, err := w.SendTransaction(context.Background(), types.TransactionRequest{
		To:    "0x2222222222222222222222222222222222222222",
		Data:  "0xa9059cbb",
		Value: types.NewQuantity(big.NewInt(5)),
	})
	require.NoError(t, err)

	require.Len(t, base.sent, 1)
	tx := base.sent[0]
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(60000), tx.Gas())
	assert.Equal(t, int64(1000), tx.GasPrice().Int64())
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, tx.Data())
	assert.Equal(t, tx.Hash().Hex(), pending.Hash())

	sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(big.NewInt(8453)), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), sender.Hex())

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, uint64(42), receipt.BlockNumber)
}

func TestSendTransactionUsesRequestGasLimit(t *testing.T) {
	base := &fakeBackend{chainID: 8453, gasPrice: 1, estimate: 1, status: gethtypes.ReceiptStatusFailed}
	w := newTestWallet(t, map[string]*fakeBackend{"http://base": base})

	limit := types.NewQuantity(big.NewInt(90000))
	pending, err := w.SendTransaction(context.Background(), types.TransactionRequest{
		To:       "0x2222222222222222222222222222222222222222",
		GasLimit: &limit,
	})
	require.NoError(t, err)
	assert.False(t, base.estimated)
	assert.Equal(t, uint64(90000), base.sent[0].Gas())

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, receipt.Success)
}

func TestSendTransactionRejectsOversizedGasLimit(t *testing.T) {
	base := &fakeBackend{chainID: 8453, gasPrice: 1}
	w := newTestWallet(t, map[string]*fakeBackend{"http://base": base})

	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	limit := types.NewQuantity(huge)
	_, err := w.SendTransaction(context.Background(), types.TransactionRequest{
		To:       "0x2222222222222222222222222222222222222222",
		GasLimit: &limit,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
	assert.Empty(t, base.sent)
}

func TestSendTransactionDeclined(t *testing.T) {
	base := &fakeBackend{chainID: 8453}
	w := newTestWallet(t, map[string]*fakeBackend{"http://base": base},
		WithConfirmer(func(string) (bool, error) { return false, nil }))

	_, err := w.SendTransaction(context.Background(), types.TransactionRequest{To: "0x2222222222222222222222222222222222222222"})
	assert.ErrorIs(t, err, payment.ErrSignatureRejected)
	assert.Empty(t, base.sent)
}

func TestSendTransactionRejectsBadRecipient(t *testing.T) {
	w := newTestWallet(t, nil)
	_, err := w.SendTransaction(context.Background(), types.TransactionRequest{To: "not-an-address"})
	assert.Error(t, err)
}

func TestWaitStopsOnCancel(t *testing.T) {
	p := &pendingTx{backend: &fakeBackend{notFound: 1 << 20}, poll: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRejectsUnknownDefaultNetwork(t *testing.T) {
	_, err := New(testKey, []Network{{Name: "base", ChainID: 8453, RPCUrl: "http://base"}}, 1)
	assert.Error(t, err)
}
