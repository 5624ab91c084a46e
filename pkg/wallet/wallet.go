package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"invoice-pay/pkg/logger"
	"invoice-pay/pkg/network"
	"invoice-pay/pkg/payment"
	"invoice-pay/pkg/types"
)

// Backend is the part of an RPC client the wallet needs
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	Close()
}

// Dialer opens a backend for an RPC endpoint
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// DialRPC connects with ethclient
func DialRPC(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return client, nil
}

// Network is one EVM network the wallet can pay on
type Network struct {
	Name     string
	ChainID  int64
	RPCUrl   string
	GasLimit *uint64
	GasPrice *int64
}

// Confirmer asks the payer before every wallet prompt. Returning false
// declines the prompt.
type Confirmer func(prompt string) (bool, error)

// Option configures a Wallet
type Option func(*Wallet)

// WithDialer replaces the RPC dialer
func WithDialer(d Dialer) Option {
	return func(w *Wallet) {
		w.dial = d
	}
}

// WithConfirmer sets the prompt run before signing or sending
func WithConfirmer(c Confirmer) Option {
	return func(w *Wallet) {
		w.confirm = c
	}
}

// WithLogger sets the wallet logger
func WithLogger(l logger.Logger) Option {
	return func(w *Wallet) {
		w.logger = l
	}
}

// WithReceiptPollInterval sets how often a pending transaction is checked
func WithReceiptPollInterval(d time.Duration) Option {
	return func(w *Wallet) {
		if d > 0 {
			w.receiptPoll = d
		}
	}
}

// Wallet is a local-key EVM wallet. It is connected to one network at a
// time; switching dials the target network's RPC.
type Wallet struct {
	key         *ecdsa.PrivateKey
	address     common.Address
	networks    map[int64]Network
	dial        Dialer
	confirm     Confirmer
	logger      logger.Logger
	receiptPoll time.Duration

	mu      sync.Mutex
	active  int64
	backend Backend
}

// New creates a wallet from a hex private key. defaultChain is the network
// it starts on, zero for none.
func New(privateKeyHex string, networks []Network, defaultChain int64, opts ...Option) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	byID := make(map[int64]Network, len(networks))
	for _, n := range networks {
		if n.ChainID == 0 {
			return nil, fmt.Errorf("network %s has no chain id", n.Name)
		}
		if n.RPCUrl == "" {
			return nil, fmt.Errorf("RPC URL not configured for network %s", n.Name)
		}
		byID[n.ChainID] = n
	}

	if defaultChain != 0 {
		if _, ok := byID[defaultChain]; !ok {
			return nil, fmt.Errorf("default network %s is not configured", network.Name(defaultChain))
		}
	}

	w := &Wallet{
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		networks:    byID,
		dial:        DialRPC,
		logger:      logger.NoopLogger{},
		receiptPoll: 2 * time.Second,
		active:      defaultChain,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Address returns the checksummed wallet address
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// ActiveChain returns the chain the wallet is on, connecting lazily
func (w *Wallet) ActiveChain(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == 0 {
		return 0, nil
	}
	if w.backend == nil {
		if err := w.connect(ctx, w.active); err != nil {
			return 0, err
		}
	}
	return w.active, nil
}

// SwitchChain connects to another configured network
func (w *Wallet) SwitchChain(ctx context.Context, chainID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connect(ctx, chainID)
}

// connect dials a network and checks the endpoint serves the expected chain
func (w *Wallet) connect(ctx context.Context, chainID int64) error {
	n, ok := w.networks[chainID]
	if !ok {
		return fmt.Errorf("network %s (chain id %d) not configured", network.Name(chainID), chainID)
	}

	backend, err := w.dial(ctx, n.RPCUrl)
	if err != nil {
		return err
	}

	got, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if got.Int64() != chainID {
		backend.Close()
		return fmt.Errorf("RPC for %s serves chain id %s, expected %d", n.Name, got, chainID)
	}

	if w.backend != nil {
		w.backend.Close()
	}
	w.backend = backend
	w.active = chainID

	w.logger.Debug("wallet connected", map[string]any{"network": n.Name, "chain_id": chainID})
	return nil
}

func (w *Wallet) current(ctx context.Context) (Backend, Network, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == 0 {
		return nil, Network{}, errors.New("wallet is not connected to a network")
	}
	if w.backend == nil {
		if err := w.connect(ctx, w.active); err != nil {
			return nil, Network{}, err
		}
	}
	return w.backend, w.networks[w.active], nil
}

func (w *Wallet) ask(prompt string) error {
	if w.confirm == nil {
		return nil
	}
	ok, err := w.confirm(prompt)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrSignatureRejected, err)
	}
	if !ok {
		return fmt.Errorf("%w: declined", payment.ErrSignatureRejected)
	}
	return nil
}

// SendTransaction signs and broadcasts a prepared transaction on the active network
func (w *Wallet) SendTransaction(ctx context.Context, req types.TransactionRequest) (payment.PendingTransaction, error) {
	if !common.IsHexAddress(req.To) {
		return nil, fmt.Errorf("invalid recipient address: %s", req.To)
	}
	to := common.HexToAddress(req.To)

	data, err := decodeData(req.Data)
	if err != nil {
		return nil, err
	}

	backend, n, err := w.current(ctx)
	if err != nil {
		return nil, err
	}

	if err := w.ask(fmt.Sprintf("Send transaction to %s on %s?", to.Hex(), n.Name)); err != nil {
		return nil, err
	}

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.gasPrice(ctx, backend, n)
	if err != nil {
		return nil, err
	}

	value := req.Value.Int()
	gasLimit, err := w.gasLimit(ctx, backend, n, req, to, value, data)
	if err != nil {
		return nil, err
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(big.NewInt(n.ChainID)), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	w.logger.Info("transaction broadcast", map[string]any{
		"hash":    signed.Hash().Hex(),
		"to":      to.Hex(),
		"network": n.Name,
		"nonce":   nonce,
	})

	return &pendingTx{hash: signed.Hash(), backend: backend, poll: w.receiptPoll}, nil
}

func (w *Wallet) gasPrice(ctx context.Context, backend Backend, n Network) (*big.Int, error) {
	if n.GasPrice != nil {
		return big.NewInt(*n.GasPrice), nil
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (w *Wallet) gasLimit(ctx context.Context, backend Backend, n Network, req types.TransactionRequest, to common.Address, value *big.Int, data []byte) (uint64, error) {
	if req.GasLimit != nil && !req.GasLimit.IsZero() {
		limit := req.GasLimit.Int()
		if !limit.IsUint64() {
			return 0, fmt.Errorf("gas limit %s out of range", limit)
		}
		return limit.Uint64(), nil
	}
	if n.GasLimit != nil {
		return *n.GasLimit, nil
	}

	estimated, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return estimated * 120 / 100, nil
}

func decodeData(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction data: %w", err)
	}
	return data, nil
}

type pendingTx struct {
	hash    common.Hash
	backend Backend
	poll    time.Duration
}

func (p *pendingTx) Hash() string {
	return p.hash.Hex()
}

// Wait polls for the receipt until the transaction is mined or ctx ends
func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.hash)
		if err == nil && receipt != nil {
			out := &types.Receipt{
				TxHash:  p.hash.Hex(),
				Success: receipt.Status == gethtypes.ReceiptStatusSuccessful,
			}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			return out, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
