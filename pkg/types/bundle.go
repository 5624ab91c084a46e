package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a payment bundle cannot be turned into a protocol run
var ErrMalformedPayload = errors.New("malformed payment payload")

// PayRequestInput asks the server for a concrete payment bundle for a route
type PayRequestInput struct {
	RequestID string `json:"requestId" validate:"required"`
	Wallet    string `json:"wallet" validate:"required,eth_addr"`
	Chain     string `json:"chain,omitempty"`
	Token     string `json:"token,omitempty"`
}

// TransactionRequest is a ready-to-send EVM transaction prepared by the server
type TransactionRequest struct {
	To       string    `json:"to"`
	Data     string    `json:"data"`
	Value    Quantity  `json:"value"`
	GasLimit *Quantity `json:"gasLimit,omitempty"`
}

// BundleMetadata carries the flags that pick the protocol steps
type BundleMetadata struct {
	NeedsApproval           bool `json:"needsApproval"`
	PaymentTransactionIndex int  `json:"paymentTransactionIndex"`
	SupportsEIP2612         bool `json:"supportsEIP2612"`
}

// RawPaymentBundle is the payRequest response as it appears on the wire
type RawPaymentBundle struct {
	Transactions          []TransactionRequest `json:"transactions,omitempty"`
	Metadata              *BundleMetadata      `json:"metadata,omitempty"`
	PaymentIntentID       string               `json:"paymentIntentId,omitempty"`
	PaymentIntent         json.RawMessage      `json:"paymentIntent,omitempty"`
	ApprovalPermitPayload json.RawMessage      `json:"approvalPermitPayload,omitempty"`
	ApprovalCalldata      *TransactionRequest  `json:"approvalCalldata,omitempty"`
}

// BundleKind discriminates the payment protocols
type BundleKind string

const (
	BundleIntent BundleKind = "intent"
	BundleDirect BundleKind = "direct"
)

// Bundle is a decoded payment bundle: *IntentBundle or *DirectBundle
type Bundle interface {
	Kind() BundleKind
}

// IntentBundle drives the crosschain intent protocol
type IntentBundle struct {
	PaymentIntentID string
	PaymentIntent   *TypedDataPayload

	// SupportsPermit selects a typed-data permit over an approval transaction
	SupportsPermit      bool
	ApprovalPermit      *TypedDataPayload
	ApprovalTransaction *TransactionRequest

	IntentNonce    string
	IntentDeadline string
	PermitNonce    string
	PermitDeadline string
}

// Kind implements Bundle
func (b *IntentBundle) Kind() BundleKind { return BundleIntent }

// DirectBundle drives the direct protocol: approvals then one payment transaction
type DirectBundle struct {
	Transactions  []TransactionRequest
	NeedsApproval bool
	PaymentIndex  int
}

// Kind implements Bundle
func (b *DirectBundle) Kind() BundleKind { return BundleDirect }

// Approvals returns every transaction except the payment one, in order
func (b *DirectBundle) Approvals() []TransactionRequest {
	out := make([]TransactionRequest, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		if i != b.PaymentIndex {
			out = append(out, tx)
		}
	}
	return out
}

// Payment returns the payment transaction
func (b *DirectBundle) Payment() TransactionRequest {
	return b.Transactions[b.PaymentIndex]
}

// DecodeBundle discriminates a payRequest response once and checks that every
// field the chosen protocol needs is present.
func DecodeBundle(raw *RawPaymentBundle) (Bundle, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedPayload)
	}

	meta := BundleMetadata{}
	if raw.Metadata != nil {
		meta = *raw.Metadata
	}

	if raw.PaymentIntentID != "" {
		return decodeIntent(raw, meta)
	}
	return decodeDirect(raw, meta)
}

func decodeIntent(raw *RawPaymentBundle, meta BundleMetadata) (*IntentBundle, error) {
	intent, err := ParseTypedData(raw.PaymentIntent)
	if err != nil {
		return nil, fmt.Errorf("%w: payment intent: %v", ErrMalformedPayload, err)
	}

	b := &IntentBundle{
		PaymentIntentID: raw.PaymentIntentID,
		PaymentIntent:   intent,
		SupportsPermit:  meta.SupportsEIP2612,
	}

	var ok bool
	if b.IntentNonce, ok = intent.Field("nonce"); !ok {
		return nil, fmt.Errorf("%w: payment intent has no nonce", ErrMalformedPayload)
	}
	if b.IntentDeadline, ok = intent.Field("deadline"); !ok {
		return nil, fmt.Errorf("%w: payment intent has no deadline", ErrMalformedPayload)
	}

	if !b.SupportsPermit {
		if raw.ApprovalCalldata == nil || raw.ApprovalCalldata.To == "" {
			return nil, fmt.Errorf("%w: approval transaction missing", ErrMalformedPayload)
		}
		b.ApprovalTransaction = raw.ApprovalCalldata
		return b, nil
	}

	permit, err := ParseTypedData(raw.ApprovalPermitPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: approval permit: %v", ErrMalformedPayload, err)
	}
	b.ApprovalPermit = permit

	if b.PermitNonce, ok = permit.Field("nonce"); !ok {
		return nil, fmt.Errorf("%w: approval permit has no nonce", ErrMalformedPayload)
	}

	// EIP-2612 names it deadline, DAI-style permits name it expiry
	if b.PermitDeadline, ok = permit.Field("deadline"); !ok {
		if b.PermitDeadline, ok = permit.Field("expiry"); !ok {
			return nil, fmt.Errorf("%w: approval permit has neither deadline nor expiry", ErrMalformedPayload)
		}
	}

	return b, nil
}

func decodeDirect(raw *RawPaymentBundle, meta BundleMetadata) (*DirectBundle, error) {
	if len(raw.Transactions) == 0 {
		return nil, fmt.Errorf("%w: no transactions", ErrMalformedPayload)
	}

	idx := meta.PaymentTransactionIndex
	if idx < 0 || idx >= len(raw.Transactions) {
		return nil, fmt.Errorf("%w: payment transaction index %d out of range", ErrMalformedPayload, idx)
	}

	for i, tx := range raw.Transactions {
		if tx.To == "" {
			return nil, fmt.Errorf("%w: transaction %d has no recipient", ErrMalformedPayload, i)
		}
	}

	return &DirectBundle{
		Transactions:  raw.Transactions,
		NeedsApproval: meta.NeedsApproval,
		PaymentIndex:  idx,
	}, nil
}

// SignedPermit is one signature plus the replay-protection fields it covers
type SignedPermit struct {
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
	Deadline  string `json:"deadline"`
}

// SignedEnvelope is what gets submitted to settle a payment intent
type SignedEnvelope struct {
	SignedPaymentIntent  SignedPermit  `json:"signedPaymentIntent"`
	SignedApprovalPermit *SignedPermit `json:"signedApprovalPermit,omitempty"`
}

// PaymentIntentSubmission is the sendPaymentIntent request body
type PaymentIntentSubmission struct {
	PaymentIntent string         `json:"paymentIntent"`
	Payload       SignedEnvelope `json:"payload"`
}

// Receipt is the outcome of a mined transaction
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Success     bool
}

// UnmarshalJSON accepts the bundle either bare or wrapped in a {"data": ...} envelope
func (r *RawPaymentBundle) UnmarshalJSON(data []byte) error {
	type plain RawPaymentBundle

	trimmed := bytes.TrimSpace(data)
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Data) > 0 && wrapper.Data[0] == '{' {
		trimmed = wrapper.Data
	}

	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = RawPaymentBundle(p)
	return nil
}
