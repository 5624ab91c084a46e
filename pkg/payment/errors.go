package payment

import (
	"errors"

	"invoice-pay/pkg/network"
	"invoice-pay/pkg/route"
	"invoice-pay/pkg/types"
)

var (
	// ErrAttemptInFlight rejects a second attempt while one is running
	ErrAttemptInFlight = errors.New("a payment attempt is already in progress")
	// ErrNoRouteSelected stops an attempt that has no route to follow
	ErrNoRouteSelected = errors.New("no payment route selected")
	// ErrUnsupportedChain stops an attempt whose chain has no known chain id
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrSignatureRejected means the payer declined a wallet prompt
	ErrSignatureRejected = errors.New("signature rejected")
	// ErrTransactionFailed means a transaction reverted or never confirmed
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrRequestFailed means the server refused or failed a payment call
	ErrRequestFailed = errors.New("payment request failed")
	// ErrStatusSyncFailed is reported after a settled payment whose status update failed
	ErrStatusSyncFailed = errors.New("payment confirmed but status update failed")
	// ErrUnexpected wraps a panic raised during an attempt
	ErrUnexpected = errors.New("unexpected payment failure")

	ErrRouteUnavailable = route.ErrRouteUnavailable
	ErrSwitchFailed     = network.ErrSwitchFailed
	ErrMalformedPayload = types.ErrMalformedPayload
)
