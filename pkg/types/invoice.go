package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the server-owned lifecycle state of an invoice
type InvoiceStatus string

const (
	StatusPending          InvoiceStatus = "pending"
	StatusProcessing       InvoiceStatus = "processing"
	StatusCryptoPaid       InvoiceStatus = "crypto_paid"
	StatusPaid             InvoiceStatus = "paid"
	StatusOfframpPending   InvoiceStatus = "offramp_pending"
	StatusOfframpInitiated InvoiceStatus = "offramp_initiated"
	StatusOfframpFailed    InvoiceStatus = "offramp_failed"
	StatusOverdue          InvoiceStatus = "overdue"
)

// Invoice is a read-only snapshot of a payment obligation as returned by the server
type Invoice struct {
	ID              string          `json:"id"`
	RequestID       string          `json:"requestId"`
	InvoiceNumber   string          `json:"invoiceNumber,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	InvoiceCurrency string          `json:"invoiceCurrency"`
	PaymentCurrency string          `json:"paymentCurrency"`
	Payee           string          `json:"payee"`
	Status          InvoiceStatus   `json:"status"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
}

// ConvertsCurrency reports whether settlement happens in a different currency than the invoice is denominated in
func (i *Invoice) ConvertsCurrency() bool {
	return i.InvoiceCurrency != i.PaymentCurrency
}
