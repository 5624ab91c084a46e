package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-pay/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *InvoiceClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewInvoiceClient(srv.URL+"/", "secret", 5*time.Second)
}

func TestGetInvoiceByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/invoices/inv-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":"inv-1","requestId":"req-1","amount":"100","invoiceCurrency":"USDC-base","paymentCurrency":"USDC-base","payee":"0xpayee","status":"crypto_paid"}`)
	})

	inv, err := c.GetInvoiceByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCryptoPaid, inv.Status)
	assert.Equal(t, "100", inv.Amount.String())
}

func TestGetPaymentRoutes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/routes", r.URL.Path)
		assert.Equal(t, "req-1", r.URL.Query().Get("requestId"))
		assert.Equal(t, "0xabc", r.URL.Query().Get("walletAddress"))
		_, _ = io.WriteString(w, `{"routes":[{"id":"REQUEST_NETWORK_PAYMENT"},{"id":"arb-usdc","chain":"ARBITRUM","token":"USDC","fee":0.5}],"platformFee":{"percentage":"0.5","address":"0xfee"}}`)
	})

	resp, err := c.GetPaymentRoutes(context.Background(), "req-1", "0xabc")
	require.NoError(t, err)
	require.Len(t, resp.Routes, 2)
	assert.True(t, resp.Routes[0].IsSameNetwork())
	assert.Equal(t, "0.5", resp.Routes[1].Fee.String())
	assert.Equal(t, "0xfee", resp.PlatformFee.Address)
}

func TestGetPaymentRoutesRejectsRouteWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"routes":[{"chain":"base"}]}`)
	})

	_, err := c.GetPaymentRoutes(context.Background(), "req-1", "0xabc")
	require.Error(t, err)
}

func TestPayRequestUnwrapsData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invoices/pay", r.URL.Path)

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "req-1", in["requestId"])
		_, hasChain := in["chain"]
		assert.False(t, hasChain, "chain is omitted for the same-network route")

		_, _ = io.WriteString(w, `{"data":{"paymentIntentId":"pi_1","paymentIntent":"{}","metadata":{"supportsEIP2612":true}}}`)
	})

	bundle, err := c.PayRequest(context.Background(), types.PayRequestInput{RequestID: "req-1", Wallet: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", bundle.PaymentIntentID)
	assert.True(t, bundle.Metadata.SupportsEIP2612)
}

func TestSendPaymentIntent(t *testing.T) {
	var got types.PaymentIntentSubmission
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/payment-intents", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.SendPaymentIntent(context.Background(), types.PaymentIntentSubmission{
		PaymentIntent: "pi_1",
		Payload: types.SignedEnvelope{
			SignedPaymentIntent: types.SignedPermit{Signature: "0xsig", Nonce: "1", Deadline: "2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", got.PaymentIntent)
	assert.Nil(t, got.Payload.SignedApprovalPermit)
}

func TestAPIErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/inv-9/processing", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"invoice already paid"}`)
	})

	err := c.SetInvoiceAsProcessing(context.Background(), "inv-9")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invoice already paid", apiErr.Message)
}

func TestErrorMessageFallbacks(t *testing.T) {
	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "[x y]", errorMessage([]byte(`{"errors":["x","y"]}`)))
	assert.Equal(t, "gateway timeout", errorMessage([]byte("gateway timeout\n")))
	assert.Equal(t, "empty response", errorMessage(nil))
}
