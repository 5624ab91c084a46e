package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/logger"
	"invoice-pay/pkg/metrics"
	"invoice-pay/pkg/network"
	"invoice-pay/pkg/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// API is the invoicing server as the executor uses it
type API interface {
	PayRequest(ctx context.Context, in types.PayRequestInput) (*types.RawPaymentBundle, error)
	SendPaymentIntent(ctx context.Context, sub types.PaymentIntentSubmission) error
	SetInvoiceAsProcessing(ctx context.Context, invoiceID string) error
}

// PendingTransaction is a broadcast transaction that can be waited on
type PendingTransaction interface {
	Hash() string
	Wait(ctx context.Context) (*types.Receipt, error)
}

// Signer is the payer's wallet
type Signer interface {
	SendTransaction(ctx context.Context, tx types.TransactionRequest) (PendingTransaction, error)
	SignTypedData(ctx context.Context, payload *types.TypedDataPayload) (string, error)
}

// ChainAligner moves the wallet to the chain a payment runs on
type ChainAligner interface {
	EnsureChain(ctx context.Context, target int64) (network.Switched, error)
}

// Outcome describes a finished attempt
type Outcome struct {
	AttemptID       string
	Kind            types.BundleKind
	ChainID         int64
	TxHashes        []string
	PaymentIntentID string
	// StatusSyncErr is set when settlement went through but the server was
	// not told the invoice is processing. It wraps ErrStatusSyncFailed.
	StatusSyncErr error
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the executor logger
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics sets the executor metrics recorder
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Executor) {
		e.metrics = r
	}
}

// WithNotifier sets where user notifications go
func WithNotifier(n Notifier) Option {
	return func(e *Executor) {
		e.notifier = n
	}
}

// WithTracer sets the tracer spans are opened with
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

// Executor runs payment attempts against a session
type Executor struct {
	api      API
	chains   ChainAligner
	signer   Signer
	notifier Notifier
	logger   logger.Logger
	metrics  metrics.Recorder
	tracer   trace.Tracer
}

// NewExecutor creates an executor over the server, the network coordinator and the wallet
func NewExecutor(api API, chains ChainAligner, signer Signer, opts ...Option) *Executor {
	e := &Executor{
		api:      api,
		chains:   chains,
		signer:   signer,
		notifier: NoopNotifier{},
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer("payment"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pay runs one payment attempt for the session's selected route. A second
// call while an attempt is running fails with ErrAttemptInFlight and does
// nothing else. Whatever happens, the session is back to Idle on return.
func (e *Executor) Pay(ctx context.Context, s *Session) (out *Outcome, err error) {
	if !s.begin() {
		return nil, ErrAttemptInFlight
	}

	attempt := &Outcome{AttemptID: uuid.NewString()}
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "payment.attempt",
		trace.WithAttributes(attribute.String("attempt.id", attempt.AttemptID)))

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrUnexpected, r)
		}

		labels := map[string]string{"kind": string(attempt.Kind)}
		if err != nil {
			labels["result"] = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("payment attempt failed", map[string]any{
				"attempt": attempt.AttemptID,
				"error":   err.Error(),
			})
			e.notifier.Notify(LevelError, "Payment Failed", "Please try again")
		} else {
			labels["result"] = "success"
			if out.StatusSyncErr != nil {
				labels["result"] = "status_sync_failed"
			}
		}

		e.metrics.IncCounter("payment_attempt", labels)
		e.metrics.ObserveLatency("payment_duration", time.Since(start), labels)
		span.End()

		if rerr := s.finish(); rerr != nil {
			e.logger.Warn("routes fetched during the attempt were not applied", map[string]any{
				"attempt": attempt.AttemptID,
				"error":   rerr.Error(),
			})
		}
	}()

	if err := e.run(ctx, s, attempt); err != nil {
		return nil, err
	}

	e.complete(ctx, s, attempt)
	return attempt, nil
}

func (e *Executor) run(ctx context.Context, s *Session, attempt *Outcome) error {
	// payer and route are fixed for the whole attempt
	payer := s.Wallet()
	selected := s.Routes.SelectedFor(payer)
	if selected == nil {
		return ErrNoRouteSelected
	}

	inv := s.Invoice.Snapshot()

	chain := selected.Chain
	if chain == "" {
		chain = invoice.ChainFromCurrency(inv.PaymentCurrency)
	}

	chainID, ok := network.ChainID(chain)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedChain, chain)
	}
	attempt.ChainID = chainID

	e.logger.Info("starting payment attempt", map[string]any{
		"attempt": attempt.AttemptID,
		"invoice": inv.ID,
		"route":   selected.ID,
		"chain":   network.Name(chainID),
	})

	if err := e.switchChain(ctx, chainID); err != nil {
		return err
	}

	in := types.PayRequestInput{
		RequestID: inv.RequestID,
		Wallet:    payer,
	}
	if !selected.IsSameNetwork() {
		in.Chain = selected.Chain
		in.Token = selected.Token
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid pay request: %w", err)
	}

	raw, err := e.api.PayRequest(ctx, in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	bundle, err := types.DecodeBundle(raw)
	if err != nil {
		return err
	}
	attempt.Kind = bundle.Kind()

	switch b := bundle.(type) {
	case *types.IntentBundle:
		attempt.PaymentIntentID = b.PaymentIntentID
		return e.payIntent(ctx, s, b, attempt)
	case *types.DirectBundle:
		return e.payDirect(ctx, s, b, attempt)
	default:
		return fmt.Errorf("%w: unknown bundle kind %q", ErrMalformedPayload, bundle.Kind())
	}
}

func (e *Executor) switchChain(ctx context.Context, chainID int64) error {
	ctx, span := e.tracer.Start(ctx, "payment.ensure_chain",
		trace.WithAttributes(attribute.Int64("chain.id", chainID)))
	defer span.End()

	switched, err := e.chains.EnsureChain(ctx, chainID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Bool("chain.switched", bool(switched)))
	return nil
}

// payIntent runs the crosschain intent protocol
func (e *Executor) payIntent(ctx context.Context, s *Session, b *types.IntentBundle, attempt *Outcome) error {
	s.setProgress(Approving)
	e.notifier.Notify(LevelInfo, "Payment Approval Required", "Please approve the payment in your wallet")

	var approval *types.SignedPermit
	if b.SupportsPermit {
		sig, err := e.sign(ctx, "approval_permit", b.ApprovalPermit)
		if err != nil {
			return err
		}
		approval = &types.SignedPermit{
			Signature: sig,
			Nonce:     b.PermitNonce,
			Deadline:  b.PermitDeadline,
		}
	} else {
		hash, err := e.sendAndWait(ctx, "approval", *b.ApprovalTransaction)
		if hash != "" {
			attempt.TxHashes = append(attempt.TxHashes, hash)
		}
		if err != nil {
			return err
		}
	}

	sig, err := e.sign(ctx, "payment_intent", b.PaymentIntent)
	if err != nil {
		return err
	}

	envelope := types.SignedEnvelope{
		SignedPaymentIntent: types.SignedPermit{
			Signature: sig,
			Nonce:     b.IntentNonce,
			Deadline:  b.IntentDeadline,
		},
		SignedApprovalPermit: approval,
	}

	s.setProgress(Paying)

	if err := e.api.SendPaymentIntent(ctx, types.PaymentIntentSubmission{
		PaymentIntent: b.PaymentIntentID,
		Payload:       envelope,
	}); err != nil {
		return fmt.Errorf("%w: failed to submit payment intent: %w", ErrRequestFailed, err)
	}

	e.logger.Info("payment intent submitted", map[string]any{
		"attempt": attempt.AttemptID,
		"intent":  b.PaymentIntentID,
	})
	return nil
}

// payDirect runs the direct protocol: approvals one by one, then the payment
func (e *Executor) payDirect(ctx context.Context, s *Session, b *types.DirectBundle, attempt *Outcome) error {
	if b.NeedsApproval {
		s.setProgress(Approving)
		e.notifier.Notify(LevelInfo, "Payment Approval Required", "Please approve the payment in your wallet")

		for _, tx := range b.Approvals() {
			hash, err := e.sendAndWait(ctx, "approval", tx)
			if hash != "" {
				attempt.TxHashes = append(attempt.TxHashes, hash)
			}
			if err != nil {
				return err
			}
		}
	}

	s.setProgress(Paying)
	e.notifier.Notify(LevelInfo, "Initiating payment", "Please confirm the payment in your wallet")

	hash, err := e.sendAndWait(ctx, "payment", b.Payment())
	if hash != "" {
		attempt.TxHashes = append(attempt.TxHashes, hash)
	}
	return err
}

// complete marks the invoice processing, first locally and then on the server
func (e *Executor) complete(ctx context.Context, s *Session, attempt *Outcome) {
	s.Invoice.SetOptimistic(types.StatusProcessing)
	e.notifier.Notify(LevelSuccess, "Payment is being processed", "You can safely close this page.")

	inv := s.Invoice.Snapshot()
	if err := e.api.SetInvoiceAsProcessing(ctx, inv.ID); err != nil {
		attempt.StatusSyncErr = fmt.Errorf("%w: %w", ErrStatusSyncFailed, err)
		e.logger.Warn("status update failed", map[string]any{
			"attempt": attempt.AttemptID,
			"invoice": inv.ID,
			"error":   err.Error(),
		})
		e.notifier.Notify(LevelWarning, "Payment Successful", "Payment confirmed but status update failed. Please refresh.")
	}
}

func (e *Executor) sign(ctx context.Context, step string, payload *types.TypedDataPayload) (string, error) {
	ctx, span := e.tracer.Start(ctx, "payment.sign_typed_data",
		trace.WithAttributes(attribute.String("step", step)))
	defer span.End()

	sig, err := e.signer.SignTypedData(ctx, payload)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSignatureRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrSignatureRejected, step, err)
	}
	return sig, nil
}

// sendAndWait broadcasts a transaction and blocks until it is mined. The hash
// is returned even on failure once the transaction left the wallet.
func (e *Executor) sendAndWait(ctx context.Context, step string, tx types.TransactionRequest) (string, error) {
	ctx, span := e.tracer.Start(ctx, "payment.send_transaction",
		trace.WithAttributes(attribute.String("step", step), attribute.String("tx.to", tx.To)))
	defer span.End()

	pending, err := e.signer.SendTransaction(ctx, tx)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSignatureRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrTransactionFailed, step, err)
	}

	hash := pending.Hash()
	span.SetAttributes(attribute.String("tx.hash", hash))
	e.logger.Debug("transaction sent", map[string]any{"step": step, "hash": hash})

	receipt, err := pending.Wait(ctx)
	if err != nil {
		span.RecordError(err)
		return hash, fmt.Errorf("%w: %s %s: %w", ErrTransactionFailed, step, hash, err)
	}
	if receipt == nil || !receipt.Success {
		return hash, fmt.Errorf("%w: %s %s reverted", ErrTransactionFailed, step, hash)
	}

	e.logger.Info("transaction confirmed", map[string]any{
		"step":  step,
		"hash":  hash,
		"block": receipt.BlockNumber,
	})
	return hash, nil
}
