package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/logger"
	"invoice-pay/pkg/metrics"
	"invoice-pay/pkg/types"
)

// DefaultInterval is the status polling cadence
const DefaultInterval = 3 * time.Second

// Fetcher reads the authoritative invoice state
type Fetcher interface {
	GetInvoiceByID(ctx context.Context, id string) (*types.Invoice, error)
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithInterval overrides the polling cadence
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the reconciler logger
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithMetrics sets the reconciler metrics recorder
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithTracer sets the tracer polls are traced with
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		r.tracer = t
	}
}

// Reconciler polls the server for an invoice and merges what it sees into
// the view until the invoice is paid or its context ends.
type Reconciler struct {
	fetcher  Fetcher
	view     *invoice.View
	interval time.Duration
	logger   logger.Logger
	metrics  metrics.Recorder
	tracer   trace.Tracer
}

// New creates a reconciler for the invoice shown in view
func New(fetcher Fetcher, view *invoice.View, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetcher:  fetcher,
		view:     view,
		interval: DefaultInterval,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer("reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Poll fetches the invoice once and merges it. A failed fetch leaves the
// view untouched. Returns true once the displayed status is terminal.
func (r *Reconciler) Poll(ctx context.Context) (bool, error) {
	id := r.view.Snapshot().ID

	ctx, span := r.tracer.Start(ctx, "reconcile.poll", trace.WithAttributes(attribute.String("invoice.id", id)))
	defer span.End()

	start := time.Now()
	inv, err := r.fetcher.GetInvoiceByID(ctx, id)
	r.metrics.ObserveLatency("reconcile_poll", time.Since(start), nil)

	if err != nil {
		span.RecordError(err)
		r.metrics.IncCounter("reconcile_poll", map[string]string{"result": "error"})
		r.logger.Warn("invoice status fetch failed", map[string]any{
			"invoice": id,
			"error":   err.Error(),
		})
		return r.settled(), fmt.Errorf("failed to fetch invoice %s: %w", id, err)
	}
	if inv == nil {
		r.metrics.IncCounter("reconcile_poll", map[string]string{"result": "empty"})
		return r.settled(), fmt.Errorf("failed to fetch invoice %s: empty response", id)
	}

	r.metrics.IncCounter("reconcile_poll", map[string]string{"result": "ok"})
	if r.view.Observe(*inv) {
		r.logger.Info("invoice status changed", map[string]any{
			"invoice": id,
			"status":  string(r.view.Status()),
		})
	}
	span.SetAttributes(attribute.String("invoice.status", string(r.view.Status())))

	return r.settled(), nil
}

func (r *Reconciler) settled() bool {
	return invoice.IsTerminal(r.view.Status())
}

// Run polls on every tick until the invoice is paid or ctx is done.
// It returns nil on paid and the context error on cancellation.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.settled() {
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			paid, err := r.Poll(ctx)
			if paid {
				return nil
			}
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
