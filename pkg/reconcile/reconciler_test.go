package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/types"
)

type step struct {
	status types.InvoiceStatus
	err    error
}

type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *scriptedFetcher) GetInvoiceByID(_ context.Context, id string) (*types.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.steps[len(f.steps)-1]
	if f.calls < len(f.steps) {
		s = f.steps[f.calls]
	}
	f.calls++

	if s.err != nil {
		return nil, s.err
	}
	return &types.Invoice{ID: id, Status: s.status}, nil
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newView(status types.InvoiceStatus) *invoice.View {
	return invoice.NewView(types.Invoice{ID: "inv-1", Status: status})
}

func TestRunStopsOnPaid(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{status: types.StatusProcessing},
		{err: errors.New("timeout")},
		{status: types.StatusPending},
		{status: types.StatusPaid},
		{status: types.StatusProcessing},
	}}
	view := newView(types.StatusPending)
	r := New(f, view, WithInterval(5*time.Millisecond))

	var seen []types.InvoiceStatus
	view.OnStatusChange(func(s types.InvoiceStatus) { seen = append(seen, s) })

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 4, f.count())
	assert.Equal(t, types.StatusPaid, view.Status())
	assert.Equal(t, []types.InvoiceStatus{types.StatusProcessing, types.StatusPaid}, seen)
}

func TestRunReturnsImmediatelyWhenPaid(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: types.StatusPending}}}
	r := New(f, newView(types.StatusPaid), WithInterval(time.Millisecond))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 0, f.count())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: types.StatusProcessing}}}
	r := New(f, newView(types.StatusPending), WithInterval(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return f.count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}

	calls := f.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, f.count(), "no polls after teardown")
}

func TestPollKeepsStateOnError(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{status: types.StatusCryptoPaid},
		{err: errors.New("connection reset")},
	}}
	view := newView(types.StatusPending)
	r := New(f, view)

	paid, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, paid)

	paid, err = r.Poll(context.Background())
	require.Error(t, err)
	assert.False(t, paid)
	assert.Equal(t, types.StatusCryptoPaid, view.Status())
	assert.Equal(t, types.StatusCryptoPaid, view.Snapshot().Status)
}

func TestPollConfirmsOptimisticStatus(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{status: types.StatusPending}, {status: types.StatusOfframpPending}}}
	view := newView(types.StatusPending)
	view.SetOptimistic(types.StatusProcessing)
	r := New(f, view)

	_, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, view.Status(), "pending never overwrites")

	_, err = r.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusOfframpPending, view.Status())
}
