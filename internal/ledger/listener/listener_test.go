package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedgerUC struct {
	mu       sync.Mutex
	calls    []*dto.ApplyPurchaseInput
	err      error
	failures int // calls that fail with err before succeeding; 0 means always
}

func (f *fakeLedgerUC) ApplyPurchase(ctx context.Context, in *dto.ApplyPurchaseInput) (*model.PurchaseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.err != nil && (f.failures == 0 || len(f.calls) <= f.failures) {
		return nil, f.err
	}
	return &model.PurchaseRecord{ID: "p-1", CardID: in.CardID}, nil
}

func (f *fakeLedgerUC) PreviewPurchase(ctx context.Context, in *dto.PreviewInput) (*model.PurchasePreview, error) {
	return nil, nil
}

func (f *fakeLedgerUC) ListBalances(ctx context.Context, cardID string, asOf time.Time) ([]model.BenefitEntry, error) {
	return nil, nil
}

func (f *fakeLedgerUC) ListPurchases(ctx context.Context, filters *dto.PurchaseFilters) ([]model.PurchaseRecord, int, error) {
	return nil, 0, nil
}

func (f *fakeLedgerUC) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGuard struct {
	mu         sync.Mutex
	held       map[string]string
	acquireErr error
	released   []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: map[string]string{}}
}

func (g *fakeGuard) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.acquireErr != nil {
		return false, g.acquireErr
	}
	if _, ok := g.held[key]; ok {
		return false, nil
	}
	g.held[key] = value
	return true, nil
}

func (g *fakeGuard) ReleaseLock(ctx context.Context, key, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] == value {
		delete(g.held, key)
	}
	g.released = append(g.released, key)
	return nil
}

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	msgs chan kafka.Message
	errs int

	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.errs > 0 {
		r.errs--
		return kafka.Message{}, errors.New("broker unreachable")
	}
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

const checkoutEvent = `{
	"event_id": "evt-1",
	"event_type": "CheckoutCompleted",
	"timestamp": "2026-03-14T10:00:00Z",
	"payload": {
		"checkout_id": "chk-42",
		"card_id": "card-1",
		"store_id": "store-9",
		"lines": [
			{"category": "milk", "quantity": 64, "unit": "oz", "product_name": "Lowfat Milk", "product_code": "070852993386"},
			{"category": "cereal", "quantity": "12", "unit": "oz", "product_name": "Oat Cereal"}
		]
	}
}`

func newListener(uc *fakeLedgerUC, guard Guard) *CheckoutListener {
	return NewCheckoutListener(&fakeReader{}, uc, guard, "replica-a", logger.NewNopLogger())
}

func TestProcessMessage_AppliesCheckout(t *testing.T) {
	uc := &fakeLedgerUC{}
	guard := newFakeGuard()
	l := newListener(uc, guard)

	require.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)))

	require.Len(t, uc.calls, 1)
	in := uc.calls[0]
	assert.Equal(t, "card-1", in.CardID)
	assert.Equal(t, "store-9", in.StoreID)
	assert.Equal(t, "chk-42", in.ReferenceID)
	assert.Equal(t, model.MonthlyPeriod(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)), in.Period)
	require.Len(t, in.Lines, 2)
	assert.True(t, decimal.NewFromInt(64).Equal(in.Lines[0].Quantity))
	assert.Equal(t, "070852993386", in.Lines[0].ProductCode)
	assert.True(t, decimal.NewFromInt(12).Equal(in.Lines[1].Quantity))
	assert.Equal(t, "replica-a", guard.held["ledger:event:evt-1"])
}

func TestProcessMessage_SkipsDuplicates(t *testing.T) {
	uc := &fakeLedgerUC{}
	l := newListener(uc, newFakeGuard())

	require.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)))
	require.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)))

	assert.Len(t, uc.calls, 1)
}

func TestProcessMessage_IgnoresOtherEvents(t *testing.T) {
	uc := &fakeLedgerUC{}
	guard := newFakeGuard()
	l := newListener(uc, guard)

	assert.NoError(t, l.processMessage(context.Background(), []byte(`{"event_id":"evt-2","event_type":"OrderCreated","payload":{}}`)))
	assert.NoError(t, l.processMessage(context.Background(), []byte(`not json`)))

	assert.Empty(t, uc.calls)
	assert.Empty(t, guard.held)
}

func TestProcessMessage_MalformedCheckout(t *testing.T) {
	uc := &fakeLedgerUC{}
	l := newListener(uc, newFakeGuard())

	assert.NoError(t, l.processMessage(context.Background(), []byte(`{"event_type":"CheckoutCompleted","payload":{"lines":"oops"}}`)))
	assert.NoError(t, l.processMessage(context.Background(), []byte(`{"event_type":"CheckoutCompleted","payload":{"card_id":"card-1"}}`)))

	assert.Empty(t, uc.calls)
}

func TestProcessMessage_ReleasesClaimOnTransientFailure(t *testing.T) {
	uc := &fakeLedgerUC{err: apperr.ErrLedgerConflict}
	guard := newFakeGuard()
	l := newListener(uc, guard)

	err := l.processMessage(context.Background(), []byte(checkoutEvent))
	assert.ErrorIs(t, err, apperr.ErrLedgerConflict)
	assert.Equal(t, []string{"ledger:event:evt-1"}, guard.released)
	assert.Empty(t, guard.held)

	uc.err = nil
	require.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)))
	assert.Len(t, uc.calls, 2)
}

func TestProcessMessage_KeepsClaimOnPermanentFailure(t *testing.T) {
	for _, err := range []error{
		apperr.NewValidationError("lines", "must not be empty"),
		apperr.ErrInsufficientBalance,
	} {
		uc := &fakeLedgerUC{err: err}
		guard := newFakeGuard()
		l := newListener(uc, guard)

		assert.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)), err.Error())
		assert.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)), err.Error())

		assert.Len(t, uc.calls, 1, err.Error())
		assert.Empty(t, guard.released, err.Error())
	}
}

func TestProcessMessage_GuardDown(t *testing.T) {
	uc := &fakeLedgerUC{}
	guard := newFakeGuard()
	guard.acquireErr = errors.New("redis: connection refused")
	l := newListener(uc, guard)

	require.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)))
	assert.Len(t, uc.calls, 1)

	l = newListener(uc, nil)
	require.NoError(t, l.processMessage(context.Background(), []byte(checkoutEvent)))
	assert.Len(t, uc.calls, 2)
}

func TestStart_ConsumesUntilCanceled(t *testing.T) {
	uc := &fakeLedgerUC{}
	reader := &fakeReader{msgs: make(chan kafka.Message, 1), errs: 1}
	l := NewCheckoutListener(reader, uc, newFakeGuard(), "replica-a", logger.NewNopLogger())
	l.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	reader.msgs <- kafka.Message{Offset: 7, Value: []byte(checkoutEvent)}
	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, uc.count())
	assert.Equal(t, []int64{7}, reader.commits())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestStart_CommitsOnlyAfterTransientFailureClears(t *testing.T) {
	uc := &fakeLedgerUC{err: apperr.ErrLedgerConflict, failures: 2}
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	l := NewCheckoutListener(reader, uc, newFakeGuard(), "replica-a", logger.NewNopLogger())
	l.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)

	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(checkoutEvent)}
	reader.msgs <- kafka.Message{Offset: 4, Value: []byte(`{"event_type":"OrderCreated"}`)}

	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, uc.count())
	assert.Equal(t, []int64{3, 4}, reader.commits())
}

func TestStart_FailingEventIsNeverCommitted(t *testing.T) {
	uc := &fakeLedgerUC{err: errors.New("pq: connection reset")}
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	l := NewCheckoutListener(reader, uc, newFakeGuard(), "replica-a", logger.NewNopLogger())
	l.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(checkoutEvent)}
	reader.msgs <- kafka.Message{Offset: 4, Value: []byte(`{"event_type":"OrderCreated"}`)}
	assert.Eventually(t, func() bool { return uc.count() >= 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}

	assert.Empty(t, reader.commits())
	assert.Len(t, reader.msgs, 1, "later messages must wait behind the failing one")
}
