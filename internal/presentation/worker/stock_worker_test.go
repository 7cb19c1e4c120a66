package workerpresentation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-shopping/internal/application"
	appShopping "github.com/Zhima-Mochi/minishop-shopping/internal/application/shopping"
	domoutbox "github.com/Zhima-Mochi/minishop-shopping/internal/domain/outbox"
	domshopping "github.com/Zhima-Mochi/minishop-shopping/internal/domain/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type fakeSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (f *fakeSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string]domoutbox.Handler)
	}
	f.handlers[name] = h
}

type stubUseCase struct {
	mu   sync.Mutex
	seen []domshopping.PurchaseCompletedEvent
	err  error
}

func (s *stubUseCase) Execute(_ context.Context, e domshopping.PurchaseCompletedEvent) (*appShopping.StockReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, e)
	return &appShopping.StockReport{}, s.err
}

type otherEvent struct{}

func (otherEvent) EventName() string { return "other" }

func TestStockWorkerHandlesPurchaseCompleted(t *testing.T) {
	sub := &fakeSubscriber{}
	uc := &stubUseCase{}
	w := NewStockWorker(sub, uc, nil)
	w.Start()

	h, ok := sub.handlers[domshopping.PurchaseCompletedEvent{}.EventName()]
	require.True(t, ok)

	evt := domshopping.NewPurchaseCompletedEvent(3, []domshopping.SettledLine{{Product: "p1", Quantity: 1}})
	require.NoError(t, h(context.Background(), evt))
	require.NoError(t, h(context.Background(), otherEvent{}))
	require.Len(t, uc.seen, 1)
	assert.Equal(t, int64(3), uc.seen[0].CustomerID)

	uc.err = errors.New("boom")
	assert.Error(t, h(context.Background(), evt))
}

func TestStockWorkerWithRealUseCase(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewStockWorker(sub, appShopping.NewStockWatchUseCase(nil), nil)
	w.Start()

	h := sub.handlers[domshopping.PurchaseCompletedEvent{}.EventName()]
	err := h(context.Background(), domshopping.NewPurchaseCompletedEvent(1, []domshopping.SettledLine{
		{Product: "p1", Quantity: 3, Remaining: 0},
	}))
	assert.NoError(t, err)
}

func TestStockWorkerToleratesNilReport(t *testing.T) {
	sub := &fakeSubscriber{}
	var calls int
	uc := application.UseCaseFunc[domshopping.PurchaseCompletedEvent, *appShopping.StockReport](
		func(context.Context, domshopping.PurchaseCompletedEvent) (*appShopping.StockReport, error) {
			calls++
			return nil, nil
		})
	NewStockWorker(sub, uc, observability.Nop()).Start()

	h := sub.handlers[domshopping.PurchaseCompletedEvent{}.EventName()]
	require.NotNil(t, h)
	assert.NoError(t, h(context.Background(), domshopping.NewPurchaseCompletedEvent(2, nil)))
	assert.Equal(t, 1, calls)
}

type labelCounter struct {
	mu     sync.Mutex
	labels [][]observability.Label
}

func (c *labelCounter) Add(_ float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = append(c.labels, labels)
}

func (c *labelCounter) Bind(...observability.Label) observability.BoundCounter {
	return observability.NopCounter().Bind()
}

type failureTelemetry struct {
	failed *labelCounter
}

func (f failureTelemetry) Tracer() observability.Tracer   { return observability.NopTracer() }
func (f failureTelemetry) Logger() observability.Logger   { return observability.NopLogger() }
func (f failureTelemetry) Metrics() observability.Metrics { return f }

func (f failureTelemetry) Counter(name observability.MetricKey) observability.Counter {
	if name == observability.MPurchaseFailed {
		return f.failed
	}
	return observability.NopCounter()
}

func (f failureTelemetry) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

func TestStockWorkerCountsFailedPurchases(t *testing.T) {
	sub := &fakeSubscriber{}
	tel := failureTelemetry{failed: &labelCounter{}}
	NewStockWorker(sub, &stubUseCase{}, tel).Start()

	h, ok := sub.handlers[domshopping.PurchaseFailedEvent{}.EventName()]
	require.True(t, ok)

	evt := domshopping.NewPurchaseFailedEvent(4, "p2", domshopping.FailureReasonInsufficientStock,
		[]domshopping.SettledLine{{Product: "p1", Quantity: 1, Remaining: 2}})
	require.NoError(t, h(context.Background(), evt))
	require.NoError(t, h(context.Background(), otherEvent{}))

	assert.Equal(t, [][]observability.Label{
		{observability.L("reason", domshopping.FailureReasonInsufficientStock)},
	}, tel.failed.labels)
}

type captureLogger struct {
	fields []observability.Field
}

func (c *captureLogger) With(fields ...observability.Field) observability.Logger {
	return &captureLogger{fields: append(append([]observability.Field(nil), c.fields...), fields...)}
}
func (c *captureLogger) Debug(string, ...observability.Field) {}
func (c *captureLogger) Info(string, ...observability.Field)  {}
func (c *captureLogger) Warn(string, ...observability.Field)  {}
func (c *captureLogger) Error(string, ...observability.Field) {}

func TestWithEventContext(t *testing.T) {
	ctx := WithEventContext(context.Background(), &captureLogger{}, nil, trace.TraceID{}, trace.SpanID{}, map[string]string{
		"event_id": "evt-1",
		"use_case": "uc",
		"event":    "e",
		"empty":    "",
	})

	logger, ok := logctx.From(ctx).(*captureLogger)
	require.True(t, ok)
	assert.Equal(t, []observability.Field{
		observability.F("event_id", "evt-1"),
		observability.F("event", "e"),
		observability.F("use_case", "uc"),
	}, logger.fields)
}
