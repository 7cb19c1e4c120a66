package workerpresentation

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-shopping/internal/application"
	appShopping "github.com/Zhima-Mochi/minishop-shopping/internal/application/shopping"
	domoutbox "github.com/Zhima-Mochi/minishop-shopping/internal/domain/outbox"
	domshopping "github.com/Zhima-Mochi/minishop-shopping/internal/domain/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	workerService = "stock_worker"
	spanPrefix    = "Worker."
)

// StockWorker feeds completed purchases into the stock watch use case and
// records failed ones.
type StockWorker struct {
	subscriber domoutbox.Subscriber
	useCase    application.UseCase[domshopping.PurchaseCompletedEvent, *appShopping.StockReport]
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	failed       observability.Counter   // purchase_failed_total{reason}
}

func NewStockWorker(
	subscriber domoutbox.Subscriber,
	useCase application.UseCase[domshopping.PurchaseCompletedEvent, *appShopping.StockReport],
	tel observability.Observability,
) *StockWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()
	return &StockWorker{
		subscriber:   subscriber,
		useCase:      useCase,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		failed:       metricsProvider.Counter(observability.MPurchaseFailed),
	}
}

func (w *StockWorker) Start() {
	if w.subscriber == nil || w.useCase == nil {
		return
	}
	w.subscriber.Subscribe(domshopping.PurchaseCompletedEvent{}.EventName(), w.handlePurchaseCompleted)
	w.subscriber.Subscribe(domshopping.PurchaseFailedEvent{}.EventName(), w.handlePurchaseFailed)
}

func (w *StockWorker) handlePurchaseCompleted(ctx context.Context, e domoutbox.Event) error {
	const useCase = "stock.worker.purchase_completed"
	evt, ok := e.(domshopping.PurchaseCompletedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"PurchaseCompleted",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
	)
	sc := trace.SpanContextFromContext(ctx)
	ctx = WithEventContext(ctx, logctx.FromOr(ctx, w.log), w.tel, sc.TraceID(), sc.SpanID(), map[string]string{
		"use_case": useCase,
		"event":    e.EventName(),
	})
	logger := logctx.FromOr(ctx, w.log)

	start := time.Now()
	outcome, status := "success", "OK"
	var depleted int

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(useCase, outcome, lat)

		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
			observability.F("customer_id", evt.CustomerID),
			observability.F("lines", len(evt.Lines)),
			observability.F("depleted", depleted),
		)

		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	res, err := w.useCase.Execute(ctx, evt)
	if err != nil {
		outcome, status = "error", "STOCK_WATCH_FAILED"
		return fmt.Errorf("worker: stock watch: %w", err)
	}
	if res != nil {
		depleted = len(res.Depleted)
	}
	return nil
}

func (w *StockWorker) handlePurchaseFailed(ctx context.Context, e domoutbox.Event) error {
	const useCase = "stock.worker.purchase_failed"
	evt, ok := e.(domshopping.PurchaseFailedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"PurchaseFailed",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("reason", evt.Reason),
	)
	defer span.End()
	sc := trace.SpanContextFromContext(ctx)
	ctx = WithEventContext(ctx, logctx.FromOr(ctx, w.log), w.tel, sc.TraceID(), sc.SpanID(), map[string]string{
		"use_case": useCase,
		"event":    e.EventName(),
	})

	start := time.Now()
	if w.failed != nil {
		w.failed.Add(1, observability.L("reason", evt.Reason))
	}
	logctx.FromOr(ctx, w.log).Warn("purchase_failed",
		observability.F("customer_id", evt.CustomerID),
		observability.F("product", evt.Product),
		observability.F("reason", evt.Reason),
		observability.F("settled", len(evt.Settled)),
	)
	w.observe(useCase, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "OK")
	return nil
}

func (w *StockWorker) count(useCase, outcome string) {
	if w.reqCounter != nil {
		w.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
	}
}

func (w *StockWorker) observe(useCase string, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	if w.durHistogram != nil {
		w.durHistogram.Observe(latencySeconds,
			observability.L("use_case", useCase),
		)
	}
}
