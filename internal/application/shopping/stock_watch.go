package shopping

import (
	"context"
	"time"

	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const useCaseStockWatch = "shopping.stock_watch"

// StockReport lists the products a purchase drained to zero.
type StockReport struct {
	Depleted []string
}

// StockWatchUseCase inspects completed purchases for products that ran out of stock.
type StockWatchUseCase struct {
	log          observability.Logger
	tracer       observability.Tracer
	depleted     observability.Counter   // product_stock_depleted_total{product}
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewStockWatchUseCase(tel observability.Observability) *StockWatchUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()
	return &StockWatchUseCase{
		log:          tel.Logger().With(observability.F("service", shoppingService)),
		tracer:       tel.Tracer(),
		depleted:     metricsProvider.Counter(observability.MStockDepleted),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *StockWatchUseCase) Execute(ctx context.Context, e domain.PurchaseCompletedEvent) (*StockReport, error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseStockWatch),
		observability.F("customer_id", e.CustomerID),
	)
	_, span := uc.tracer.Start(ctx, spanPrefix+"StockWatch",
		attribute.String("use_case", useCaseStockWatch),
		attribute.Int("purchase.lines", len(e.Lines)),
	)
	start := time.Now()

	report := &StockReport{}
	for _, l := range e.Lines {
		if l.Remaining > 0 {
			continue
		}
		report.Depleted = append(report.Depleted, l.Product)
		uc.depleted.Add(1, observability.L("product", l.Product))
		logger.Warn("product_stock_depleted",
			observability.F("product", l.Product),
			observability.F("sold", l.Quantity),
		)
	}

	uc.reqCounter.Add(1,
		observability.L("use_case", useCaseStockWatch),
		observability.L("outcome", "success"),
	)
	uc.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("use_case", useCaseStockWatch),
	)
	if span != nil {
		span.SetAttributes(attribute.Int("stock.depleted", len(report.Depleted)))
		span.SetStatus(codes.Ok, "OK")
		span.End()
	}
	return report, nil
}
