package shopping

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// call tracks one use case execution: span, RED metrics and the closing log line.
type call struct {
	useCase string
	start   time.Time
	span    trace.Span
	ctx     context.Context
	logger  observability.Logger

	outcome string
	status  string
	fields  []observability.Field

	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func (s *Service) begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *call) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := s.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	return ctx, &call{
		useCase:      useCase,
		start:        time.Now(),
		span:         span,
		ctx:          ctx,
		logger:       logger,
		outcome:      "success",
		status:       "OK",
		reqCounter:   s.reqCounter,
		durHistogram: s.durHistogram,
	}
}

func (c *call) fail(outcome, status string) {
	c.outcome, c.status = outcome, status
}

func (c *call) with(fields ...observability.Field) {
	c.fields = append(c.fields, fields...)
}

func (c *call) end(err error) {
	lat := time.Since(c.start).Seconds()

	if c.span != nil {
		if err != nil {
			c.span.RecordError(err)
			c.span.SetStatus(codes.Error, c.status)
		} else {
			c.span.SetStatus(codes.Ok, c.status)
		}
		c.span.End()
	}

	if c.reqCounter != nil {
		c.reqCounter.Add(1,
			observability.L("use_case", c.useCase),
			observability.L("outcome", c.outcome),
		)
	}
	if c.durHistogram != nil {
		c.durHistogram.Observe(lat,
			observability.L("use_case", c.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(c.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, c.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	c.logger.Info("use_case_done", fields...)
}

// external records one call to a collaborator on the external_* metrics.
func (s *Service) external(peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if s.extCounter != nil {
		s.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if s.extHistogram != nil {
		s.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}
