package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

// BusinessMetrics records reset, payment, email and webhook activity. It
// also subscribes to the event bus so the reset and payment counters need
// no calls from the services.
type BusinessMetrics struct {
	resets          *Counter
	contentDeleted  *Counter
	payments        *Counter
	paymentAmount   metric.Float64Counter
	emails          *Counter
	webhooks        *Counter
	resetRunSeconds *Histogram
}

// NewBusinessMetrics creates the service counters on meter.
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var (
		bm  BusinessMetrics
		err error
	)
	if bm.resets, err = NewCounter(meter, "a2z.reset.profiles", "Profiles whose content was reset", "{profile}"); err != nil {
		return nil, err
	}
	if bm.contentDeleted, err = NewCounter(meter, "a2z.reset.content_deleted", "Content rows deleted by resets", "{row}"); err != nil {
		return nil, err
	}
	if bm.payments, err = NewCounter(meter, "a2z.payments.completed", "Subscription payments completed", "{payment}"); err != nil {
		return nil, err
	}
	if bm.paymentAmount, err = meter.Float64Counter("a2z.payments.amount",
		metric.WithDescription("Completed payment volume"), metric.WithUnit("ZAR")); err != nil {
		return nil, fmt.Errorf("failed to create counter a2z.payments.amount: %w", err)
	}
	if bm.emails, err = NewCounter(meter, "a2z.emails.processed", "Queued emails processed", "{email}"); err != nil {
		return nil, err
	}
	if bm.webhooks, err = NewCounter(meter, "a2z.webhooks.received", "Webhook callbacks received", "{request}"); err != nil {
		return nil, err
	}
	if bm.resetRunSeconds, err = NewHistogram(meter, "a2z.reset.run.duration", "Duration of scheduled reset passes", "s", RunDurationBuckets...); err != nil {
		return nil, err
	}
	return &bm, nil
}

// EventTypes implements shared.EventHandler
func (bm *BusinessMetrics) EventTypes() []string {
	return []string{reset.EventTypeContentReset, billing.EventTypePaymentCompleted}
}

// Handle implements shared.EventHandler
func (bm *BusinessMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *reset.ContentResetEvent:
		bm.RecordReset(ctx, e.ResetType, e.Deleted)
	case *billing.PaymentCompletedEvent:
		amount, _ := e.Amount.Float64()
		tier := AttrTier.String(string(e.Tier))
		bm.payments.Inc(ctx, tier)
		bm.paymentAmount.Add(ctx, amount, metric.WithAttributes(tier))
	}
	return nil
}

// RecordReset counts one reset profile and its deleted rows per table.
func (bm *BusinessMetrics) RecordReset(ctx context.Context, t reset.ResetType, deleted reset.ContentCounts) {
	typ := AttrResetType.String(string(t))
	bm.resets.Inc(ctx, typ)
	bm.contentDeleted.Add(ctx, int64(deleted.Products), typ, AttrContentTable.String("products"))
	bm.contentDeleted.Add(ctx, int64(deleted.Listings), typ, AttrContentTable.String("listings"))
	bm.contentDeleted.Add(ctx, int64(deleted.GalleryItems), typ, AttrContentTable.String("gallery_items"))
}

// RecordResetRun records how long a scheduled pass took.
func (bm *BusinessMetrics) RecordResetRun(ctx context.Context, d time.Duration, err error) {
	bm.resetRunSeconds.RecordDuration(ctx, d, outcome(err))
}

// RecordEmailPass counts the results of one queue pass.
func (bm *BusinessMetrics) RecordEmailPass(ctx context.Context, sent, failed int) {
	bm.emails.Add(ctx, int64(sent), AttrEmailResult.String("sent"))
	bm.emails.Add(ctx, int64(failed), AttrEmailResult.String("failed"))
}

// RecordWebhook counts a webhook callback from source.
func (bm *BusinessMetrics) RecordWebhook(ctx context.Context, source string, err error) {
	bm.webhooks.Inc(ctx, AttrWebhookSource.String(source), outcome(err))
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return AttrOutcome.String("error")
	}
	return AttrOutcome.String("ok")
}
