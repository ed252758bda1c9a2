/**
 * @description
 * Broker-facing consumers for payment and payout status events published by
 * the Connector Gateway. A handler returns true to acknowledge (processed or
 * intentionally dropped) and false to requeue the delivery.
 *
 * The optional deduper short-circuits exact webhook redeliveries by event id.
 * It is an optimization only; correctness comes from the transition-keyed
 * ledger rules, which make replays a no-op anyway.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/payverge/settlement-service/internal/domain"
)

const consumerTimeout = 15 * time.Second

// EventDeduper reports whether a delivery with this event id was already
// processed, marking it as seen in the same call.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// PaymentStatusConsumer handles payment.status.* deliveries.
type PaymentStatusConsumer struct {
	updater *LedgerUpdater
	deduper EventDeduper
	logger  *slog.Logger
}

// NewPaymentStatusConsumer creates a consumer; deduper may be nil.
func NewPaymentStatusConsumer(updater *LedgerUpdater, deduper EventDeduper, logger *slog.Logger) *PaymentStatusConsumer {
	return &PaymentStatusConsumer{updater: updater, deduper: deduper, logger: logger}
}

// HandleMessage implements the broker handler contract.
func (c *PaymentStatusConsumer) HandleMessage(body []byte) bool {
	var event domain.PaymentStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Warn("payment consumer: failed to unmarshal payload; dropping", "err", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	if seen := alreadySeen(ctx, c.deduper, event.EventID, c.logger); seen {
		return true
	}

	if err := c.updater.ApplyPaymentEvent(ctx, event); err != nil {
		if errors.Is(err, ErrEventDropped) {
			return true
		}
		c.logger.Error("payment consumer: processing error; requeueing",
			"gateway_reference", event.GatewayReference, "err", err)
		return false
	}
	return true
}

// PayoutStatusConsumer handles payout.status.* deliveries.
type PayoutStatusConsumer struct {
	updater *LedgerUpdater
	deduper EventDeduper
	logger  *slog.Logger
}

// NewPayoutStatusConsumer creates a consumer; deduper may be nil.
func NewPayoutStatusConsumer(updater *LedgerUpdater, deduper EventDeduper, logger *slog.Logger) *PayoutStatusConsumer {
	return &PayoutStatusConsumer{updater: updater, deduper: deduper, logger: logger}
}

// HandleMessage implements the broker handler contract.
func (c *PayoutStatusConsumer) HandleMessage(body []byte) bool {
	var event domain.PayoutStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Warn("payout consumer: failed to unmarshal payload; dropping", "err", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	if seen := alreadySeen(ctx, c.deduper, event.EventID, c.logger); seen {
		return true
	}

	if err := c.updater.ApplyPayoutEvent(ctx, event); err != nil {
		if errors.Is(err, ErrEventDropped) {
			return true
		}
		c.logger.Error("payout consumer: processing error; requeueing", "utr", event.UTR, "err", err)
		return false
	}
	return true
}

// alreadySeen consults the deduper when one is configured. Deduper failures
// fall through to processing; the ledger rules tolerate duplicates.
func alreadySeen(ctx context.Context, deduper EventDeduper, eventID string, logger *slog.Logger) bool {
	if deduper == nil || eventID == "" {
		return false
	}
	seen, err := deduper.Seen(ctx, eventID)
	if err != nil {
		logger.Warn("event dedupe check failed; processing anyway", "event_id", eventID, "err", err)
		return false
	}
	if seen {
		logger.Debug("duplicate delivery suppressed", "event_id", eventID)
	}
	return seen
}
