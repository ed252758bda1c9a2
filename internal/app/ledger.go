/**
 * @description
 * Ledger updater: applies a single payment or payout status event to the
 * owning merchant's balance. Normalization happens here, before anything
 * compares statuses; the transition-keyed rules and the row lock live below
 * this layer, so calling ApplyPaymentEvent twice with the same terminal status
 * moves money exactly once.
 *
 * Failure policy: a missing transaction or merchant means the event cannot
 * belong to any account we know, so it is dropped and logged, never retried
 * against a wrong account. A persistence failure is returned to the caller so
 * the delivery can be retried; nothing is ever half-applied because the store
 * updates status and ledger in one transaction.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
)

// ErrEventDropped marks events that were discarded on purpose (unknown
// reference, unknown merchant). Callers should acknowledge, not retry.
var ErrEventDropped = errors.New("event dropped")

// LedgerUpdater applies gateway status events to merchant ledgers.
type LedgerUpdater struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewLedgerUpdater creates a ledger updater.
func NewLedgerUpdater(repo store.Repository, logger *slog.Logger) *LedgerUpdater {
	return &LedgerUpdater{repo: repo, logger: logger}
}

// ApplyPaymentEvent applies one payment status event. Returns ErrEventDropped
// for events that reference no known transaction or merchant; any other error
// is retryable.
func (u *LedgerUpdater) ApplyPaymentEvent(ctx context.Context, event domain.PaymentStatusEvent) error {
	reference := strings.TrimSpace(event.GatewayReference)
	if reference == "" {
		u.logger.Warn("payment event missing gateway reference", "event_id", event.EventID)
		return fmt.Errorf("%w: missing gateway reference", ErrEventDropped)
	}

	next := domain.NormalizeTransactionStatus(event.Status)
	change, err := u.repo.ApplyPaymentStatusChange(ctx, reference, next, optionalString(event.Reason))
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) || errors.Is(err, store.ErrMerchantNotFound) {
			u.logger.Warn("payment event references unknown record; dropping",
				"gateway_reference", reference, "status", string(next), "err", err)
			return fmt.Errorf("%w: %s", ErrEventDropped, err)
		}
		return fmt.Errorf("apply payment status change: %w", err)
	}

	if !change.Applied {
		u.logger.Debug("payment event replayed with unchanged status; ignoring",
			"gateway_reference", reference, "status", string(next))
		return nil
	}

	u.logger.Info("payment status applied",
		"gateway_reference", reference,
		"merchant_id", change.Transaction.MerchantID,
		"previous", string(change.Previous),
		"status", string(next),
		"amount", change.Transaction.Amount,
	)
	return nil
}

// ApplyPayoutEvent applies one payout status event, keyed by UTR.
func (u *LedgerUpdater) ApplyPayoutEvent(ctx context.Context, event domain.PayoutStatusEvent) error {
	utr := strings.TrimSpace(event.UTR)
	if utr == "" {
		u.logger.Warn("payout event missing utr", "event_id", event.EventID)
		return fmt.Errorf("%w: missing utr", ErrEventDropped)
	}

	next := domain.NormalizePayoutStatus(event.Status)
	change, err := u.repo.ApplyPayoutStatusChange(ctx, utr, next, optionalString(event.Reason))
	if err != nil {
		if errors.Is(err, store.ErrPayoutNotFound) || errors.Is(err, store.ErrMerchantNotFound) {
			u.logger.Warn("payout event references unknown record; dropping",
				"utr", utr, "status", string(next), "err", err)
			return fmt.Errorf("%w: %s", ErrEventDropped, err)
		}
		return fmt.Errorf("apply payout status change: %w", err)
	}

	if !change.Applied {
		u.logger.Debug("payout event replayed with unchanged status; ignoring",
			"utr", utr, "status", string(next))
		return nil
	}

	u.logger.Info("payout status applied",
		"utr", utr,
		"merchant_id", change.Payout.MerchantID,
		"previous", string(change.Previous),
		"status", string(next),
		"amount", change.Payout.Amount,
	)
	return nil
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
