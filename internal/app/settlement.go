/**
 * @description
 * Settlement batcher: turns a list of {merchant, amount} selections into a
 * committed settlement batch. Validation is all-or-nothing: one bad selection
 * rejects the whole request before anything is written. Execution is
 * per-merchant atomic: each line either fully commits (unsettled decrement +
 * payout + settlement item in one DB transaction) or is recorded as a failure
 * without disturbing sibling merchants, yielding a PARTIAL batch.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
	"github.com/payverge/settlement-service/pkg/rabbitmq"
)

// ErrValidation marks batch requests rejected before any mutation.
var ErrValidation = errors.New("settlement validation failed")

const defaultSettleRetryAttempts = 3

// SettlementBatcher commits multi-merchant settlements.
type SettlementBatcher struct {
	repo          store.Repository
	producer      rabbitmq.Publisher
	logger        *slog.Logger
	retryAttempts int
}

// NewSettlementBatcher creates a batcher; producer may be nil when event
// publishing is disabled.
func NewSettlementBatcher(repo store.Repository, producer rabbitmq.Publisher, logger *slog.Logger, retryAttempts int) *SettlementBatcher {
	if retryAttempts <= 0 {
		retryAttempts = defaultSettleRetryAttempts
	}
	return &SettlementBatcher{
		repo:          repo,
		producer:      producer,
		logger:        logger,
		retryAttempts: retryAttempts,
	}
}

// Settle validates and executes one settlement batch. Merchants are processed
// in the order submitted. The returned result is populated even when err is
// non-nil, so callers can see what committed before a system-level failure.
func (b *SettlementBatcher) Settle(ctx context.Context, selections []domain.SettlementSelection, trigger domain.SettlementTrigger) (*domain.SettlementResult, error) {
	if err := b.validate(ctx, selections); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	settlement := &domain.Settlement{
		ID:      uuid.New(),
		BatchID: domain.NewBatchID(now),
		Trigger: trigger,
		Status:  domain.SettlementProcessing,
	}
	if err := b.repo.CreateSettlement(ctx, settlement); err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}

	result := &domain.SettlementResult{
		SettlementID:      settlement.ID,
		BatchID:           settlement.BatchID,
		Settled:           []domain.SettlementItem{},
		FailedSettlements: []domain.FailedSettlement{},
	}
	for _, sel := range selections {
		result.TotalRequested += sel.Amount
	}

	var hardErr error
	for _, sel := range selections {
		if hardErr != nil {
			result.FailedSettlements = append(result.FailedSettlements, domain.FailedSettlement{
				MerchantID: sel.MerchantID,
				Amount:     sel.Amount,
				Reason:     "batch aborted before this merchant was attempted",
			})
			continue
		}

		item, err := b.settleOne(ctx, settlement.ID, sel)
		if err == nil {
			result.Settled = append(result.Settled, *item)
			result.TotalSettled += sel.Amount
			continue
		}

		if isMerchantLevelFailure(err) {
			b.logger.Warn("settlement line failed",
				"settlement_id", settlement.ID, "merchant_id", sel.MerchantID,
				"amount", sel.Amount, "err", err)
			result.FailedSettlements = append(result.FailedSettlements, domain.FailedSettlement{
				MerchantID: sel.MerchantID,
				Amount:     sel.Amount,
				Reason:     err.Error(),
			})
			continue
		}

		// Persistence-level failure: stop attempting further merchants but
		// keep what already committed on the record.
		b.logger.Error("settlement batch aborted by system failure",
			"settlement_id", settlement.ID, "merchant_id", sel.MerchantID, "err", err)
		result.FailedSettlements = append(result.FailedSettlements, domain.FailedSettlement{
			MerchantID: sel.MerchantID,
			Amount:     sel.Amount,
			Reason:     err.Error(),
		})
		hardErr = err
	}

	result.Status = batchStatus(len(result.Settled), len(result.FailedSettlements))
	if err := b.repo.FinalizeSettlement(ctx, settlement.ID, result.Status, result.TotalSettled); err != nil {
		b.logger.Error("failed to finalize settlement record",
			"settlement_id", settlement.ID, "status", string(result.Status), "err", err)
		if hardErr == nil {
			hardErr = fmt.Errorf("finalize settlement: %w", err)
		}
	}

	b.publishOutcome(ctx, result)
	return result, hardErr
}

// validate enforces the all-or-nothing precondition pass: positive amounts,
// no duplicate merchants, and every amount within the merchant's current
// unsettled balance. Nothing is written here.
func (b *SettlementBatcher) validate(ctx context.Context, selections []domain.SettlementSelection) error {
	if len(selections) == 0 {
		return fmt.Errorf("%w: no merchants selected", ErrValidation)
	}

	seen := make(map[uuid.UUID]bool, len(selections))
	for _, sel := range selections {
		if sel.Amount <= 0 {
			return fmt.Errorf("%w: merchant %s: amount must be positive, got %d", ErrValidation, sel.MerchantID, sel.Amount)
		}
		if seen[sel.MerchantID] {
			return fmt.Errorf("%w: merchant %s appears more than once", ErrValidation, sel.MerchantID)
		}
		seen[sel.MerchantID] = true

		merchant, err := b.repo.FindMerchantByID(ctx, sel.MerchantID)
		if err != nil {
			if errors.Is(err, store.ErrMerchantNotFound) {
				return fmt.Errorf("%w: merchant %s not found", ErrValidation, sel.MerchantID)
			}
			return fmt.Errorf("validate selection for merchant %s: %w", sel.MerchantID, err)
		}
		if sel.Amount > merchant.UnsettledBalance {
			return fmt.Errorf("%w: merchant %s: %s (requested %d, unsettled %d)",
				store.ErrInsufficientUnsettledBalance, sel.MerchantID,
				"amount exceeds unsettled balance", sel.Amount, merchant.UnsettledBalance)
		}
	}
	return nil
}

// settleOne commits a single merchant line, retrying a bounded number of
// times when a concurrent writer invalidates the attempt.
func (b *SettlementBatcher) settleOne(ctx context.Context, settlementID uuid.UUID, sel domain.SettlementSelection) (*domain.SettlementItem, error) {
	var lastErr error
	for attempt := 1; attempt <= b.retryAttempts; attempt++ {
		item, err := b.repo.SettleMerchant(ctx, settlementID, sel.MerchantID, sel.Amount)
		if err == nil {
			return item, nil
		}
		lastErr = err
		if !errors.Is(err, store.ErrConcurrencyConflict) {
			return nil, err
		}
		b.logger.Warn("settlement line hit concurrent update; retrying",
			"merchant_id", sel.MerchantID, "attempt", attempt)
	}
	return nil, lastErr
}

func isMerchantLevelFailure(err error) bool {
	return errors.Is(err, store.ErrInsufficientUnsettledBalance) ||
		errors.Is(err, store.ErrMerchantNotFound) ||
		errors.Is(err, store.ErrConcurrencyConflict)
}

func batchStatus(settled, failed int) domain.SettlementStatus {
	switch {
	case settled > 0 && failed == 0:
		return domain.SettlementCompleted
	case settled > 0:
		return domain.SettlementPartial
	default:
		return domain.SettlementFailed
	}
}

// publishOutcome emits the settlement event for downstream consumers. Best
// effort: a broker failure never fails the settlement itself.
func (b *SettlementBatcher) publishOutcome(ctx context.Context, result *domain.SettlementResult) {
	if b.producer == nil {
		return
	}
	event := domain.SettlementEvent{
		SettlementID:  result.SettlementID,
		BatchID:       result.BatchID,
		Status:        result.Status,
		TotalSettled:  result.TotalSettled,
		MerchantCount: len(result.Settled),
		FailureCount:  len(result.FailedSettlements),
		Timestamp:     time.Now().UTC(),
	}
	routingKey := "settlement.completed"
	if result.Status != domain.SettlementCompleted {
		routingKey = "settlement." + string(result.Status)
	}
	if err := b.producer.Publish(ctx, rabbitmq.SettlementExchange, routingKey, event); err != nil {
		b.logger.Warn("settlement event publish failed", "settlement_id", result.SettlementID, "err", err)
	}
}
