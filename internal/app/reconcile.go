/**
 * @description
 * Reconciliation job: the authoritative definition of a correct merchant
 * ledger. It replays the merchant's entire transaction and payout history
 * from a zero balance through the same normalization and transition rules the
 * incremental updater uses, then overwrites the stored ledger with the
 * recomputed values. Running it twice in a row yields identical results.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
)

// Reconciler recomputes merchant ledgers from history.
type Reconciler struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(repo store.Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{repo: repo, logger: logger}
}

// Recompute rebuilds and persists one merchant's ledger. Returns the
// recomputed merchant.
func (r *Reconciler) Recompute(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := r.repo.FindMerchantByID(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant: %w", err)
	}

	transactions, err := r.repo.ListMerchantTransactions(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load transaction history: %w", err)
	}
	payouts, err := r.repo.ListMerchantPayouts(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load payout history: %w", err)
	}

	rebuilt := RecomputeLedger(merchant, transactions, payouts)
	if err := r.repo.OverwriteMerchantLedger(ctx, rebuilt); err != nil {
		return nil, fmt.Errorf("persist recomputed ledger: %w", err)
	}

	r.logger.Info("merchant ledger reconciled",
		"merchant_id", merchantID,
		"available_balance", rebuilt.AvailableBalance,
		"unsettled_balance", rebuilt.UnsettledBalance,
		"net_earnings", rebuilt.NetEarnings,
		"transactions", len(transactions),
		"payouts", len(payouts),
	)
	return rebuilt, nil
}

// RecomputeLedger derives the full ledger from history. Pure: no I/O, fully
// deterministic for a given history, so it doubles as the oracle the
// incremental updater is tested against.
func RecomputeLedger(base *domain.Merchant, transactions []domain.Transaction, payouts []domain.PayoutTransaction) *domain.Merchant {
	m := &domain.Merchant{
		ID:           base.ID,
		BusinessName: base.BusinessName,
		Email:        base.Email,
		Active:       base.Active,
		CreatedAt:    base.CreatedAt,
		UpdatedAt:    base.UpdatedAt,
	}

	for _, t := range transactions {
		status := domain.NormalizeTransactionStatus(string(t.Status))
		domain.ApplyPaymentStatusChange(m, t.Amount, domain.TransactionInitiated, status, true)
	}

	for _, p := range payouts {
		status := domain.NormalizePayoutStatus(string(p.Status))
		payoutType := domain.NormalizePayoutType(string(p.Type))
		domain.ApplyPayoutStatusChange(m, p.Amount, payoutType, p.SettlementID != nil, domain.PayoutPending, status)
	}

	rebuildActivity(m, transactions, payouts)
	return m
}

// rebuildActivity reconstructs the recent-activity window from history using
// the same push rules as the live path: oldest entries pushed first so the
// window ends newest-first and capped.
func rebuildActivity(m *domain.Merchant, transactions []domain.Transaction, payouts []domain.PayoutTransaction) {
	entries := make([]domain.ActivityEntry, 0, len(transactions)+len(payouts))
	for _, t := range transactions {
		entries = append(entries, domain.ActivityEntry{
			Reference:  t.GatewayReference,
			Kind:       domain.ActivityPayment,
			Amount:     t.Amount,
			Status:     string(domain.NormalizeTransactionStatus(string(t.Status))),
			OccurredAt: t.UpdatedAt,
		})
	}
	for _, p := range payouts {
		entries = append(entries, domain.ActivityEntry{
			Reference:  p.UTR,
			Kind:       domain.ActivityPayout,
			Amount:     p.Amount,
			Status:     string(domain.NormalizePayoutStatus(string(p.Status))),
			Direction:  string(p.Type),
			OccurredAt: p.UpdatedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].Reference < entries[j].Reference
		}
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})

	for _, entry := range entries {
		domain.PushActivity(m, entry)
	}
}
