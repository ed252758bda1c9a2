/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the settlement service. Defining
 * an interface decouples the business logic from the PostgreSQL implementation
 * and lets tests substitute in-memory stubs.
 *
 * The balance-affecting operations (ApplyPaymentStatusChange,
 * ApplyPayoutStatusChange, SettleMerchant, OverwriteMerchantLedger) are each a
 * single database transaction holding the merchant row lock, so the merchant
 * ledger is the unit of mutual exclusion.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
)

// PaymentLedgerChange reports the outcome of applying a payment status event.
// Applied is false when the stored status already matched the event, meaning
// the ledger was intentionally left untouched.
type PaymentLedgerChange struct {
	Applied     bool
	Previous    domain.TransactionStatus
	Transaction *domain.Transaction
	Merchant    *domain.Merchant
}

// PayoutLedgerChange is the payout-side counterpart of PaymentLedgerChange.
type PayoutLedgerChange struct {
	Applied  bool
	Previous domain.PayoutStatus
	Payout   *domain.PayoutTransaction
	Merchant *domain.Merchant
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Merchant ledger
	FindMerchantByID(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error)
	ListEligibleMerchants(ctx context.Context, minimumAmount int64) ([]domain.Merchant, error)
	OverwriteMerchantLedger(ctx context.Context, merchant *domain.Merchant) error

	// Payment transactions
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByGatewayReference(ctx context.Context, gatewayReference string) (*domain.Transaction, error)
	ApplyPaymentStatusChange(ctx context.Context, gatewayReference string, next domain.TransactionStatus, failureReason *string) (*PaymentLedgerChange, error)
	ListMerchantTransactions(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error)

	// Payout transactions
	FindPayoutByUTR(ctx context.Context, utr string) (*domain.PayoutTransaction, error)
	ApplyPayoutStatusChange(ctx context.Context, utr string, next domain.PayoutStatus, failureReason *string) (*PayoutLedgerChange, error)
	ListMerchantPayouts(ctx context.Context, merchantID uuid.UUID) ([]domain.PayoutTransaction, error)

	// Settlements
	CreateSettlement(ctx context.Context, settlement *domain.Settlement) error
	SettleMerchant(ctx context.Context, settlementID uuid.UUID, merchantID uuid.UUID, amount int64) (*domain.SettlementItem, error)
	FinalizeSettlement(ctx context.Context, settlementID uuid.UUID, status domain.SettlementStatus, totalAmount int64) error
	FindSettlementByID(ctx context.Context, settlementID uuid.UUID) (*domain.Settlement, error)
	ListSettlements(ctx context.Context, opts domain.SettlementListOptions) ([]domain.Settlement, error)

	// Auto-settlement configs
	CreateAutoSettlementConfig(ctx context.Context, cfg *domain.AutoSettlementConfig) error
	UpdateAutoSettlementConfig(ctx context.Context, cfg *domain.AutoSettlementConfig) error
	DeleteAutoSettlementConfig(ctx context.Context, configID uuid.UUID) error
	FindAutoSettlementConfigByID(ctx context.Context, configID uuid.UUID) (*domain.AutoSettlementConfig, error)
	ListAutoSettlementConfigs(ctx context.Context, activeOnly bool) ([]domain.AutoSettlementConfig, error)
	RecordAutoSettlementRun(ctx context.Context, configID uuid.UUID, status domain.RunStatus, message string, ranAt time.Time, nextRunAt *time.Time) error
}
