/**
 * @description
 * Settlement batch models. A settlement is a record of intent executed: the
 * batch row, its per-merchant items, and the payout transactions they spawned
 * are created together, and a batch that commits for some merchants but not
 * others is representable as PARTIAL with per-merchant failures preserved.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SettlementStatus is the aggregate state of a settlement batch.
type SettlementStatus string

const (
	SettlementInitiated  SettlementStatus = "initiated"
	SettlementProcessing SettlementStatus = "processing"
	SettlementCompleted  SettlementStatus = "completed"
	SettlementPartial    SettlementStatus = "partial"
	SettlementFailed     SettlementStatus = "failed"
)

// SettlementTrigger records what started a batch.
type SettlementTrigger string

const (
	TriggerManual    SettlementTrigger = "manual"
	TriggerScheduled SettlementTrigger = "scheduled"
)

// Settlement is one batch run. TotalAmount is the sum of committed item
// amounts, maintained in lock-step with the items.
type Settlement struct {
	ID          uuid.UUID         `json:"id"`
	BatchID     string            `json:"batch_id"`
	Trigger     SettlementTrigger `json:"trigger"`
	Status      SettlementStatus  `json:"status"`
	TotalAmount int64             `json:"total_amount"` // in paise
	Items       []SettlementItem  `json:"items,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// SettlementItem is one committed merchant line within a batch.
type SettlementItem struct {
	ID                  uuid.UUID `json:"id"`
	SettlementID        uuid.UUID `json:"settlement_id"`
	MerchantID          uuid.UUID `json:"merchant_id"`
	UnsettledAtTime     int64     `json:"unsettled_balance_at_time"` // in paise
	SettlementAmount    int64     `json:"settlement_amount"`         // in paise
	PayoutTransactionID uuid.UUID `json:"payout_transaction_id"`
	UTR                 string    `json:"utr"`
	CreatedAt           time.Time `json:"created_at"`
}

// SettlementSelection is one requested merchant+amount pair in a batch request.
type SettlementSelection struct {
	MerchantID uuid.UUID `json:"merchant_id"`
	Amount     int64     `json:"amount"` // in paise
}

// FailedSettlement captures a merchant line that failed during execution,
// after batch-level validation had passed.
type FailedSettlement struct {
	MerchantID uuid.UUID `json:"merchant_id"`
	Amount     int64     `json:"amount"` // in paise
	Reason     string    `json:"reason"`
}

// SettlementResult is the structured outcome of a batch. Multi-merchant
// operations always report totals and per-merchant failures, never a bare
// success flag.
type SettlementResult struct {
	SettlementID      uuid.UUID          `json:"settlement_id"`
	BatchID           string             `json:"batch_id"`
	Status            SettlementStatus   `json:"status"`
	TotalRequested    int64              `json:"total_requested"` // in paise
	TotalSettled      int64              `json:"total_settled"`   // in paise
	Settled           []SettlementItem   `json:"settled"`
	FailedSettlements []FailedSettlement `json:"failed_settlements"`
}

// NewUTR generates a unique settlement reference for a payout transaction.
// The date prefix keeps references sortable for operations staff; uniqueness
// comes from the UUID tail.
func NewUTR(now time.Time) string {
	tail := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
	return fmt.Sprintf("UTR%s%s", now.UTC().Format("20060102"), tail)
}

// NewBatchID generates a human-readable settlement batch identifier.
func NewBatchID(now time.Time) string {
	tail := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("STL-%s-%s", now.UTC().Format("20060102-150405"), tail)
}

// SettlementListOptions filters settlement history queries.
type SettlementListOptions struct {
	MerchantID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
