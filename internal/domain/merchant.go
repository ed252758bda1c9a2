/**
 * @description
 * Merchant ledger model. Every balance field is an int64 amount in the smallest
 * currency unit (paise), which avoids floating-point inaccuracies with
 * financial data. The ledger fields are owned by the merchant row and are only
 * mutated through the ledger rules in ledger.go, always under the row lock the
 * store acquires.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxRecentActivity bounds the merchant's recent-activity window.
const MaxRecentActivity = 20

// Merchant is the per-merchant aggregate: identity plus the running ledger.
// NetEarnings is derived and must always equal TotalCredits - TotalDebits.
type Merchant struct {
	ID                     uuid.UUID       `json:"id"`
	BusinessName           string          `json:"business_name"`
	Email                  string          `json:"email"`
	AvailableBalance       int64           `json:"available_balance"` // in paise
	UnsettledBalance       int64           `json:"unsettled_balance"` // in paise
	TotalCredits           int64           `json:"total_credits"`     // in paise
	TotalDebits            int64           `json:"total_debits"`      // in paise
	NetEarnings            int64           `json:"net_earnings"`      // in paise
	TotalTransactions      int64           `json:"total_transactions"`
	SuccessfulTransactions int64           `json:"successful_transactions"`
	FailedTransactions     int64           `json:"failed_transactions"`
	RecentTransactions     []ActivityEntry `json:"recent_transactions"`
	Active                 bool            `json:"active"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ActivityKind labels an activity entry as a payment-in or payout record.
type ActivityKind string

const (
	ActivityPayment ActivityKind = "payment"
	ActivityPayout  ActivityKind = "payout"
)

// ActivityEntry is one line in a merchant's recent-activity feed. Reference is
// the transaction id or payout UTR and is the deduplication key for the window.
type ActivityEntry struct {
	Reference  string       `json:"reference"`
	Kind       ActivityKind `json:"kind"`
	Amount     int64        `json:"amount"` // in paise
	Status     string       `json:"status"`
	Direction  string       `json:"direction,omitempty"` // debit/credit, payouts only
	OccurredAt time.Time    `json:"occurred_at"`
}
