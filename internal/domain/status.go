/**
 * @description
 * Canonical status sets for payment transactions and payout transactions, plus
 * the single normalization functions every component must use before branching
 * on a status. Gateways report the same state under several spellings
 * ("Success", "SUCCESS", "SUCCESSFUL"); comparing raw strings is how balances
 * get double-credited, so the aliases are merged here and nowhere else.
 */

package domain

import "strings"

// TransactionStatus is the canonical lifecycle state of a payment-in record.
type TransactionStatus string

const (
	TransactionInitiated TransactionStatus = "initiated"
	TransactionPending   TransactionStatus = "pending"
	TransactionSuccess   TransactionStatus = "success"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionRefunded  TransactionStatus = "refunded"
)

// PayoutStatus is the canonical lifecycle state of a payout record.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutSuccess    PayoutStatus = "success"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// PayoutType distinguishes money leaving the merchant balance from internal
// balance adjustments.
type PayoutType string

const (
	PayoutDebit  PayoutType = "debit"
	PayoutCredit PayoutType = "credit"
)

// NormalizeTransactionStatus merges gateway case and wording variants into one
// canonical TransactionStatus. Unknown values pass through lowercased so they
// can be persisted and inspected, but they never match a terminal state.
func NormalizeTransactionStatus(raw string) TransactionStatus {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "success", "successful", "succeeded", "completed", "paid":
		return TransactionSuccess
	case "failed", "failure", "fail", "error":
		return TransactionFailed
	case "pending", "processing", "in_progress", "user_dropped":
		return TransactionPending
	case "initiated", "created", "active":
		return TransactionInitiated
	case "cancelled", "canceled", "cancel", "expired":
		return TransactionCancelled
	case "refunded", "refund", "reversed", "charged_back":
		return TransactionRefunded
	default:
		return TransactionStatus(strings.TrimSpace(strings.ToLower(raw)))
	}
}

// NormalizePayoutStatus merges gateway variants into one canonical PayoutStatus.
func NormalizePayoutStatus(raw string) PayoutStatus {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "success", "successful", "succeeded", "completed", "processed":
		return PayoutSuccess
	case "failed", "failure", "fail", "rejected", "error":
		return PayoutFailed
	case "pending", "initiated", "created", "received":
		return PayoutPending
	case "processing", "in_progress", "queued":
		return PayoutProcessing
	case "cancelled", "canceled", "cancel":
		return PayoutCancelled
	default:
		return PayoutStatus(strings.TrimSpace(strings.ToLower(raw)))
	}
}

// NormalizePayoutType maps gateway variants of the payout direction.
func NormalizePayoutType(raw string) PayoutType {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "credit", "cr":
		return PayoutCredit
	default:
		return PayoutDebit
	}
}

// IsTerminalTransactionStatus reports whether no further transition is expected
// under normal operation.
func IsTerminalTransactionStatus(s TransactionStatus) bool {
	switch s {
	case TransactionSuccess, TransactionFailed, TransactionCancelled, TransactionRefunded:
		return true
	}
	return false
}
