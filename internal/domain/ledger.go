/**
 * @description
 * Pure ledger rules: how a single payment or payout status change moves a
 * merchant's balance fields, and how the recent-activity window is maintained.
 * These functions are free of I/O so the same code path serves the incremental
 * updater, the settlement batcher, and the reconciliation replay, and so the
 * transition rules can be tested without a database.
 *
 * The rules are transition-keyed: money moves only when a record crosses into
 * or out of the successful state. Applying the same terminal status twice is a
 * no-op, which is what makes webhook redelivery safe.
 */

package domain

// ApplyPaymentStatusChange applies one payment status transition to the ledger.
// prev is the status the stored transaction held before this event; pass
// TransactionInitiated (or the zero value) for a newly observed record with
// firstSeen true so the counters register it.
func ApplyPaymentStatusChange(m *Merchant, amount int64, prev, next TransactionStatus, firstSeen bool) {
	if firstSeen {
		m.TotalTransactions++
	}

	wasSuccess := prev == TransactionSuccess
	isSuccess := next == TransactionSuccess

	switch {
	case isSuccess && !wasSuccess:
		m.AvailableBalance += amount
		m.UnsettledBalance += amount
		m.TotalCredits += amount
		m.SuccessfulTransactions++
	case wasSuccess && !isSuccess:
		// Symmetric reversal: a payment later marked refunded/failed gives the
		// credit back in full.
		m.AvailableBalance -= amount
		m.UnsettledBalance -= amount
		m.TotalCredits -= amount
		m.SuccessfulTransactions--
	}

	if next == TransactionFailed && prev != TransactionFailed {
		m.FailedTransactions++
	} else if prev == TransactionFailed && next != TransactionFailed {
		m.FailedTransactions--
	}

	m.NetEarnings = m.TotalCredits - m.TotalDebits
}

// ApplyPayoutStatusChange applies one payout status transition to the ledger.
// A debit payout moves money out of the merchant balance toward a bank
// account; a credit payout is an internal balance adjustment in the merchant's
// favor. A settlement-linked payout additionally drains the unsettled pool on
// entry into success and restores it on the way back out, so a disbursement
// the bank later rejects returns its amount to the pool.
func ApplyPayoutStatusChange(m *Merchant, amount int64, payoutType PayoutType, settlementLinked bool, prev, next PayoutStatus) {
	wasSuccess := prev == PayoutSuccess
	isSuccess := next == PayoutSuccess
	if wasSuccess == isSuccess {
		m.NetEarnings = m.TotalCredits - m.TotalDebits
		return
	}

	sign := int64(1)
	if wasSuccess && !isSuccess {
		sign = -1
	}

	switch payoutType {
	case PayoutCredit:
		m.AvailableBalance += sign * amount
		m.TotalCredits += sign * amount
	default:
		m.AvailableBalance -= sign * amount
		m.TotalDebits += sign * amount
		if settlementLinked {
			m.UnsettledBalance -= sign * amount
		}
	}

	m.NetEarnings = m.TotalCredits - m.TotalDebits
}

// PushActivity records an entry in the merchant's recent-activity window.
// Entries are kept newest first. An entry whose reference already appears is
// updated in place rather than duplicated; otherwise the new entry is
// prepended and the window truncated to MaxRecentActivity.
func PushActivity(m *Merchant, entry ActivityEntry) {
	for i := range m.RecentTransactions {
		if m.RecentTransactions[i].Reference == entry.Reference {
			m.RecentTransactions[i] = entry
			return
		}
	}

	updated := make([]ActivityEntry, 0, len(m.RecentTransactions)+1)
	updated = append(updated, entry)
	updated = append(updated, m.RecentTransactions...)
	if len(updated) > MaxRecentActivity {
		updated = updated[:MaxRecentActivity]
	}
	m.RecentTransactions = updated
}
