/**
 * @description
 * Event payloads exchanged with the message broker: status updates arriving
 * from the Connector Gateway and settlement outcomes published for downstream
 * consumers.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatusEvent is the broker payload for a payment status change
// reported by the Connector Gateway. EventID identifies the delivery and is
// used for webhook-redelivery deduplication; correctness does not depend on
// it.
type PaymentStatusEvent struct {
	EventID          string `json:"event_id"`
	GatewayReference string `json:"gateway_reference"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	OccurredAt       string `json:"occurred_at,omitempty"`
}

// PayoutStatusEvent is the broker payload for a payout status change.
type PayoutStatusEvent struct {
	EventID string `json:"event_id"`
	UTR     string `json:"utr"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// SettlementEvent is published after a settlement batch finishes.
type SettlementEvent struct {
	SettlementID  uuid.UUID        `json:"settlement_id"`
	BatchID       string           `json:"batch_id"`
	Status        SettlementStatus `json:"status"`
	TotalSettled  int64            `json:"total_settled"` // in paise
	MerchantCount int              `json:"merchant_count"`
	FailureCount  int              `json:"failure_count"`
	Timestamp     time.Time        `json:"timestamp"`
}
