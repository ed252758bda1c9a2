/**
 * @description
 * This file defines the transaction-side domain models for the settlement
 * service: payment-in transactions produced through the Connector Gateway and
 * payout transactions produced by settlements and manual disbursements.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (paise), which
 *   avoids floating-point inaccuracies with financial data.
 * - A transaction is immutable once terminal except for gateway-driven status
 *   transitions; the ledger reacts to transitions, never to raw rows.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a payment-in record. GatewayReference is the connector's
// identifier and is how webhook events are matched back to the row.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	MerchantID       uuid.UUID         `json:"merchant_id"`
	GatewayReference string            `json:"gateway_reference"`
	Connector        string            `json:"connector"` // e.g. 'cashfree', 'enpay'
	Amount           int64             `json:"amount"`    // in paise
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	PaymentMethod    string            `json:"payment_method"`
	PaymentLink      string            `json:"payment_link,omitempty"`
	FailureReason    *string           `json:"failure_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// PayoutTransaction is a payment-out record. UTR is the unique settlement
// reference attached at creation and never reused.
type PayoutTransaction struct {
	ID            uuid.UUID    `json:"id"`
	UTR           string       `json:"utr"`
	MerchantID    uuid.UUID    `json:"merchant_id"`
	SettlementID  *uuid.UUID   `json:"settlement_id,omitempty"`
	Type          PayoutType   `json:"type"`
	Status        PayoutStatus `json:"status"`
	Amount        int64        `json:"amount"` // in paise
	Remarks       string       `json:"remarks,omitempty"`
	FailureReason *string      `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// InitiatePaymentRequest is the DTO for creating a payment through the
// Connector Gateway.
type InitiatePaymentRequest struct {
	MerchantID    uuid.UUID `json:"merchant_id"`
	Amount        int64     `json:"amount"` // in paise
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	Connector     string    `json:"connector"`
}

// InitiatePaymentResponse is returned once the gateway has accepted the
// payment and a pending transaction row exists.
type InitiatePaymentResponse struct {
	TransactionID    uuid.UUID `json:"transaction_id"`
	GatewayReference string    `json:"gateway_reference"`
	PaymentLink      string    `json:"payment_link"`
	Status           string    `json:"status"`
}
