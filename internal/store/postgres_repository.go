/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for merchants, transactions, payouts,
 * settlements and auto-settlement configs.
 *
 * Every balance-affecting method opens its own transaction and takes the
 * merchant row with SELECT ... FOR UPDATE before reading the ledger, so two
 * concurrent events for the same merchant serialize at the database. Ledger
 * math itself lives in the domain package; this layer only decides when to run
 * it and persists the result atomically with the triggering row.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Domain models and the pure ledger rules.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payverge/settlement-service/internal/domain"
)

var (
	ErrMerchantNotFound             = errors.New("merchant not found")
	ErrTransactionNotFound          = errors.New("transaction not found")
	ErrPayoutNotFound               = errors.New("payout transaction not found")
	ErrSettlementNotFound           = errors.New("settlement not found")
	ErrAutoSettlementNotFound       = errors.New("auto-settlement config not found")
	ErrInsufficientUnsettledBalance = errors.New("settlement amount exceeds unsettled balance")
	ErrConcurrencyConflict          = errors.New("concurrent ledger update conflict")
	ErrDuplicateGatewayReference    = errors.New("gateway reference already exists")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// translateErr maps driver-level failures to the repository's sentinel errors.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization failure, deadlock detected
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		case "23505": // unique violation
			return fmt.Errorf("%w: %s", ErrDuplicateGatewayReference, pgErr.ConstraintName)
		}
	}
	return err
}

const merchantColumns = `id, business_name, email, available_balance, unsettled_balance,
	total_credits, total_debits, net_earnings, total_transactions,
	successful_transactions, failed_transactions, recent_transactions, active,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMerchant(row rowScanner) (*domain.Merchant, error) {
	var m domain.Merchant
	var recentJSON []byte
	err := row.Scan(
		&m.ID, &m.BusinessName, &m.Email, &m.AvailableBalance, &m.UnsettledBalance,
		&m.TotalCredits, &m.TotalDebits, &m.NetEarnings, &m.TotalTransactions,
		&m.SuccessfulTransactions, &m.FailedTransactions, &recentJSON, &m.Active,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMerchantNotFound
		}
		return nil, translateErr(err)
	}
	if len(recentJSON) > 0 {
		if err := json.Unmarshal(recentJSON, &m.RecentTransactions); err != nil {
			return nil, fmt.Errorf("decode recent transactions: %w", err)
		}
	}
	return &m, nil
}

// lockMerchant loads a merchant row under FOR UPDATE inside the given tx.
func lockMerchant(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE id = $1 FOR UPDATE`, merchantColumns)
	return scanMerchant(tx.QueryRow(ctx, query, merchantID))
}

// persistMerchantLedger writes every ledger field back within the tx that
// holds the row lock.
func persistMerchantLedger(ctx context.Context, tx pgx.Tx, m *domain.Merchant) error {
	recentJSON, err := json.Marshal(m.RecentTransactions)
	if err != nil {
		return fmt.Errorf("encode recent transactions: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE merchants SET
			available_balance = $2,
			unsettled_balance = $3,
			total_credits = $4,
			total_debits = $5,
			net_earnings = $6,
			total_transactions = $7,
			successful_transactions = $8,
			failed_transactions = $9,
			recent_transactions = $10,
			updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.AvailableBalance, m.UnsettledBalance, m.TotalCredits, m.TotalDebits,
		m.NetEarnings, m.TotalTransactions, m.SuccessfulTransactions,
		m.FailedTransactions, recentJSON,
	)
	return translateErr(err)
}

// FindMerchantByID retrieves a merchant with its ledger fields.
func (r *PostgresRepository) FindMerchantByID(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE id = $1`, merchantColumns)
	return scanMerchant(r.db.QueryRow(ctx, query, merchantID))
}

// ListEligibleMerchants returns active merchants whose unsettled balance has
// reached the threshold, ordered by id so overlapping batches lock rows in a
// fixed order.
func (r *PostgresRepository) ListEligibleMerchants(ctx context.Context, minimumAmount int64) ([]domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants
		WHERE active = TRUE AND unsettled_balance >= $1
		ORDER BY id ASC`, merchantColumns)
	rows, err := r.db.Query(ctx, query, minimumAmount)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var merchants []domain.Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		merchants = append(merchants, *m)
	}
	return merchants, rows.Err()
}

// OverwriteMerchantLedger replaces every ledger field with recomputed values.
// Used by the reconciliation job; takes the row lock like any other writer.
func (r *PostgresRepository) OverwriteMerchantLedger(ctx context.Context, merchant *domain.Merchant) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return translateErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockMerchant(ctx, tx, merchant.ID); err != nil {
		return err
	}
	if err := persistMerchantLedger(ctx, tx, merchant); err != nil {
		return err
	}
	return translateErr(tx.Commit(ctx))
}

// CreateTransaction inserts a payment-in record and registers it on the
// merchant's counters and activity feed in the same transaction.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return translateErr(err)
	}
	defer tx.Rollback(ctx)

	merchant, err := lockMerchant(ctx, tx, t.MerchantID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, merchant_id, gateway_reference, connector, amount,
			currency, status, payment_method, payment_link, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		t.ID, t.MerchantID, t.GatewayReference, t.Connector, t.Amount,
		t.Currency, t.Status, t.PaymentMethod, t.PaymentLink, t.FailureReason,
	)
	if err != nil {
		return translateErr(err)
	}

	// A record created directly in a successful state still credits the ledger.
	domain.ApplyPaymentStatusChange(merchant, t.Amount, domain.TransactionInitiated, t.Status, true)
	domain.PushActivity(merchant, domain.ActivityEntry{
		Reference:  t.GatewayReference,
		Kind:       domain.ActivityPayment,
		Amount:     t.Amount,
		Status:     string(t.Status),
		OccurredAt: time.Now().UTC(),
	})
	if err := persistMerchantLedger(ctx, tx, merchant); err != nil {
		return err
	}
	return translateErr(tx.Commit(ctx))
}

const transactionColumns = `id, merchant_id, gateway_reference, connector, amount,
	currency, status, payment_method, payment_link, failure_reason, created_at, updated_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.MerchantID, &t.GatewayReference, &t.Connector, &t.Amount,
		&t.Currency, &t.Status, &t.PaymentMethod, &t.PaymentLink, &t.FailureReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, translateErr(err)
	}
	return &t, nil
}

// FindTransactionByGatewayReference resolves a transaction from the
// connector's identifier.
func (r *PostgresRepository) FindTransactionByGatewayReference(ctx context.Context, gatewayReference string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE gateway_reference = $1`, transactionColumns)
	return scanTransaction(r.db.QueryRow(ctx, query, gatewayReference))
}

// ApplyPaymentStatusChange moves a transaction to a new canonical status and
// applies the resulting ledger delta to its merchant, all in one transaction.
// When the stored status already equals the incoming one the ledger is left
// untouched and Applied is false; this is what makes webhook redelivery safe.
func (r *PostgresRepository) ApplyPaymentStatusChange(ctx context.Context, gatewayReference string, next domain.TransactionStatus, failureReason *string) (*PaymentLedgerChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE gateway_reference = $1 FOR UPDATE`, transactionColumns)
	t, err := scanTransaction(tx.QueryRow(ctx, query, gatewayReference))
	if err != nil {
		return nil, err
	}

	prev := t.Status
	if prev == next {
		return &PaymentLedgerChange{Applied: false, Previous: prev, Transaction: t}, nil
	}

	merchant, err := lockMerchant(ctx, tx, t.MerchantID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE transactions SET status = $2, failure_reason = COALESCE($3, failure_reason), updated_at = NOW()
		WHERE id = $1`,
		t.ID, next, failureReason,
	)
	if err != nil {
		return nil, translateErr(err)
	}

	domain.ApplyPaymentStatusChange(merchant, t.Amount, prev, next, false)
	domain.PushActivity(merchant, domain.ActivityEntry{
		Reference:  t.GatewayReference,
		Kind:       domain.ActivityPayment,
		Amount:     t.Amount,
		Status:     string(next),
		OccurredAt: time.Now().UTC(),
	})
	if err := persistMerchantLedger(ctx, tx, merchant); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translateErr(err)
	}

	t.Status = next
	if failureReason != nil {
		t.FailureReason = failureReason
	}
	return &PaymentLedgerChange{Applied: true, Previous: prev, Transaction: t, Merchant: merchant}, nil
}

// ListMerchantTransactions returns the merchant's full payment history in
// chronological order, for reconciliation replay.
func (r *PostgresRepository) ListMerchantTransactions(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE merchant_id = $1 ORDER BY created_at ASC, id ASC`, transactionColumns)
	rows, err := r.db.Query(ctx, query, merchantID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

const payoutColumns = `id, utr, merchant_id, settlement_id, type, status, amount,
	remarks, failure_reason, created_at, updated_at`

func scanPayout(row rowScanner) (*domain.PayoutTransaction, error) {
	var p domain.PayoutTransaction
	err := row.Scan(
		&p.ID, &p.UTR, &p.MerchantID, &p.SettlementID, &p.Type, &p.Status,
		&p.Amount, &p.Remarks, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, translateErr(err)
	}
	return &p, nil
}

// FindPayoutByUTR resolves a payout record from its settlement reference.
func (r *PostgresRepository) FindPayoutByUTR(ctx context.Context, utr string) (*domain.PayoutTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM payout_transactions WHERE utr = $1`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, utr))
}

// ApplyPayoutStatusChange is the payout-side counterpart of
// ApplyPaymentStatusChange: status row and ledger move together or not at all.
func (r *PostgresRepository) ApplyPayoutStatusChange(ctx context.Context, utr string, next domain.PayoutStatus, failureReason *string) (*PayoutLedgerChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`SELECT %s FROM payout_transactions WHERE utr = $1 FOR UPDATE`, payoutColumns)
	p, err := scanPayout(tx.QueryRow(ctx, query, utr))
	if err != nil {
		return nil, err
	}

	prev := p.Status
	if prev == next {
		return &PayoutLedgerChange{Applied: false, Previous: prev, Payout: p}, nil
	}

	merchant, err := lockMerchant(ctx, tx, p.MerchantID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE payout_transactions SET status = $2, failure_reason = COALESCE($3, failure_reason), updated_at = NOW()
		WHERE id = $1`,
		p.ID, next, failureReason,
	)
	if err != nil {
		return nil, translateErr(err)
	}

	domain.ApplyPayoutStatusChange(merchant, p.Amount, p.Type, p.SettlementID != nil, prev, next)
	domain.PushActivity(merchant, domain.ActivityEntry{
		Reference:  p.UTR,
		Kind:       domain.ActivityPayout,
		Amount:     p.Amount,
		Status:     string(next),
		Direction:  string(p.Type),
		OccurredAt: time.Now().UTC(),
	})
	if err := persistMerchantLedger(ctx, tx, merchant); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translateErr(err)
	}

	p.Status = next
	if failureReason != nil {
		p.FailureReason = failureReason
	}
	return &PayoutLedgerChange{Applied: true, Previous: prev, Payout: p, Merchant: merchant}, nil
}

// ListMerchantPayouts returns the merchant's full payout history in
// chronological order, for reconciliation replay.
func (r *PostgresRepository) ListMerchantPayouts(ctx context.Context, merchantID uuid.UUID) ([]domain.PayoutTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM payout_transactions WHERE merchant_id = $1 ORDER BY created_at ASC, id ASC`, payoutColumns)
	rows, err := r.db.Query(ctx, query, merchantID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var payouts []domain.PayoutTransaction
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// CreateSettlement inserts the batch header row.
func (r *PostgresRepository) CreateSettlement(ctx context.Context, s *domain.Settlement) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settlements (id, batch_id, trigger_source, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		s.ID, s.BatchID, s.Trigger, s.Status, s.TotalAmount,
	)
	return translateErr(err)
}

// SettleMerchant executes one merchant line of a settlement batch as a single
// atomic unit: lock the merchant, re-validate the unsettled balance, decrement
// it, create the successful debit payout with a fresh UTR, and append the
// settlement item. Any failure rolls the whole line back.
func (r *PostgresRepository) SettleMerchant(ctx context.Context, settlementID uuid.UUID, merchantID uuid.UUID, amount int64) (*domain.SettlementItem, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	defer tx.Rollback(ctx)

	merchant, err := lockMerchant(ctx, tx, merchantID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 || amount > merchant.UnsettledBalance {
		return nil, fmt.Errorf("%w: requested %d, unsettled %d", ErrInsufficientUnsettledBalance, amount, merchant.UnsettledBalance)
	}

	now := time.Now().UTC()
	unsettledBefore := merchant.UnsettledBalance
	utr := domain.NewUTR(now)
	payoutID := uuid.New()

	_, err = tx.Exec(ctx, `
		INSERT INTO payout_transactions (id, utr, merchant_id, settlement_id, type, status,
			amount, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		payoutID, utr, merchantID, settlementID, domain.PayoutDebit, domain.PayoutSuccess,
		amount, "settlement disbursement",
	)
	if err != nil {
		return nil, translateErr(err)
	}

	item := &domain.SettlementItem{
		ID:                  uuid.New(),
		SettlementID:        settlementID,
		MerchantID:          merchantID,
		UnsettledAtTime:     unsettledBefore,
		SettlementAmount:    amount,
		PayoutTransactionID: payoutID,
		UTR:                 utr,
		CreatedAt:           now,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO settlement_items (id, settlement_id, merchant_id, unsettled_at_time,
			settlement_amount, payout_transaction_id, utr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.SettlementID, item.MerchantID, item.UnsettledAtTime,
		item.SettlementAmount, item.PayoutTransactionID, item.UTR, item.CreatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}

	domain.ApplyPayoutStatusChange(merchant, amount, domain.PayoutDebit, true, domain.PayoutPending, domain.PayoutSuccess)
	domain.PushActivity(merchant, domain.ActivityEntry{
		Reference:  utr,
		Kind:       domain.ActivityPayout,
		Amount:     amount,
		Status:     string(domain.PayoutSuccess),
		Direction:  string(domain.PayoutDebit),
		OccurredAt: now,
	})
	if err := persistMerchantLedger(ctx, tx, merchant); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translateErr(err)
	}
	return item, nil
}

// FinalizeSettlement records the batch outcome once every line has been
// attempted.
func (r *PostgresRepository) FinalizeSettlement(ctx context.Context, settlementID uuid.UUID, status domain.SettlementStatus, totalAmount int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE settlements SET status = $2, total_amount = $3, completed_at = NOW()
		WHERE id = $1`,
		settlementID, status, totalAmount,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

const settlementColumns = `id, batch_id, trigger_source, status, total_amount, created_at, completed_at`

func scanSettlement(row rowScanner) (*domain.Settlement, error) {
	var s domain.Settlement
	err := row.Scan(&s.ID, &s.BatchID, &s.Trigger, &s.Status, &s.TotalAmount, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, translateErr(err)
	}
	return &s, nil
}

// FindSettlementByID loads a batch together with its committed items.
func (r *PostgresRepository) FindSettlementByID(ctx context.Context, settlementID uuid.UUID) (*domain.Settlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM settlements WHERE id = $1`, settlementColumns)
	s, err := scanSettlement(r.db.QueryRow(ctx, query, settlementID))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, settlement_id, merchant_id, unsettled_at_time, settlement_amount,
			payout_transaction_id, utr, created_at
		FROM settlement_items WHERE settlement_id = $1 ORDER BY created_at ASC`,
		settlementID,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SettlementItem
		if err := rows.Scan(&item.ID, &item.SettlementID, &item.MerchantID, &item.UnsettledAtTime,
			&item.SettlementAmount, &item.PayoutTransactionID, &item.UTR, &item.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		s.Items = append(s.Items, item)
	}
	return s, rows.Err()
}

// ListSettlements returns batch headers filtered by merchant and date range,
// newest first.
func (r *PostgresRepository) ListSettlements(ctx context.Context, opts domain.SettlementListOptions) ([]domain.Settlement, error) {
	query := `SELECT DISTINCT s.id, s.batch_id, s.trigger_source, s.status, s.total_amount, s.created_at, s.completed_at
		FROM settlements s`
	args := []any{}
	where := ""

	if opts.MerchantID != nil {
		query += ` JOIN settlement_items si ON si.settlement_id = s.id`
		args = append(args, *opts.MerchantID)
		where = fmt.Sprintf(" WHERE si.merchant_id = $%d", len(args))
	}
	if opts.From != nil {
		args = append(args, *opts.From)
		if where == "" {
			where = fmt.Sprintf(" WHERE s.created_at >= $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND s.created_at >= $%d", len(args))
		}
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		if where == "" {
			where = fmt.Sprintf(" WHERE s.created_at < $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND s.created_at < $%d", len(args))
		}
	}

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += where + fmt.Sprintf(" ORDER BY s.created_at DESC LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, *s)
	}
	return settlements, rows.Err()
}

const autoSettlementColumns = `id, connector, account_ref, run_hour, run_minute, minimum_amount,
	active, last_run_at, last_run_status, last_run_message, next_run_at, created_at, updated_at`

func scanAutoSettlement(row rowScanner) (*domain.AutoSettlementConfig, error) {
	var c domain.AutoSettlementConfig
	err := row.Scan(
		&c.ID, &c.Connector, &c.AccountRef, &c.RunHour, &c.RunMinute, &c.MinimumAmount,
		&c.Active, &c.LastRunAt, &c.LastRunStatus, &c.LastRunMessage, &c.NextRunAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAutoSettlementNotFound
		}
		return nil, translateErr(err)
	}
	return &c, nil
}

// CreateAutoSettlementConfig inserts a new schedule config.
func (r *PostgresRepository) CreateAutoSettlementConfig(ctx context.Context, cfg *domain.AutoSettlementConfig) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auto_settlement_configs (id, connector, account_ref, run_hour, run_minute,
			minimum_amount, active, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		cfg.ID, cfg.Connector, cfg.AccountRef, cfg.RunHour, cfg.RunMinute,
		cfg.MinimumAmount, cfg.Active, cfg.NextRunAt,
	)
	return translateErr(err)
}

// UpdateAutoSettlementConfig persists schedule and threshold changes.
func (r *PostgresRepository) UpdateAutoSettlementConfig(ctx context.Context, cfg *domain.AutoSettlementConfig) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE auto_settlement_configs SET connector = $2, account_ref = $3, run_hour = $4,
			run_minute = $5, minimum_amount = $6, active = $7, next_run_at = $8, updated_at = NOW()
		WHERE id = $1`,
		cfg.ID, cfg.Connector, cfg.AccountRef, cfg.RunHour, cfg.RunMinute,
		cfg.MinimumAmount, cfg.Active, cfg.NextRunAt,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAutoSettlementNotFound
	}
	return nil
}

// DeleteAutoSettlementConfig removes the config row.
func (r *PostgresRepository) DeleteAutoSettlementConfig(ctx context.Context, configID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM auto_settlement_configs WHERE id = $1`, configID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAutoSettlementNotFound
	}
	return nil
}

// FindAutoSettlementConfigByID loads one config.
func (r *PostgresRepository) FindAutoSettlementConfigByID(ctx context.Context, configID uuid.UUID) (*domain.AutoSettlementConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM auto_settlement_configs WHERE id = $1`, autoSettlementColumns)
	return scanAutoSettlement(r.db.QueryRow(ctx, query, configID))
}

// ListAutoSettlementConfigs returns configs, optionally only active ones
// (used at boot to re-register schedules).
func (r *PostgresRepository) ListAutoSettlementConfigs(ctx context.Context, activeOnly bool) ([]domain.AutoSettlementConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM auto_settlement_configs`, autoSettlementColumns)
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var configs []domain.AutoSettlementConfig
	for rows.Next() {
		c, err := scanAutoSettlement(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

// RecordAutoSettlementRun stores the outcome of one fire.
func (r *PostgresRepository) RecordAutoSettlementRun(ctx context.Context, configID uuid.UUID, status domain.RunStatus, message string, ranAt time.Time, nextRunAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE auto_settlement_configs SET last_run_at = $2, last_run_status = $3,
			last_run_message = $4, next_run_at = $5, updated_at = NOW()
		WHERE id = $1`,
		configID, ranAt, status, message, nextRunAt,
	)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAutoSettlementNotFound
	}
	return nil
}
