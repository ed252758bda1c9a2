package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
)

// runRecord captures one RecordAutoSettlementRun call for assertions.
type runRecord struct {
	configID uuid.UUID
	status   domain.RunStatus
	message  string
}

// stubRepo is an in-memory store.Repository. Balance-affecting operations
// mirror the real repository's semantics: transition-keyed updates, unsettled
// balance checks, and per-merchant atomicity.
type stubRepo struct {
	mu sync.Mutex

	merchants    map[uuid.UUID]*domain.Merchant
	transactions map[string]*domain.Transaction
	payouts      map[string]*domain.PayoutTransaction
	settlements  map[uuid.UUID]*domain.Settlement
	configs      map[uuid.UUID]*domain.AutoSettlementConfig

	runRecords []runRecord

	// settleFailures injects per-merchant errors into SettleMerchant; the
	// counter decrements on every attempt so retries can eventually succeed.
	settleFailures map[uuid.UUID]*injectedFailure
}

type injectedFailure struct {
	err   error
	times int // negative means always
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		merchants:      make(map[uuid.UUID]*domain.Merchant),
		transactions:   make(map[string]*domain.Transaction),
		payouts:        make(map[string]*domain.PayoutTransaction),
		settlements:    make(map[uuid.UUID]*domain.Settlement),
		configs:        make(map[uuid.UUID]*domain.AutoSettlementConfig),
		settleFailures: make(map[uuid.UUID]*injectedFailure),
	}
}

func (r *stubRepo) addMerchant(m *domain.Merchant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.merchants[m.ID] = m
}

func (r *stubRepo) failSettle(merchantID uuid.UUID, err error, times int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settleFailures[merchantID] = &injectedFailure{err: err, times: times}
}

func (r *stubRepo) FindMerchantByID(_ context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[merchantID]
	if !ok {
		return nil, store.ErrMerchantNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *stubRepo) ListEligibleMerchants(_ context.Context, minimumAmount int64) ([]domain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Merchant
	for _, m := range r.merchants {
		if m.Active && m.UnsettledBalance >= minimumAmount && m.UnsettledBalance > 0 {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *stubRepo) OverwriteMerchantLedger(_ context.Context, merchant *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.merchants[merchant.ID]; !ok {
		return store.ErrMerchantNotFound
	}
	cp := *merchant
	r.merchants[merchant.ID] = &cp
	return nil
}

func (r *stubRepo) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[tx.GatewayReference]; ok {
		return store.ErrDuplicateGatewayReference
	}
	m, ok := r.merchants[tx.MerchantID]
	if !ok {
		return store.ErrMerchantNotFound
	}
	cp := *tx
	r.transactions[tx.GatewayReference] = &cp
	domain.ApplyPaymentStatusChange(m, tx.Amount, domain.TransactionInitiated, tx.Status, true)
	return nil
}

func (r *stubRepo) FindTransactionByGatewayReference(_ context.Context, gatewayReference string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[gatewayReference]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *stubRepo) ApplyPaymentStatusChange(_ context.Context, gatewayReference string, next domain.TransactionStatus, failureReason *string) (*store.PaymentLedgerChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[gatewayReference]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	m, ok := r.merchants[tx.MerchantID]
	if !ok {
		return nil, store.ErrMerchantNotFound
	}
	prev := tx.Status
	if prev == next {
		cp := *tx
		return &store.PaymentLedgerChange{Applied: false, Previous: prev, Transaction: &cp}, nil
	}
	tx.Status = next
	tx.FailureReason = failureReason
	domain.ApplyPaymentStatusChange(m, tx.Amount, prev, next, false)
	txCopy := *tx
	mCopy := *m
	return &store.PaymentLedgerChange{Applied: true, Previous: prev, Transaction: &txCopy, Merchant: &mCopy}, nil
}

func (r *stubRepo) ListMerchantTransactions(_ context.Context, merchantID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range r.transactions {
		if tx.MerchantID == merchantID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (r *stubRepo) FindPayoutByUTR(_ context.Context, utr string) (*domain.PayoutTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[utr]
	if !ok {
		return nil, store.ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubRepo) ApplyPayoutStatusChange(_ context.Context, utr string, next domain.PayoutStatus, failureReason *string) (*store.PayoutLedgerChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[utr]
	if !ok {
		return nil, store.ErrPayoutNotFound
	}
	m, ok := r.merchants[p.MerchantID]
	if !ok {
		return nil, store.ErrMerchantNotFound
	}
	prev := p.Status
	if prev == next {
		cp := *p
		return &store.PayoutLedgerChange{Applied: false, Previous: prev, Payout: &cp}, nil
	}
	p.Status = next
	p.FailureReason = failureReason
	domain.ApplyPayoutStatusChange(m, p.Amount, p.Type, p.SettlementID != nil, prev, next)
	pCopy := *p
	mCopy := *m
	return &store.PayoutLedgerChange{Applied: true, Previous: prev, Payout: &pCopy, Merchant: &mCopy}, nil
}

func (r *stubRepo) ListMerchantPayouts(_ context.Context, merchantID uuid.UUID) ([]domain.PayoutTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PayoutTransaction
	for _, p := range r.payouts {
		if p.MerchantID == merchantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubRepo) CreateSettlement(_ context.Context, settlement *domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *settlement
	cp.CreatedAt = time.Now().UTC()
	r.settlements[settlement.ID] = &cp
	return nil
}

func (r *stubRepo) SettleMerchant(_ context.Context, settlementID uuid.UUID, merchantID uuid.UUID, amount int64) (*domain.SettlementItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if failure, ok := r.settleFailures[merchantID]; ok && failure.times != 0 {
		if failure.times > 0 {
			failure.times--
		}
		return nil, failure.err
	}

	m, ok := r.merchants[merchantID]
	if !ok {
		return nil, store.ErrMerchantNotFound
	}
	if amount > m.UnsettledBalance {
		return nil, store.ErrInsufficientUnsettledBalance
	}

	now := time.Now().UTC()
	payout := &domain.PayoutTransaction{
		ID:           uuid.New(),
		UTR:          domain.NewUTR(now),
		MerchantID:   merchantID,
		SettlementID: &settlementID,
		Type:         domain.PayoutDebit,
		Status:       domain.PayoutSuccess,
		Amount:       amount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.payouts[payout.UTR] = payout

	item := domain.SettlementItem{
		ID:                  uuid.New(),
		SettlementID:        settlementID,
		MerchantID:          merchantID,
		UnsettledAtTime:     m.UnsettledBalance,
		SettlementAmount:    amount,
		PayoutTransactionID: payout.ID,
		UTR:                 payout.UTR,
		CreatedAt:           now,
	}

	domain.ApplyPayoutStatusChange(m, amount, domain.PayoutDebit, true, domain.PayoutPending, domain.PayoutSuccess)

	if s, ok := r.settlements[settlementID]; ok {
		s.Items = append(s.Items, item)
	}
	return &item, nil
}

func (r *stubRepo) FinalizeSettlement(_ context.Context, settlementID uuid.UUID, status domain.SettlementStatus, totalAmount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settlements[settlementID]
	if !ok {
		return store.ErrSettlementNotFound
	}
	s.Status = status
	s.TotalAmount = totalAmount
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

func (r *stubRepo) FindSettlementByID(_ context.Context, settlementID uuid.UUID) (*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settlements[settlementID]
	if !ok {
		return nil, store.ErrSettlementNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubRepo) ListSettlements(_ context.Context, _ domain.SettlementListOptions) ([]domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Settlement
	for _, s := range r.settlements {
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubRepo) CreateAutoSettlementConfig(_ context.Context, cfg *domain.AutoSettlementConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r *stubRepo) UpdateAutoSettlementConfig(_ context.Context, cfg *domain.AutoSettlementConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[cfg.ID]; !ok {
		return store.ErrAutoSettlementNotFound
	}
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r *stubRepo) DeleteAutoSettlementConfig(_ context.Context, configID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[configID]; !ok {
		return store.ErrAutoSettlementNotFound
	}
	delete(r.configs, configID)
	return nil
}

func (r *stubRepo) FindAutoSettlementConfigByID(_ context.Context, configID uuid.UUID) (*domain.AutoSettlementConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[configID]
	if !ok {
		return nil, store.ErrAutoSettlementNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (r *stubRepo) ListAutoSettlementConfigs(_ context.Context, activeOnly bool) ([]domain.AutoSettlementConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AutoSettlementConfig
	for _, cfg := range r.configs {
		if activeOnly && !cfg.Active {
			continue
		}
		out = append(out, *cfg)
	}
	return out, nil
}

func (r *stubRepo) RecordAutoSettlementRun(_ context.Context, configID uuid.UUID, status domain.RunStatus, message string, _ time.Time, _ *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[configID]; !ok {
		return store.ErrAutoSettlementNotFound
	}
	r.runRecords = append(r.runRecords, runRecord{configID: configID, status: status, message: message})
	return nil
}
