/**
 * @description
 * Application service for the settlement backend: payment initiation through
 * the Connector Gateway, merchant ledger queries, manual settlement,
 * reconciliation, and the auto-settlement config lifecycle. Handlers talk to
 * this facade; it owns no SQL and no HTTP.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
	"github.com/payverge/settlement-service/pkg/gatewayclient"
)

var (
	// ErrInvalidPayment marks payment requests rejected before reaching the
	// gateway.
	ErrInvalidPayment = errors.New("invalid payment request")
	// ErrUpstreamFailure marks Connector Gateway errors; no balance was
	// touched.
	ErrUpstreamFailure = errors.New("connector gateway failure")
)

// ConnectorGateway is the surface of the external payment-provider gateway
// the core depends on.
type ConnectorGateway interface {
	CreatePaymentLink(ctx context.Context, req gatewayclient.PaymentLinkRequest) (*gatewayclient.PaymentLinkResponse, error)
	GetTransactionStatus(ctx context.Context, gatewayReference string) (*gatewayclient.StatusResponse, error)
}

// ScheduleRegistry is the scheduler surface the service depends on.
type ScheduleRegistry interface {
	Register(cfg domain.AutoSettlementConfig) error
	Cancel(configID uuid.UUID)
	FireNow(ctx context.Context, configID uuid.UUID) (*domain.SettlementResult, error)
}

// Service is the application facade wired into the HTTP handlers.
type Service struct {
	repo       store.Repository
	gateway    ConnectorGateway
	batcher    *SettlementBatcher
	scheduler  ScheduleRegistry
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewService creates the service facade.
func NewService(repo store.Repository, gateway ConnectorGateway, batcher *SettlementBatcher, scheduler ScheduleRegistry, reconciler *Reconciler, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		gateway:    gateway,
		batcher:    batcher,
		scheduler:  scheduler,
		reconciler: reconciler,
		logger:     logger,
	}
}

// InitiatePayment asks the Connector Gateway for a payment link and records
// the pending transaction. The ledger is untouched until status events
// arrive.
func (s *Service) InitiatePayment(ctx context.Context, req domain.InitiatePaymentRequest) (*domain.InitiatePaymentResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidPayment, req.Amount)
	}
	if strings.TrimSpace(req.Connector) == "" {
		return nil, fmt.Errorf("%w: connector is required", ErrInvalidPayment)
	}

	merchant, err := s.repo.FindMerchantByID(ctx, req.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("lookup merchant: %w", err)
	}
	if !merchant.Active {
		return nil, fmt.Errorf("%w: merchant %s is inactive", ErrInvalidPayment, req.MerchantID)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}

	link, err := s.gateway.CreatePaymentLink(ctx, gatewayclient.PaymentLinkRequest{
		MerchantRef:   merchant.ID.String(),
		Amount:        req.Amount,
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
		Connector:     req.Connector,
	})
	if err != nil {
		s.logger.Error("payment link creation failed",
			"merchant_id", req.MerchantID, "connector", req.Connector, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrUpstreamFailure, err)
	}

	tx := &domain.Transaction{
		ID:               uuid.New(),
		MerchantID:       merchant.ID,
		GatewayReference: link.GatewayReference,
		Connector:        req.Connector,
		Amount:           req.Amount,
		Currency:         currency,
		Status:           domain.TransactionInitiated,
		PaymentMethod:    req.PaymentMethod,
		PaymentLink:      link.PaymentLink,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	return &domain.InitiatePaymentResponse{
		TransactionID:    tx.ID,
		GatewayReference: tx.GatewayReference,
		PaymentLink:      tx.PaymentLink,
		Status:           string(tx.Status),
	}, nil
}

// VerifyTransaction re-fetches a transaction's provider-side status from the
// Connector Gateway and applies it through the same transition rules as
// webhook-delivered events. Covers the window where a webhook was lost: the
// ledger moves at most once per transition either way.
func (s *Service) VerifyTransaction(ctx context.Context, gatewayReference string) (*store.PaymentLedgerChange, error) {
	if strings.TrimSpace(gatewayReference) == "" {
		return nil, fmt.Errorf("%w: gateway reference is required", ErrInvalidPayment)
	}

	status, err := s.gateway.GetTransactionStatus(ctx, gatewayReference)
	if err != nil {
		s.logger.Error("transaction verification failed upstream",
			"gateway_reference", gatewayReference, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrUpstreamFailure, err)
	}

	var reason *string
	if status.Reason != "" {
		reason = &status.Reason
	}
	change, err := s.repo.ApplyPaymentStatusChange(ctx, gatewayReference,
		domain.NormalizeTransactionStatus(status.Status), reason)
	if err != nil {
		return nil, err
	}
	if change.Applied {
		s.logger.Info("transaction verified against gateway",
			"gateway_reference", gatewayReference,
			"previous", change.Previous, "status", change.Transaction.Status)
	}
	return change, nil
}

// GetMerchantLedger returns the merchant with its balance fields.
func (s *Service) GetMerchantLedger(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	return s.repo.FindMerchantByID(ctx, merchantID)
}

// GetMerchantActivity returns the bounded recent-activity feed, newest first.
func (s *Service) GetMerchantActivity(ctx context.Context, merchantID uuid.UUID) ([]domain.ActivityEntry, error) {
	merchant, err := s.repo.FindMerchantByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant.RecentTransactions == nil {
		return []domain.ActivityEntry{}, nil
	}
	return merchant.RecentTransactions, nil
}

// SettleManual runs a manual settlement batch.
func (s *Service) SettleManual(ctx context.Context, selections []domain.SettlementSelection) (*domain.SettlementResult, error) {
	return s.batcher.Settle(ctx, selections, domain.TriggerManual)
}

// Reconcile recomputes one merchant's ledger from history.
func (s *Service) Reconcile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	return s.reconciler.Recompute(ctx, merchantID)
}

// GetSettlement loads a settlement batch with its items.
func (s *Service) GetSettlement(ctx context.Context, settlementID uuid.UUID) (*domain.Settlement, error) {
	return s.repo.FindSettlementByID(ctx, settlementID)
}

// ListSettlements returns settlement history filtered by merchant and date
// range.
func (s *Service) ListSettlements(ctx context.Context, opts domain.SettlementListOptions) ([]domain.Settlement, error) {
	return s.repo.ListSettlements(ctx, opts)
}

// CreateAutoSettlement persists a config and, when active, installs its
// timer.
func (s *Service) CreateAutoSettlement(ctx context.Context, cfg domain.AutoSettlementConfig) (*domain.AutoSettlementConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	cfg.ID = uuid.New()
	cfg.CreatedAt = time.Now().UTC()
	cfg.UpdatedAt = cfg.CreatedAt

	if err := s.repo.CreateAutoSettlementConfig(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("persist auto-settlement config: %w", err)
	}
	if cfg.Active {
		if err := s.scheduler.Register(cfg); err != nil {
			return nil, fmt.Errorf("register schedule: %w", err)
		}
	}
	s.logger.Info("auto-settlement config created",
		"config_id", cfg.ID, "active", cfg.Active, "spec", cfg.CronSpec())
	return &cfg, nil
}

// UpdateAutoSettlement persists changes and reconciles the timer with the
// config's active flag. Re-registration replaces any live timer, so the
// config keeps exactly one.
func (s *Service) UpdateAutoSettlement(ctx context.Context, cfg domain.AutoSettlementConfig) (*domain.AutoSettlementConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	existing, err := s.repo.FindAutoSettlementConfigByID(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.LastRunAt = existing.LastRunAt
	cfg.LastRunStatus = existing.LastRunStatus
	cfg.LastRunMessage = existing.LastRunMessage

	if err := s.repo.UpdateAutoSettlementConfig(ctx, &cfg); err != nil {
		return nil, err
	}

	if cfg.Active {
		if err := s.scheduler.Register(cfg); err != nil {
			return nil, fmt.Errorf("register schedule: %w", err)
		}
	} else {
		s.scheduler.Cancel(cfg.ID)
	}
	s.logger.Info("auto-settlement config updated",
		"config_id", cfg.ID, "active", cfg.Active, "spec", cfg.CronSpec())
	return &cfg, nil
}

// DeleteAutoSettlement cancels the timer and removes the config.
func (s *Service) DeleteAutoSettlement(ctx context.Context, configID uuid.UUID) error {
	s.scheduler.Cancel(configID)
	if err := s.repo.DeleteAutoSettlementConfig(ctx, configID); err != nil {
		return err
	}
	s.logger.Info("auto-settlement config deleted", "config_id", configID)
	return nil
}

// GetAutoSettlement loads one config.
func (s *Service) GetAutoSettlement(ctx context.Context, configID uuid.UUID) (*domain.AutoSettlementConfig, error) {
	return s.repo.FindAutoSettlementConfigByID(ctx, configID)
}

// ListAutoSettlements returns all configs.
func (s *Service) ListAutoSettlements(ctx context.Context) ([]domain.AutoSettlementConfig, error) {
	return s.repo.ListAutoSettlementConfigs(ctx, false)
}

// RunAutoSettlementNow triggers a config's sweep synchronously.
func (s *Service) RunAutoSettlementNow(ctx context.Context, configID uuid.UUID) (*domain.SettlementResult, error) {
	return s.scheduler.FireNow(ctx, configID)
}
