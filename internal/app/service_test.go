package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/pkg/gatewayclient"
)

type stubGateway struct {
	err    error
	resp   *gatewayclient.PaymentLinkResponse
	status *gatewayclient.StatusResponse
	last   gatewayclient.PaymentLinkRequest
}

func (g *stubGateway) CreatePaymentLink(_ context.Context, req gatewayclient.PaymentLinkRequest) (*gatewayclient.PaymentLinkResponse, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func (g *stubGateway) GetTransactionStatus(_ context.Context, ref string) (*gatewayclient.StatusResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.status != nil {
		return g.status, nil
	}
	return &gatewayclient.StatusResponse{GatewayReference: ref, Status: "pending"}, nil
}

type stubScheduler struct {
	registered map[uuid.UUID]int
	cancelled  map[uuid.UUID]int
	fired      map[uuid.UUID]int
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{
		registered: make(map[uuid.UUID]int),
		cancelled:  make(map[uuid.UUID]int),
		fired:      make(map[uuid.UUID]int),
	}
}

func (s *stubScheduler) Register(cfg domain.AutoSettlementConfig) error {
	s.registered[cfg.ID]++
	return nil
}

func (s *stubScheduler) Cancel(configID uuid.UUID) {
	s.cancelled[configID]++
}

func (s *stubScheduler) FireNow(_ context.Context, configID uuid.UUID) (*domain.SettlementResult, error) {
	s.fired[configID]++
	return &domain.SettlementResult{Status: domain.SettlementCompleted}, nil
}

func newTestService(repo *stubRepo, gateway ConnectorGateway, scheduler ScheduleRegistry) *Service {
	batcher := NewSettlementBatcher(repo, nil, testLogger(), 3)
	reconciler := NewReconciler(repo, testLogger())
	return NewService(repo, gateway, batcher, scheduler, reconciler, testLogger())
}

func TestInitiatePayment_CreatesPendingTransaction(t *testing.T) {
	repo := newStubRepo()
	merchant := &domain.Merchant{ID: uuid.New(), Active: true}
	repo.addMerchant(merchant)

	gateway := &stubGateway{resp: &gatewayclient.PaymentLinkResponse{
		GatewayReference: "gw_ref_1",
		PaymentLink:      "https://pay.example/link",
	}}
	svc := newTestService(repo, gateway, newStubScheduler())

	resp, err := svc.InitiatePayment(context.Background(), domain.InitiatePaymentRequest{
		MerchantID: merchant.ID,
		Amount:     2500,
		Connector:  "cashfree",
	})
	if err != nil {
		t.Fatalf("InitiatePayment returned error: %v", err)
	}
	if resp.GatewayReference != "gw_ref_1" || resp.PaymentLink != "https://pay.example/link" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Status != string(domain.TransactionInitiated) {
		t.Fatalf("expected initiated status, got %s", resp.Status)
	}
	if gateway.last.Currency != "INR" {
		t.Fatalf("expected INR default currency, got %s", gateway.last.Currency)
	}

	tx, err := repo.FindTransactionByGatewayReference(context.Background(), "gw_ref_1")
	if err != nil {
		t.Fatalf("transaction not persisted: %v", err)
	}
	if tx.Amount != 2500 || tx.Status != domain.TransactionInitiated {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	// No money moves until a status event arrives.
	m, _ := repo.FindMerchantByID(context.Background(), merchant.ID)
	if m.AvailableBalance != 0 {
		t.Fatalf("initiation must not credit the ledger, got %d", m.AvailableBalance)
	}
}

func TestInitiatePayment_RejectsBadRequests(t *testing.T) {
	repo := newStubRepo()
	active := &domain.Merchant{ID: uuid.New(), Active: true}
	inactive := &domain.Merchant{ID: uuid.New(), Active: false}
	repo.addMerchant(active)
	repo.addMerchant(inactive)
	svc := newTestService(repo, &stubGateway{}, newStubScheduler())

	cases := []domain.InitiatePaymentRequest{
		{MerchantID: active.ID, Amount: 0, Connector: "cashfree"},
		{MerchantID: active.ID, Amount: -100, Connector: "cashfree"},
		{MerchantID: active.ID, Amount: 100, Connector: "  "},
		{MerchantID: inactive.ID, Amount: 100, Connector: "cashfree"},
	}
	for i, req := range cases {
		if _, err := svc.InitiatePayment(context.Background(), req); !errors.Is(err, ErrInvalidPayment) {
			t.Errorf("case %d: expected ErrInvalidPayment, got %v", i, err)
		}
	}
}

func TestInitiatePayment_GatewayFailureLeavesNoRecord(t *testing.T) {
	repo := newStubRepo()
	merchant := &domain.Merchant{ID: uuid.New(), Active: true}
	repo.addMerchant(merchant)
	svc := newTestService(repo, &stubGateway{err: errors.New("upstream 503")}, newStubScheduler())

	_, err := svc.InitiatePayment(context.Background(), domain.InitiatePaymentRequest{
		MerchantID: merchant.ID, Amount: 100, Connector: "enpay",
	})
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("gateway failure must not persist a transaction")
	}
}

func TestVerifyTransaction_AppliesGatewayStatusOnce(t *testing.T) {
	repo := newStubRepo()
	merchant := &domain.Merchant{ID: uuid.New(), Active: true}
	repo.addMerchant(merchant)
	err := repo.CreateTransaction(context.Background(), &domain.Transaction{
		ID: uuid.New(), MerchantID: merchant.ID, GatewayReference: "gw_verify",
		Amount: 1200, Status: domain.TransactionInitiated,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	gateway := &stubGateway{status: &gatewayclient.StatusResponse{
		GatewayReference: "gw_verify", Status: "SUCCESSFUL",
	}}
	svc := newTestService(repo, gateway, newStubScheduler())

	change, err := svc.VerifyTransaction(context.Background(), "gw_verify")
	if err != nil {
		t.Fatalf("VerifyTransaction returned error: %v", err)
	}
	if !change.Applied || change.Transaction.Status != domain.TransactionSuccess {
		t.Fatalf("expected applied success transition, got %+v", change)
	}
	m, _ := repo.FindMerchantByID(context.Background(), merchant.ID)
	if m.AvailableBalance != 1200 {
		t.Fatalf("verification must credit like the webhook path, got %d", m.AvailableBalance)
	}

	// Verifying again reports the same terminal state without moving money.
	change, err = svc.VerifyTransaction(context.Background(), "gw_verify")
	if err != nil {
		t.Fatalf("second verification: %v", err)
	}
	if change.Applied {
		t.Fatalf("repeat verification must be a no-op")
	}
	m, _ = repo.FindMerchantByID(context.Background(), merchant.ID)
	if m.AvailableBalance != 1200 {
		t.Fatalf("repeat verification double-credited: %d", m.AvailableBalance)
	}
}

func TestAutoSettlementLifecycle_TimerFollowsActiveFlag(t *testing.T) {
	repo := newStubRepo()
	scheduler := newStubScheduler()
	svc := newTestService(repo, &stubGateway{}, scheduler)
	ctx := context.Background()

	created, err := svc.CreateAutoSettlement(ctx, domain.AutoSettlementConfig{
		Connector: "cashfree", RunHour: 3, RunMinute: 0, MinimumAmount: 5000, Active: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if scheduler.registered[created.ID] != 1 {
		t.Fatalf("expected one registration after create, got %d", scheduler.registered[created.ID])
	}

	// Deactivate: the timer must be cancelled.
	created.Active = false
	if _, err := svc.UpdateAutoSettlement(ctx, *created); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if scheduler.cancelled[created.ID] != 1 {
		t.Fatalf("expected cancel on deactivation, got %d", scheduler.cancelled[created.ID])
	}

	// Re-activate with a new time: registered again.
	created.Active = true
	created.RunHour = 6
	if _, err := svc.UpdateAutoSettlement(ctx, *created); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if scheduler.registered[created.ID] != 2 {
		t.Fatalf("expected re-registration, got %d", scheduler.registered[created.ID])
	}

	if _, err := svc.RunAutoSettlementNow(ctx, created.ID); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if scheduler.fired[created.ID] != 1 {
		t.Fatalf("expected one manual fire, got %d", scheduler.fired[created.ID])
	}

	if err := svc.DeleteAutoSettlement(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if scheduler.cancelled[created.ID] != 2 {
		t.Fatalf("expected cancel on delete, got %d", scheduler.cancelled[created.ID])
	}
	if _, err := svc.GetAutoSettlement(ctx, created.ID); err == nil {
		t.Fatalf("expected config gone after delete")
	}
}

func TestCreateAutoSettlement_InvalidConfigRejected(t *testing.T) {
	repo := newStubRepo()
	scheduler := newStubScheduler()
	svc := newTestService(repo, &stubGateway{}, scheduler)

	_, err := svc.CreateAutoSettlement(context.Background(), domain.AutoSettlementConfig{
		RunHour: 25, RunMinute: 0, MinimumAmount: 100, Active: true,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(scheduler.registered) != 0 || len(repo.configs) != 0 {
		t.Fatalf("invalid config must not be persisted or scheduled")
	}
}
