package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
)

func newTestScheduler(t *testing.T, repo *stubRepo) *AutoSettlementScheduler {
	t.Helper()
	batcher := NewSettlementBatcher(repo, nil, testLogger(), 3)
	return NewAutoSettlementScheduler(repo, batcher, testLogger())
}

func activeConfig(minimum int64) *domain.AutoSettlementConfig {
	return &domain.AutoSettlementConfig{
		ID:            uuid.New(),
		Connector:     "cashfree",
		RunHour:       2,
		RunMinute:     30,
		MinimumAmount: minimum,
		Active:        true,
	}
}

func TestRegister_ReplacesExistingEntry(t *testing.T) {
	repo := newStubRepo()
	scheduler := newTestScheduler(t, repo)
	cfg := activeConfig(1000)

	if err := scheduler.Register(*cfg); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := scheduler.Register(*cfg); err != nil {
		t.Fatalf("re-Register failed: %v", err)
	}

	if !scheduler.Scheduled(cfg.ID) {
		t.Fatalf("expected config to be scheduled")
	}
	if entries := scheduler.cron.Entries(); len(entries) != 1 {
		t.Fatalf("re-registering must replace the entry, found %d live entries", len(entries))
	}
}

func TestRegister_RejectsInvalidConfig(t *testing.T) {
	repo := newStubRepo()
	scheduler := newTestScheduler(t, repo)
	bad := activeConfig(0) // minimum must be positive

	if err := scheduler.Register(*bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if scheduler.Scheduled(bad.ID) {
		t.Fatalf("invalid config must not be scheduled")
	}
}

func TestCancel_RemovesEntry(t *testing.T) {
	repo := newStubRepo()
	scheduler := newTestScheduler(t, repo)
	cfg := activeConfig(1000)

	if err := scheduler.Register(*cfg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	scheduler.Cancel(cfg.ID)

	if scheduler.Scheduled(cfg.ID) {
		t.Fatalf("expected entry removed")
	}
	if entries := scheduler.cron.Entries(); len(entries) != 0 {
		t.Fatalf("expected no live entries, found %d", len(entries))
	}
}

func TestFireNow_SweepsEligibleMerchants(t *testing.T) {
	repo := newStubRepo()
	eligible := &domain.Merchant{ID: uuid.New(), Active: true, AvailableBalance: 5000, UnsettledBalance: 5000}
	belowMinimum := &domain.Merchant{ID: uuid.New(), Active: true, AvailableBalance: 500, UnsettledBalance: 500}
	repo.addMerchant(eligible)
	repo.addMerchant(belowMinimum)

	cfg := activeConfig(1000)
	if err := repo.CreateAutoSettlementConfig(context.Background(), cfg); err != nil {
		t.Fatalf("create config: %v", err)
	}

	scheduler := newTestScheduler(t, repo)
	result, err := scheduler.FireNow(context.Background(), cfg.ID)
	if err != nil {
		t.Fatalf("FireNow returned error: %v", err)
	}
	if result == nil || result.Status != domain.SettlementCompleted {
		t.Fatalf("expected completed sweep, got %+v", result)
	}
	if result.TotalSettled != 5000 {
		t.Fatalf("expected full unsettled balance swept, got %d", result.TotalSettled)
	}

	gotEligible, _ := repo.FindMerchantByID(context.Background(), eligible.ID)
	if gotEligible.UnsettledBalance != 0 {
		t.Fatalf("eligible merchant not drained: %d", gotEligible.UnsettledBalance)
	}
	gotBelow, _ := repo.FindMerchantByID(context.Background(), belowMinimum.ID)
	if gotBelow.UnsettledBalance != 500 {
		t.Fatalf("below-minimum merchant must be untouched, got %d", gotBelow.UnsettledBalance)
	}

	if len(repo.runRecords) != 1 || repo.runRecords[0].status != domain.RunSuccess {
		t.Fatalf("expected one SUCCESS run record, got %+v", repo.runRecords)
	}
}

func TestFireNow_NoEligibleMerchantsRecordsSuccessfulNoOp(t *testing.T) {
	repo := newStubRepo()
	cfg := activeConfig(1000)
	if err := repo.CreateAutoSettlementConfig(context.Background(), cfg); err != nil {
		t.Fatalf("create config: %v", err)
	}

	scheduler := newTestScheduler(t, repo)
	result, err := scheduler.FireNow(context.Background(), cfg.ID)
	if err != nil {
		t.Fatalf("FireNow returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for empty sweep, got %+v", result)
	}

	if len(repo.settlements) != 0 {
		t.Fatalf("empty sweep must not create a settlement batch")
	}
	if len(repo.runRecords) != 1 || repo.runRecords[0].status != domain.RunSuccess {
		t.Fatalf("expected SUCCESS no-op record, got %+v", repo.runRecords)
	}
}

func TestFireNow_InactiveConfigIsSkipped(t *testing.T) {
	repo := newStubRepo()
	repo.addMerchant(&domain.Merchant{ID: uuid.New(), Active: true, AvailableBalance: 5000, UnsettledBalance: 5000})

	cfg := activeConfig(1000)
	cfg.Active = false
	if err := repo.CreateAutoSettlementConfig(context.Background(), cfg); err != nil {
		t.Fatalf("create config: %v", err)
	}

	scheduler := newTestScheduler(t, repo)
	result, err := scheduler.FireNow(context.Background(), cfg.ID)
	if err != nil {
		t.Fatalf("FireNow returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("inactive config must not settle, got %+v", result)
	}
	if len(repo.settlements) != 0 || len(repo.runRecords) != 0 {
		t.Fatalf("inactive config must leave no trace")
	}
}

func TestRestoreActive_RegistersOnlyActiveConfigs(t *testing.T) {
	repo := newStubRepo()
	active := activeConfig(1000)
	inactive := activeConfig(1000)
	inactive.Active = false
	_ = repo.CreateAutoSettlementConfig(context.Background(), active)
	_ = repo.CreateAutoSettlementConfig(context.Background(), inactive)

	scheduler := newTestScheduler(t, repo)
	if err := scheduler.RestoreActive(context.Background()); err != nil {
		t.Fatalf("RestoreActive failed: %v", err)
	}

	if !scheduler.Scheduled(active.ID) {
		t.Fatalf("active config should be restored")
	}
	if scheduler.Scheduled(inactive.ID) {
		t.Fatalf("inactive config must not be restored")
	}
}
