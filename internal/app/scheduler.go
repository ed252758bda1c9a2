/**
 * @description
 * Auto-settlement scheduler: an explicit service object wrapping one
 * robfig/cron instance and a registry of live entries keyed by config id.
 * Register cancels any existing entry for the id before adding a new one, so
 * a config can never accumulate duplicate timers across updates and
 * re-activations. FireNow runs the same job path synchronously, bypassing the
 * timer.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
	"github.com/robfig/cron/v3"
)

const schedulerRunTimeout = 5 * time.Minute

// SettlementExecutor is the batcher surface the scheduler depends on.
type SettlementExecutor interface {
	Settle(ctx context.Context, selections []domain.SettlementSelection, trigger domain.SettlementTrigger) (*domain.SettlementResult, error)
}

// AutoSettlementScheduler owns the recurring settlement timers.
type AutoSettlementScheduler struct {
	cron    *cron.Cron
	repo    store.Repository
	batcher SettlementExecutor
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

// NewAutoSettlementScheduler creates the scheduler. Call Start to begin
// firing registered entries.
func NewAutoSettlementScheduler(repo store.Repository, batcher SettlementExecutor, logger *slog.Logger) *AutoSettlementScheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &AutoSettlementScheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger))),
		repo:    repo,
		batcher: batcher,
		logger:  logger,
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Start begins the cron loop.
func (s *AutoSettlementScheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop; the returned context is done once in-flight jobs
// finish.
func (s *AutoSettlementScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RestoreActive re-registers every active config, used at boot so schedules
// survive restarts.
func (s *AutoSettlementScheduler) RestoreActive(ctx context.Context) error {
	configs, err := s.repo.ListAutoSettlementConfigs(ctx, true)
	if err != nil {
		return fmt.Errorf("list active auto-settlement configs: %w", err)
	}
	for _, cfg := range configs {
		if err := s.Register(cfg); err != nil {
			s.logger.Error("failed to restore auto-settlement schedule", "config_id", cfg.ID, "err", err)
			continue
		}
		s.logger.Info("restored auto-settlement schedule", "config_id", cfg.ID, "spec", cfg.CronSpec())
	}
	return nil
}

// Register installs the recurring timer for a config, replacing any existing
// entry for the same id.
func (s *AutoSettlementScheduler) Register(cfg domain.AutoSettlementConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[cfg.ID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, cfg.ID)
	}

	configID := cfg.ID
	entryID, err := s.cron.AddFunc(cfg.CronSpec(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), schedulerRunTimeout)
		defer cancel()
		if _, err := s.run(ctx, configID); err != nil {
			s.logger.Error("scheduled settlement run failed", "config_id", configID, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule config %s: %w", cfg.ID, err)
	}
	s.entries[cfg.ID] = entryID
	return nil
}

// Cancel removes the timer for a config id, if one exists.
func (s *AutoSettlementScheduler) Cancel(configID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[configID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, configID)
	}
}

// Scheduled reports whether a live timer exists for the config id.
func (s *AutoSettlementScheduler) Scheduled(configID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[configID]
	return ok
}

// FireNow executes the settlement sweep for a config synchronously.
func (s *AutoSettlementScheduler) FireNow(ctx context.Context, configID uuid.UUID) (*domain.SettlementResult, error) {
	return s.run(ctx, configID)
}

// run is the single execution path for both timer fires and manual triggers:
// select eligible merchants, settle their full unsettled balance as one
// batch, and record the aggregate outcome on the config.
func (s *AutoSettlementScheduler) run(ctx context.Context, configID uuid.UUID) (*domain.SettlementResult, error) {
	cfg, err := s.repo.FindAutoSettlementConfigByID(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load auto-settlement config: %w", err)
	}
	if !cfg.Active {
		s.logger.Info("skipping run for inactive auto-settlement config", "config_id", configID)
		return nil, nil
	}

	ranAt := time.Now().UTC()
	merchants, err := s.repo.ListEligibleMerchants(ctx, cfg.MinimumAmount)
	if err != nil {
		s.record(ctx, configID, domain.RunFailed, fmt.Sprintf("merchant selection failed: %v", err), ranAt)
		return nil, fmt.Errorf("list eligible merchants: %w", err)
	}

	if len(merchants) == 0 {
		s.record(ctx, configID, domain.RunSuccess,
			fmt.Sprintf("no merchants with unsettled balance >= %d; nothing to settle", cfg.MinimumAmount), ranAt)
		return nil, nil
	}

	selections := make([]domain.SettlementSelection, 0, len(merchants))
	for _, m := range merchants {
		selections = append(selections, domain.SettlementSelection{
			MerchantID: m.ID,
			Amount:     m.UnsettledBalance,
		})
	}

	result, err := s.batcher.Settle(ctx, selections, domain.TriggerScheduled)
	if err != nil && result == nil {
		s.record(ctx, configID, domain.RunFailed, fmt.Sprintf("settlement failed: %v", err), ranAt)
		return nil, err
	}

	status, message := summarizeRun(result)
	s.record(ctx, configID, status, message, ranAt)
	return result, err
}

func summarizeRun(result *domain.SettlementResult) (domain.RunStatus, string) {
	message := fmt.Sprintf("batch %s: settled %d of %d paise across %d merchants, %d failures",
		result.BatchID, result.TotalSettled, result.TotalRequested,
		len(result.Settled), len(result.FailedSettlements))
	switch result.Status {
	case domain.SettlementCompleted:
		return domain.RunSuccess, message
	case domain.SettlementPartial:
		return domain.RunPartial, message
	default:
		return domain.RunFailed, message
	}
}

// record persists the run outcome together with the next fire time from the
// live cron entry.
func (s *AutoSettlementScheduler) record(ctx context.Context, configID uuid.UUID, status domain.RunStatus, message string, ranAt time.Time) {
	var nextRunAt *time.Time
	s.mu.Lock()
	if entryID, ok := s.entries[configID]; ok {
		if next := s.cron.Entry(entryID).Next; !next.IsZero() {
			nextRunAt = &next
		}
	}
	s.mu.Unlock()

	if err := s.repo.RecordAutoSettlementRun(ctx, configID, status, message, ranAt, nextRunAt); err != nil {
		if !errors.Is(err, store.ErrAutoSettlementNotFound) {
			s.logger.Error("failed to record auto-settlement run", "config_id", configID, "err", err)
		}
	}
}
