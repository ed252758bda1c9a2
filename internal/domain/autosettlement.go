/**
 * @description
 * Auto-settlement configuration: an admin-managed schedule that sweeps every
 * merchant whose unsettled balance has reached a threshold into a settlement
 * batch at a fixed daily time.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus summarizes the outcome of one scheduled or manual fire.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// AutoSettlementConfig drives the scheduler. While Active, exactly one cron
// entry exists for the config id; deactivating or deleting the config cancels
// the entry before the next fire.
type AutoSettlementConfig struct {
	ID             uuid.UUID  `json:"id"`
	Connector      string     `json:"connector"`
	AccountRef     string     `json:"account_ref"`
	RunHour        int        `json:"run_hour"`       // 0-23, daily fire time
	RunMinute      int        `json:"run_minute"`     // 0-59
	MinimumAmount  int64      `json:"minimum_amount"` // in paise
	Active         bool       `json:"active"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus  *RunStatus `json:"last_run_status,omitempty"`
	LastRunMessage *string    `json:"last_run_message,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CronSpec renders the daily fire time as a robfig/cron expression.
func (c AutoSettlementConfig) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", c.RunMinute, c.RunHour)
}

// Validate rejects configs that cannot be scheduled.
func (c AutoSettlementConfig) Validate() error {
	if c.RunHour < 0 || c.RunHour > 23 {
		return fmt.Errorf("run_hour must be within 0-23, got %d", c.RunHour)
	}
	if c.RunMinute < 0 || c.RunMinute > 59 {
		return fmt.Errorf("run_minute must be within 0-59, got %d", c.RunMinute)
	}
	if c.MinimumAmount <= 0 {
		return fmt.Errorf("minimum_amount must be positive, got %d", c.MinimumAmount)
	}
	return nil
}
