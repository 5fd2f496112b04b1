package models

import (
	"time"

	"github.com/google/uuid"
)

// RunOutcome describes how a tick ended
type RunOutcome string

const (
	RunOutcomeCompleted      RunOutcome = "COMPLETED"
	RunOutcomePaused         RunOutcome = "PAUSED"
	RunOutcomeKilled         RunOutcome = "KILLED"
	RunOutcomeQuotaExhausted RunOutcome = "QUOTA_EXHAUSTED"
	RunOutcomeLeaseDenied    RunOutcome = "LEASE_DENIED"
)

// OrchestratorRun summarises one tick of one campaign
type OrchestratorRun struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RunID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_orchestrator_runs_run_id" json:"run_id"`
	CampaignID uint       `gorm:"not null;index:idx_orchestrator_runs_campaign_started,priority:1" json:"campaign_id"`
	Owner      string     `gorm:"size:255;not null" json:"owner"`
	Outcome    RunOutcome `gorm:"size:32;not null" json:"outcome"`
	StartedAt  time.Time  `gorm:"not null;index:idx_orchestrator_runs_campaign_started,priority:2" json:"started_at"`
	FinishedAt time.Time  `gorm:"not null" json:"finished_at"`
	Attempted  int        `gorm:"not null;default:0" json:"attempted"`
	Succeeded  int        `gorm:"not null;default:0" json:"succeeded"`
	Failed     int        `gorm:"not null;default:0" json:"failed"`
	Skipped    int        `gorm:"not null;default:0" json:"skipped"`
	Duplicates int        `gorm:"not null;default:0" json:"duplicates"`
	Blocked    int        `gorm:"not null;default:0" json:"blocked"`
	TimedOut   bool       `gorm:"not null;default:false" json:"timed_out"`
}

func (OrchestratorRun) TableName() string { return "orchestrator_runs" }

// Persisted reports whether the run produced a stored summary
func (r *OrchestratorRun) Persisted() bool {
	return r != nil && r.ID != 0
}
