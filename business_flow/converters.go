package businessflow

import (
	"strings"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/models"
)

func ToCampaignControlDTO(c *models.CampaignControl) *dto.CampaignControlResponse {
	return &dto.CampaignControlResponse{
		CampaignID: c.CampaignID,
		Paused:     c.Paused,
		Killed:     c.Killed,
		DailyQuota: c.DailyQuota,
		Reason:     c.Reason,
		UpdatedBy:  c.UpdatedBy,
		UpdatedAt:  c.UpdatedAt,
	}
}

func ToOrchestratorRunDTO(r *models.OrchestratorRun) *dto.OrchestratorRunResponse {
	return &dto.OrchestratorRunResponse{
		RunID:      r.RunID.String(),
		CampaignID: r.CampaignID,
		Owner:      r.Owner,
		Outcome:    string(r.Outcome),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Attempted:  r.Attempted,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Duplicates: r.Duplicates,
		Blocked:    r.Blocked,
		TimedOut:   r.TimedOut,
	}
}

func ToCampaignDecisionDTO(d *models.CampaignDecision) *dto.CampaignDecisionResponse {
	return &dto.CampaignDecisionResponse{
		CampaignID:    d.CampaignID,
		Action:        string(d.Action),
		Reason:        d.Reason,
		SentCount:     d.SentCount,
		BounceCount:   d.BounceCount,
		ReplyCount:    d.ReplyCount,
		PositiveCount: d.PositiveCount,
		ReplyRate:     d.ReplyRate,
		PositiveRate:  d.PositiveRate,
		BounceRate:    d.BounceRate,
		CreatedAt:     d.CreatedAt,
	}
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if len(safe) > 31 {
		safe = safe[:31]
	}
	if safe == "" {
		return "Sheet"
	}
	return safe
}
