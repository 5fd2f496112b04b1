package businessflow

import (
	"context"

	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// CampaignTicker runs one tick of a campaign
type CampaignTicker interface {
	Tick(ctx context.Context, campaignID uint, opts orchestrator.TickOptions) (*models.OrchestratorRun, error)
}

// CampaignEvaluator runs the decision loop for a campaign
type CampaignEvaluator interface {
	Evaluate(ctx context.Context, campaignID uint) (*models.CampaignDecision, error)
}

// normalizePage applies paging defaults and bounds
func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}
