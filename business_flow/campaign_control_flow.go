package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/xuri/excelize/v2"
)

const exportChunkSize = 1000

// CampaignControlFlow exposes the operator controls of a campaign
type CampaignControlFlow interface {
	GetControl(ctx context.Context, campaignID uint) (*dto.CampaignControlResponse, error)
	UpdateControl(ctx context.Context, campaignID uint, req *dto.UpdateCampaignControlRequest, operator string) (*dto.CampaignControlResponse, error)
	Tick(ctx context.Context, campaignID uint, req *dto.TickRequest) (*dto.OrchestratorRunResponse, error)
	Evaluate(ctx context.Context, campaignID uint) (*dto.CampaignDecisionResponse, error)
	ListRuns(ctx context.Context, campaignID uint, req *dto.ListRunsRequest) (*dto.ListRunsResponse, error)
	ExportAttempts(ctx context.Context, campaignID uint) (string, []byte, error)
}

// CampaignControlFlowImpl implements CampaignControlFlow
type CampaignControlFlowImpl struct {
	campaignRepo repository.CampaignRepository
	controlRepo  repository.CampaignControlRepository
	runRepo      repository.OrchestratorRunRepository
	attemptRepo  repository.OutreachAttemptRepository
	ticker       CampaignTicker
	evaluator    CampaignEvaluator
}

func NewCampaignControlFlow(
	campaignRepo repository.CampaignRepository,
	controlRepo repository.CampaignControlRepository,
	runRepo repository.OrchestratorRunRepository,
	attemptRepo repository.OutreachAttemptRepository,
	ticker CampaignTicker,
	evaluator CampaignEvaluator,
) CampaignControlFlow {
	return &CampaignControlFlowImpl{
		campaignRepo: campaignRepo,
		controlRepo:  controlRepo,
		runRepo:      runRepo,
		attemptRepo:  attemptRepo,
		ticker:       ticker,
		evaluator:    evaluator,
	}
}

func (f *CampaignControlFlowImpl) requireCampaign(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessErrorf("CAMPAIGN_NOT_FOUND", "Campaign %d not found", ErrCampaignNotFound, campaignID)
	}
	return campaign, nil
}

func (f *CampaignControlFlowImpl) GetControl(ctx context.Context, campaignID uint) (*dto.CampaignControlResponse, error) {
	if _, err := f.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	control, err := f.controlRepo.Get(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CONTROL_LOOKUP_FAILED", "Failed to read campaign control", err)
	}
	return ToCampaignControlDTO(control), nil
}

func (f *CampaignControlFlowImpl) UpdateControl(ctx context.Context, campaignID uint, req *dto.UpdateCampaignControlRequest, operator string) (*dto.CampaignControlResponse, error) {
	if req == nil || (req.Paused == nil && req.Killed == nil && req.DailyQuota == nil) {
		return nil, NewBusinessError("CONTROL_UPDATE_REQUIRED", "At least one of paused, killed or daily_quota is required", ErrCampaignUpdateMissing)
	}
	if _, err := f.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	control, err := f.controlRepo.Get(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CONTROL_LOOKUP_FAILED", "Failed to read campaign control", err)
	}
	if req.Paused != nil {
		control.Paused = *req.Paused
	}
	if req.Killed != nil {
		control.Killed = *req.Killed
	}
	if req.DailyQuota != nil {
		control.DailyQuota = *req.DailyQuota
	}
	control.Reason = req.Reason
	control.UpdatedBy = operator
	control.UpdatedAt = utils.UTCNow()

	if err := f.controlRepo.Upsert(ctx, control); err != nil {
		return nil, NewBusinessError("CONTROL_UPDATE_FAILED", "Failed to update campaign control", err)
	}
	return ToCampaignControlDTO(control), nil
}

func (f *CampaignControlFlowImpl) Tick(ctx context.Context, campaignID uint, req *dto.TickRequest) (*dto.OrchestratorRunResponse, error) {
	if _, err := f.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	keep := req != nil && req.KeepLease
	run, err := f.ticker.Tick(ctx, campaignID, orchestrator.TickOptions{ReleaseLease: !keep})
	if err != nil {
		if errors.Is(err, orchestrator.ErrCampaignNotActive) {
			return nil, NewBusinessError("CAMPAIGN_NOT_ACTIVE", "Campaign is not active", err)
		}
		return nil, NewBusinessError("TICK_FAILED", "Failed to run campaign tick", err)
	}
	return ToOrchestratorRunDTO(run), nil
}

func (f *CampaignControlFlowImpl) Evaluate(ctx context.Context, campaignID uint) (*dto.CampaignDecisionResponse, error) {
	if _, err := f.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	decision, err := f.evaluator.Evaluate(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_FAILED", "Failed to evaluate campaign", err)
	}
	return ToCampaignDecisionDTO(decision), nil
}

func (f *CampaignControlFlowImpl) ListRuns(ctx context.Context, campaignID uint, req *dto.ListRunsRequest) (*dto.ListRunsResponse, error) {
	if req == nil {
		req = &dto.ListRunsRequest{}
	}
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}
	if _, err := f.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	runs, err := f.runRepo.ListByCampaign(ctx, campaignID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_RUNS_FAILED", "Failed to list runs", err)
	}
	items := make([]dto.OrchestratorRunResponse, 0, len(runs))
	for _, r := range runs {
		items = append(items, *ToOrchestratorRunDTO(r))
	}
	return &dto.ListRunsResponse{Items: items, Page: page, PageSize: pageSize}, nil
}

// ExportAttempts writes the ledger of a campaign into an xlsx workbook
func (f *CampaignControlFlowImpl) ExportAttempts(ctx context.Context, campaignID uint) (string, []byte, error) {
	campaign, err := f.requireCampaign(ctx, campaignID)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := sanitizeSheetName(campaign.Name)
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"id", "idempotency_key", "contact_id", "step_index", "step_key", "status", "retry_count", "max_retries", "next_retry_at", "provider_ref", "last_error", "created_at", "updated_at", "completed_at"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	row := 2
	for offset := 0; ; offset += exportChunkSize {
		attempts, err := f.attemptRepo.ListByCampaign(ctx, campaignID, exportChunkSize, offset)
		if err != nil {
			return "", nil, NewBusinessError("FETCH_ATTEMPTS_FAILED", "Failed to fetch attempts", err)
		}
		for _, a := range attempts {
			record := []any{
				a.ID,
				a.IdempotencyKey,
				a.ContactID,
				a.StepIndex,
				a.StepKey,
				string(a.Status),
				a.RetryCount,
				a.MaxRetries,
				formatTimePtr(a.NextRetryAt),
				derefString(a.ProviderRef),
				derefString(a.LastError),
				a.CreatedAt.UTC().Format(time.RFC3339),
				a.UpdatedAt.UTC().Format(time.RFC3339),
				formatTimePtr(a.CompletedAt),
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := xl.SetSheetRow(sheet, cell, &record); err != nil {
				return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
			}
			row++
		}
		if len(attempts) < exportChunkSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("campaign_%s_attempts.xlsx", strconv.FormatUint(uint64(campaignID), 10))
	return filename, buf.Bytes(), nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
