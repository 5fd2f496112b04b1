package handlers

import (
	"log"
	"mime/multipart"
	"time"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/middleware"
	businessflow "github.com/amirphl/orochi-outreach/business_flow"
	"github.com/gofiber/fiber/v3"
)

// A tick may hold the request for up to the orchestrator tick timeout
const tickRequestTimeout = 2 * time.Minute

// CampaignAdminHandlerInterface defines the operator endpoints of a campaign
type CampaignAdminHandlerInterface interface {
	GetControl(c fiber.Ctx) error
	UpdateControl(c fiber.Ctx) error
	Tick(c fiber.Ctx) error
	Evaluate(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
	ExportAttempts(c fiber.Ctx) error
	EnrollContacts(c fiber.Ctx) error
}

// CampaignAdminHandler handles operator requests on campaigns
type CampaignAdminHandler struct {
	baseHandler
	controlFlow    businessflow.CampaignControlFlow
	enrollmentFlow businessflow.EnrollmentFlow
}

func NewCampaignAdminHandler(controlFlow businessflow.CampaignControlFlow, enrollmentFlow businessflow.EnrollmentFlow) *CampaignAdminHandler {
	return &CampaignAdminHandler{
		baseHandler:    newBaseHandler(),
		controlFlow:    controlFlow,
		enrollmentFlow: enrollmentFlow,
	}
}

// GetControl returns the control flags of a campaign
// @Summary Get Campaign Control
// @Tags Admin Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignControlResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/control [get]
func (h *CampaignAdminHandler) GetControl(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/campaigns/:id/control")
	defer cancel()

	res, err := h.controlFlow.GetControl(ctx, campaignID)
	if err != nil {
		log.Println("Get campaign control failed:", err)
		return h.businessErrorResponse(c, err, "Failed to get campaign control", "GET_CONTROL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign control retrieved", res)
}

// UpdateControl pauses, resumes, kills or re-quotas a campaign
// @Summary Update Campaign Control
// @Description Only the fields present in the body change. A killed campaign stops sending at the next contact boundary.
// @Tags Admin Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.UpdateCampaignControlRequest true "Control update"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignControlResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/control [put]
func (h *CampaignAdminHandler) UpdateControl(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	var req dto.UpdateCampaignControlRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if !h.validate(c, &req) {
		return nil
	}

	operator, _ := middleware.GetOperatorFromContext(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/campaigns/:id/control")
	defer cancel()

	res, err := h.controlFlow.UpdateControl(ctx, campaignID, &req, operator)
	if err != nil {
		log.Println("Update campaign control failed:", err)
		return h.businessErrorResponse(c, err, "Failed to update campaign control", "UPDATE_CONTROL_FAILED")
	}
	log.Printf("campaign control updated: campaign=%d operator=%s paused=%t killed=%t quota=%d", campaignID, operator, res.Paused, res.Killed, res.DailyQuota)
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign control updated", res)
}

// Tick runs one orchestrator tick for a campaign
// @Summary Run Campaign Tick
// @Tags Admin Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.TickRequest false "Tick options"
// @Success 200 {object} dto.APIResponse{data=dto.OrchestratorRunResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/tick [post]
func (h *CampaignAdminHandler) Tick(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	var req dto.TickRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/campaigns/:id/tick", tickRequestTimeout)
	defer cancel()

	res, err := h.controlFlow.Tick(ctx, campaignID, &req)
	if err != nil {
		log.Println("Campaign tick failed:", err)
		return h.businessErrorResponse(c, err, "Failed to run campaign tick", "TICK_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tick finished", res)
}

// Evaluate runs the decision loop for a campaign
// @Summary Evaluate Campaign
// @Description Computes reply and bounce rates over the ledger and pauses the campaign when it underperforms
// @Tags Admin Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDecisionResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/evaluate [post]
func (h *CampaignAdminHandler) Evaluate(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/campaigns/:id/evaluate")
	defer cancel()

	res, err := h.controlFlow.Evaluate(ctx, campaignID)
	if err != nil {
		log.Println("Campaign evaluate failed:", err)
		return h.businessErrorResponse(c, err, "Failed to evaluate campaign", "EVALUATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign evaluated", res)
}

// ListRuns lists tick summaries of a campaign, newest first
// @Summary List Campaign Runs
// @Tags Admin Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 200)"
// @Success 200 {object} dto.APIResponse{data=dto.ListRunsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/runs [get]
func (h *CampaignAdminHandler) ListRuns(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	var req dto.ListRunsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if !h.validate(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/campaigns/:id/runs")
	defer cancel()

	res, err := h.controlFlow.ListRuns(ctx, campaignID, &req)
	if err != nil {
		log.Println("List campaign runs failed:", err)
		return h.businessErrorResponse(c, err, "Failed to list runs", "LIST_RUNS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Runs retrieved", res)
}

// ExportAttempts downloads the attempt ledger of a campaign
// @Summary Export Campaign Attempts
// @Tags Admin Campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {file} file "XLSX file"
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/attempts/export [get]
func (h *CampaignAdminHandler) ExportAttempts(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/campaigns/:id/attempts/export", 60*time.Second)
	defer cancel()

	filename, data, err := h.controlFlow.ExportAttempts(ctx, campaignID)
	if err != nil {
		log.Println("Export campaign attempts failed:", err)
		return h.businessErrorResponse(c, err, "Failed to export attempts", "EXPORT_FAILED")
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// EnrollContacts uploads an xlsx sheet of contacts into a campaign
// @Summary Enroll Contacts
// @Description First sheet, header row with email and optionally phone, first_name, last_name, company. Other columns become attributes.
// @Tags Admin Campaigns
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param file formData file true "XLSX file"
// @Success 201 {object} dto.APIResponse{data=dto.EnrollContactsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/contacts [post]
func (h *CampaignAdminHandler) EnrollContacts(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_REQUEST", nil)
	}
	fh, err := openFormFile(fileHeader)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer fh.Close()

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/campaigns/:id/contacts", 5*time.Minute)
	defer cancel()

	res, err := h.enrollmentFlow.EnrollContacts(ctx, campaignID, fh)
	if err != nil {
		log.Println("Enroll contacts failed:", err)
		return h.businessErrorResponse(c, err, "Failed to enroll contacts", "ENROLL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Contacts enrolled", dto.EnrollContactsResponse{
		Rows:     res.Rows,
		Invalid:  res.Invalid,
		Contacts: res.Contacts,
		Enrolled: res.Enrolled,
	})
}

func openFormFile(fh *multipart.FileHeader) (multipart.File, error) {
	return fh.Open()
}
