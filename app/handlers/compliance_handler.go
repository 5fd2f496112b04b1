package handlers

import (
	"log"

	"github.com/amirphl/orochi-outreach/app/dto"
	businessflow "github.com/amirphl/orochi-outreach/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ComplianceHandlerInterface defines the intake endpoints
type ComplianceHandlerInterface interface {
	Unsubscribe(c fiber.Ctx) error
	Suppress(c fiber.Ctx) error
	RecordReply(c fiber.Ctx) error
}

// ComplianceHandler handles opt-out, domain block and reply intake
type ComplianceHandler struct {
	baseHandler
	flow businessflow.ComplianceFlow
}

func NewComplianceHandler(flow businessflow.ComplianceFlow) *ComplianceHandler {
	return &ComplianceHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// Unsubscribe records an opt-out for an email address across all campaigns
// @Summary Record Unsubscribe
// @Tags Admin Compliance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UnsubscribeRequest true "Unsubscribe"
// @Success 201 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/unsubscribes [post]
func (h *ComplianceHandler) Unsubscribe(c fiber.Ctx) error {
	var req dto.UnsubscribeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if !h.validate(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/unsubscribes")
	defer cancel()

	if err := h.flow.Unsubscribe(ctx, &req); err != nil {
		log.Println("Unsubscribe failed:", err)
		return h.businessErrorResponse(c, err, "Failed to record unsubscribe", "UNSUBSCRIBE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Unsubscribe recorded", nil)
}

// Suppress blocks a recipient domain across all campaigns
// @Summary Record Domain Suppression
// @Tags Admin Compliance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SuppressionRequest true "Suppression"
// @Success 201 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/suppressions [post]
func (h *ComplianceHandler) Suppress(c fiber.Ctx) error {
	var req dto.SuppressionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if !h.validate(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/suppressions")
	defer cancel()

	if err := h.flow.Suppress(ctx, &req); err != nil {
		log.Println("Suppress failed:", err)
		return h.businessErrorResponse(c, err, "Failed to record suppression", "SUPPRESS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Suppression recorded", nil)
}

// RecordReply records an inbound reply and takes the contact out of the sequence
// @Summary Record Reply
// @Tags Admin Compliance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.ReplyRequest true "Reply"
// @Success 201 {object} dto.APIResponse{data=dto.ReplyResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/campaigns/{id}/replies [post]
func (h *ComplianceHandler) RecordReply(c fiber.Ctx) error {
	campaignID, err := parseCampaignID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	var req dto.ReplyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if !h.validate(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/campaigns/:id/replies")
	defer cancel()

	res, err := h.flow.RecordReply(ctx, campaignID, &req)
	if err != nil {
		log.Println("Record reply failed:", err)
		return h.businessErrorResponse(c, err, "Failed to record reply", "REPLY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Reply recorded", res)
}
