// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/orochi-outreach/app/dto"
	businessflow "github.com/amirphl/orochi-outreach/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

type requestContextKey string

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate writes a 400 response and reports false when the request struct fails validation
func (h *baseHandler) validate(c fiber.Ctx, req any) bool {
	err := h.validator.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		return false
	}
	validationErrors := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, getValidationErrorMessage(fe))
	}
	_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	return false
}

// createRequestContext creates a context with request-scoped values and a timeout
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, requestContextKey("request_id"), c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, requestContextKey("ip_address"), c.IP())
	ctx = context.WithValue(ctx, requestContextKey("endpoint"), endpoint)
	return ctx, cancel
}

// businessErrorResponse maps a business error onto an HTTP status by its code
func (h *baseHandler) businessErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}

	status := fiber.StatusInternalServerError
	switch {
	case businessflow.IsCampaignNotFound(err), businessflow.IsContactNotFound(err):
		status = fiber.StatusNotFound
	case businessflow.IsContactNotEnrolled(err):
		status = fiber.StatusConflict
	case businessflow.IsOperatorNotFound(err), businessflow.IsIncorrectPassword(err):
		status = fiber.StatusUnauthorized
	default:
		switch be.Code {
		case "CONTROL_UPDATE_REQUIRED", "INVALID_PAGINATION", "INVALID_EMAIL", "INVALID_DOMAIN", "INVALID_SHEET", "CAMPAIGN_FILE_EMPTY":
			status = fiber.StatusBadRequest
		case "CAMPAIGN_NOT_ACTIVE":
			status = fiber.StatusConflict
		}
	}

	if status >= fiber.StatusInternalServerError {
		return h.ErrorResponse(c, status, fallbackMessage, be.Code, nil)
	}
	return h.ErrorResponse(c, status, be.Message, be.Code, nil)
}

func parseCampaignID(c fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid campaign id %q", raw)
	}
	return uint(id), nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "fqdn":
		return err.Field() + " must be a fully qualified domain name"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
