package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/amirphl/orochi-outreach/config"
	"github.com/amirphl/orochi-outreach/models"
)

// SMSRequest represents the request payload for SMS API
type SMSRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	CustomerID     *int64 `json:"customerId,omitempty"`
	RetryCount     int    `json:"retryCount"`
	Type           int    `json:"type"`
	ValidityPeriod int    `json:"validityPeriod"`
}

// SMSResponse represents individual message result from SMS API
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	CustomerID *int64 `json:"customerId,omitempty"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// Provider item statuses that mean the number itself is unreachable
var smsBouncedStatuses = map[string]bool{
	"INVALID_RECIPIENT": true,
	"BLACKLISTED":       true,
}

// SMSChannel sends one SMS per touch through the HTTP provider
type SMSChannel struct {
	config config.SMSConfig
	client *http.Client
}

func NewSMSChannel(cfg config.SMSConfig) *SMSChannel {
	return &SMSChannel{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *SMSChannel) Send(ctx context.Context, contact *models.Contact, message models.OutreachMessage, metadata map[string]string) models.DeliveryResult {
	recipient := normalizePhone(contact.Phone)
	if recipient == "" {
		return models.DeliveryResult{Err: fmt.Errorf("%w: contact %d has no phone", ErrMissingAddress, contact.ID)}
	}
	src := s.config.SourceNumber
	if message.Sender != "" {
		src = message.Sender
	}

	customerID := int64(contact.ID)
	requestBody, err := json.Marshal([]SMSRequest{{
		SrcNum:         src,
		Recipient:      recipient,
		Body:           message.Body,
		CustomerID:     &customerID,
		RetryCount:     s.config.RetryCount,
		Type:           1,
		ValidityPeriod: s.config.ValidityPeriod,
	}})
	if err != nil {
		return models.DeliveryResult{Err: fmt.Errorf("failed to marshal SMS request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint(), bytes.NewReader(requestBody))
	if err != nil {
		return models.DeliveryResult{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)
	if key := metadata["idempotency_key"]; key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.DeliveryResult{Err: fmt.Errorf("failed to send SMS request: %w", err), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("sms provider http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return models.DeliveryResult{
			Err:       err,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		// Accepted but unreadable; treat as transient so the same key is retried
		return models.DeliveryResult{Err: fmt.Errorf("failed to decode SMS response: %w", err), Retryable: true}
	}
	if len(results) == 0 {
		return models.DeliveryResult{Err: fmt.Errorf("sms provider returned no result"), Retryable: true}
	}

	r := results[0]
	ref := strconv.FormatInt(r.MessageID, 10)
	if r.StatusCode == http.StatusOK && r.Status == "ACCEPTED" {
		return models.DeliveryResult{ProviderRef: ref}
	}
	err = fmt.Errorf("%w: %s (%d) for %s", ErrProviderRejects, r.Status, r.StatusCode, r.Recipient)
	if smsBouncedStatuses[r.Status] {
		return models.DeliveryResult{ProviderRef: ref, Err: err, Bounced: true}
	}
	return models.DeliveryResult{
		ProviderRef: ref,
		Err:         err,
		Retryable:   r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500,
	}
}

// normalizePhone keeps digits and maps local 09xx numbers to the 98 prefix the provider expects
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "0098"):
		return digits[2:]
	case strings.HasPrefix(digits, "09"):
		return "98" + digits[1:]
	default:
		return digits
	}
}
