package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/amirphl/orochi-outreach/models"
)

var ErrStepOutOfRange = errors.New("sequence step out of range")

// TemplateData is what step templates can reference
type TemplateData struct {
	FirstName  string
	LastName   string
	Company    string
	Email      string
	Domain     string
	Campaign   string
	Attributes map[string]any
}

// TemplateMessageSource renders step subject and body as text templates and appends the opt-out footer
type TemplateMessageSource struct{}

func NewTemplateMessageSource() *TemplateMessageSource {
	return &TemplateMessageSource{}
}

func (TemplateMessageSource) Render(ctx context.Context, campaign *models.Campaign, contact *models.Contact, stepIndex int) (models.OutreachMessage, error) {
	if stepIndex < 0 || stepIndex >= len(campaign.Steps) {
		return models.OutreachMessage{}, fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, stepIndex, len(campaign.Steps))
	}
	step := campaign.Steps[stepIndex]

	data := TemplateData{
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Company:   contact.Company,
		Email:     contact.Email,
		Domain:    contact.Domain,
		Campaign:  campaign.Name,
	}
	if len(contact.Attributes) > 0 {
		if err := json.Unmarshal(contact.Attributes, &data.Attributes); err != nil {
			return models.OutreachMessage{}, fmt.Errorf("decode attributes of contact %d: %w", contact.ID, err)
		}
	}

	subject, err := renderText(step.Key+".subject", step.Subject, data)
	if err != nil {
		return models.OutreachMessage{}, err
	}
	body, err := renderText(step.Key+".body", step.Body, data)
	if err != nil {
		return models.OutreachMessage{}, err
	}
	if footer := strings.TrimSpace(campaign.OptOutFooter); footer != "" {
		footer, err = renderText(step.Key+".footer", footer, data)
		if err != nil {
			return models.OutreachMessage{}, err
		}
		body = strings.TrimRight(body, "\n") + "\n\n" + footer
	}

	return models.OutreachMessage{
		Subject:     strings.TrimSpace(subject),
		Body:        body,
		TemplateKey: step.Key,
		Sender:      campaign.Sender,
	}, nil
}

func renderText(name, text string, data TemplateData) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}
