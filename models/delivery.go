package models

// OutreachMessage is the rendered content of one touch
type OutreachMessage struct {
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
	TemplateKey string `json:"template_key"`
	Sender      string `json:"sender,omitempty"`
}

// DeliveryResult is what a channel adapter reports for one send
type DeliveryResult struct {
	ProviderRef string
	Err         error
	// Retryable marks Err as transient
	Retryable bool
	// Bounced means the provider accepted then rejected the address
	Bounced bool
}

// OK reports a successful send
func (r DeliveryResult) OK() bool {
	return r.Err == nil && !r.Bounced
}

// AllModels lists every persisted model in migration order
func AllModels() []any {
	return []any{
		&Campaign{},
		&CampaignControl{},
		&CampaignLease{},
		&Contact{},
		&ContactProgress{},
		&OutreachAttempt{},
		&Unsubscribe{},
		&Suppression{},
		&Reply{},
		&OrchestratorRun{},
		&CampaignDecision{},
	}
}
