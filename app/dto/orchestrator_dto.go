package dto

import "time"

// OperatorLoginRequest represents the operator login payload
type OperatorLoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// OperatorLoginResponse carries the issued access token
type OperatorLoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CampaignControlResponse represents the live control flags of a campaign
type CampaignControlResponse struct {
	CampaignID uint      `json:"campaign_id"`
	Paused     bool      `json:"paused"`
	Killed     bool      `json:"killed"`
	DailyQuota int       `json:"daily_quota"`
	Reason     string    `json:"reason,omitempty"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// UpdateCampaignControlRequest changes only the fields that are present
type UpdateCampaignControlRequest struct {
	Paused     *bool  `json:"paused,omitempty"`
	Killed     *bool  `json:"killed,omitempty"`
	DailyQuota *int   `json:"daily_quota,omitempty" validate:"omitempty,min=0,max=1000000"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}

// TickRequest represents a manual tick
type TickRequest struct {
	// KeepLease keeps the lease after the tick instead of releasing it
	KeepLease bool `json:"keep_lease,omitempty"`
}

// OrchestratorRunResponse represents one tick summary
type OrchestratorRunResponse struct {
	RunID      string    `json:"run_id"`
	CampaignID uint      `json:"campaign_id"`
	Owner      string    `json:"owner"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Blocked    int       `json:"blocked"`
	TimedOut   bool      `json:"timed_out"`
}

// ListRunsRequest holds paging for run summaries
type ListRunsRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=200"`
}

// ListRunsResponse represents a page of run summaries
type ListRunsResponse struct {
	Items    []OrchestratorRunResponse `json:"items"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

// CampaignDecisionResponse represents one decision loop verdict
type CampaignDecisionResponse struct {
	CampaignID    uint      `json:"campaign_id"`
	Action        string    `json:"action"`
	Reason        string    `json:"reason"`
	SentCount     int64     `json:"sent_count"`
	BounceCount   int64     `json:"bounce_count"`
	ReplyCount    int64     `json:"reply_count"`
	PositiveCount int64     `json:"positive_count"`
	ReplyRate     float64   `json:"reply_rate"`
	PositiveRate  float64   `json:"positive_rate"`
	BounceRate    float64   `json:"bounce_rate"`
	CreatedAt     time.Time `json:"created_at"`
}

// UnsubscribeRequest represents an opt-out intake
type UnsubscribeRequest struct {
	Email  string `json:"email" validate:"required,email,max=320"`
	Source string `json:"source,omitempty" validate:"max=64"`
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

// SuppressionRequest represents a domain block intake
type SuppressionRequest struct {
	Domain string `json:"domain" validate:"required,fqdn,max=255"`
	Source string `json:"source,omitempty" validate:"max=64"`
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

// ReplyRequest represents an inbound reply intake
type ReplyRequest struct {
	Email      string     `json:"email" validate:"required,email,max=320"`
	Positive   bool       `json:"positive"`
	Note       string     `json:"note,omitempty" validate:"max=2000"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// ReplyResponse reports the recorded reply
type ReplyResponse struct {
	ReplyID    uint   `json:"reply_id"`
	CampaignID uint   `json:"campaign_id"`
	ContactID  uint   `json:"contact_id"`
	Status     string `json:"status"`
}

// EnrollContactsResponse reports a contact sheet upload
type EnrollContactsResponse struct {
	Rows     int   `json:"rows"`
	Invalid  int   `json:"invalid"`
	Contacts int   `json:"contacts"`
	Enrolled int64 `json:"enrolled"`
}
