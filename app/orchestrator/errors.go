package orchestrator

import "errors"

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrCampaignNotActive  = errors.New("campaign is not active")
	ErrNoChannelAdapter   = errors.New("no channel adapter for campaign channel")
	ErrOwnerRequired      = errors.New("lease owner is required")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAttemptNotQueued   = errors.New("attempt is not queued")
	ErrContactNotLoaded   = errors.New("contact not loaded for progress row")
	ErrInvalidDecisionCfg = errors.New("invalid decision configuration")
	ErrInvalidAddress     = errors.New("invalid email address or domain")
)
