package utils

import (
	"time"
)

// Orchestrator defaults
const (
	DefaultTickInterval  = time.Minute
	DefaultLeaseTTL      = 5 * time.Minute
	DefaultTickTimeout   = 20 * time.Second
	DefaultSendTimeout   = 10 * time.Second
	DefaultBatchSize     = 25
	DefaultRetryBase     = 5 * time.Minute
	DefaultMaxRetries    = 3
	DefaultDecisionCron  = "@daily"
	DefaultMinSampleSize = 50
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// OperatorTokenTTL is the lifetime of operator access tokens
	OperatorTokenTTL = 12 * time.Hour
)

// MaxErrorLength bounds stored provider error text
const MaxErrorLength = 2000
