package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
)

// Verdict is the result of a compliance lookup
type Verdict string

const (
	VerdictClear        Verdict = "clear"
	VerdictUnsubscribed Verdict = "unsubscribed"
	VerdictSuppressed   Verdict = "suppressed"
)

// Blocked reports whether the contact must not be reached
func (v Verdict) Blocked() bool {
	return v == VerdictUnsubscribed || v == VerdictSuppressed
}

// ProgressStatus maps a blocking verdict to the absorbing contact status
func (v Verdict) ProgressStatus() models.ProgressStatus {
	if v == VerdictSuppressed {
		return models.ProgressStatusSuppressed
	}
	return models.ProgressStatusUnsubscribed
}

// ComplianceRegistry answers whether a contact is opted out or its domain suppressed
type ComplianceRegistry struct {
	repo repository.ComplianceRepository
}

func NewComplianceRegistry(repo repository.ComplianceRepository) *ComplianceRegistry {
	return &ComplianceRegistry{repo: repo}
}

// Check looks up the email first, then the domain. An empty domain is derived from the email.
func (r *ComplianceRegistry) Check(ctx context.Context, email, domain string) (Verdict, error) {
	email = models.NormalizeEmail(email)
	domain = models.NormalizeDomain(domain)
	if domain == "" {
		domain = models.EmailDomain(email)
	}

	unsubscribed, err := r.repo.IsUnsubscribed(ctx, email)
	if err != nil {
		return "", err
	}
	if unsubscribed {
		return VerdictUnsubscribed, nil
	}

	suppressed, err := r.repo.IsSuppressed(ctx, domain)
	if err != nil {
		return "", err
	}
	if suppressed {
		return VerdictSuppressed, nil
	}

	return VerdictClear, nil
}

func (r *ComplianceRegistry) IsBlocked(ctx context.Context, email, domain string) (bool, error) {
	v, err := r.Check(ctx, email, domain)
	if err != nil {
		return false, err
	}
	return v.Blocked(), nil
}

// Unsubscribe records a permanent opt-out of an address
func (r *ComplianceRegistry) Unsubscribe(ctx context.Context, email, source, reason string) error {
	email = models.NormalizeEmail(email)
	if models.EmailDomain(email) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, email)
	}
	return r.repo.AddUnsubscribe(ctx, &models.Unsubscribe{
		Email:     email,
		Source:    source,
		Reason:    reason,
		CreatedAt: utils.UTCNow(),
	})
}

// Suppress blocks every address of a domain
func (r *ComplianceRegistry) Suppress(ctx context.Context, domain, source, reason string) error {
	domain = models.NormalizeDomain(domain)
	if domain == "" || !strings.Contains(domain, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, domain)
	}
	return r.repo.AddSuppression(ctx, &models.Suppression{
		Domain:    domain,
		Source:    source,
		Reason:    reason,
		CreatedAt: utils.UTCNow(),
	})
}
