package orchestrator

import (
	"time"

	"github.com/amirphl/orochi-outreach/models"
)

// SelectionKind tells the engine what to do with a contact
type SelectionKind int

const (
	StepReady SelectionKind = iota
	SequenceExhausted
	InCooldown
)

func (k SelectionKind) String() string {
	switch k {
	case StepReady:
		return "ready"
	case SequenceExhausted:
		return "exhausted"
	case InCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Selection is the next step for a contact, or why there is none
type Selection struct {
	Kind      SelectionKind
	StepIndex int
	Step      models.SequenceStep
	// ReadyAt is set for InCooldown
	ReadyAt time.Time
}

// Selector picks the next sequence step. It has no side effects.
type Selector struct{}

func (Selector) NextStep(progress *models.ContactProgress, campaign *models.Campaign, now time.Time) Selection {
	idx := progress.StepIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(campaign.Steps) || (campaign.MaxTouches > 0 && idx >= campaign.MaxTouches) {
		return Selection{Kind: SequenceExhausted, StepIndex: idx}
	}

	if idx > 0 && progress.LastTouchAt != nil {
		readyAt := progress.LastTouchAt.Add(campaign.WaitBefore(idx))
		if now.Before(readyAt) {
			return Selection{Kind: InCooldown, StepIndex: idx, ReadyAt: readyAt}
		}
	}

	return Selection{Kind: StepReady, StepIndex: idx, Step: campaign.Steps[idx]}
}
