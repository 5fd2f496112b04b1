// Package services provides channel adapters, message rendering and operator tokens
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/google/uuid"
)

var (
	ErrAdapterPanic    = errors.New("channel adapter panicked")
	ErrAdapterTimeout  = errors.New("channel adapter timed out")
	ErrMissingAddress  = errors.New("contact has no address for this channel")
	ErrProviderRejects = errors.New("provider rejected the message")
)

// SafeChannel turns adapter panics and overruns into retryable results
type SafeChannel struct {
	inner   orchestrator.ChannelAdapter
	timeout time.Duration
	logger  *log.Logger
}

func NewSafeChannel(inner orchestrator.ChannelAdapter, timeout time.Duration, logger *log.Logger) *SafeChannel {
	if logger == nil {
		logger = log.Default()
	}
	return &SafeChannel{inner: inner, timeout: timeout, logger: logger}
}

func (s *SafeChannel) Send(ctx context.Context, contact *models.Contact, message models.OutreachMessage, metadata map[string]string) models.DeliveryResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan models.DeliveryResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Printf("channel: adapter panic contact=%d: %v", contact.ID, r)
				done <- models.DeliveryResult{Err: fmt.Errorf("%w: %v", ErrAdapterPanic, r), Retryable: true}
			}
		}()
		done <- s.inner.Send(ctx, contact, message, metadata)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		// The provider may still accept the message; a retry reuses the same attempt key
		return models.DeliveryResult{Err: fmt.Errorf("%w: %v", ErrAdapterTimeout, ctx.Err()), Retryable: true}
	}
}

// SentMessage is a message recorded by the proof channel
type SentMessage struct {
	ProviderRef string
	ContactID   uint
	Recipient   string
	Message     models.OutreachMessage
	Metadata    map[string]string
	SentAt      time.Time
}

// ProofChannel accepts every message without delivering it
type ProofChannel struct {
	mu     sync.Mutex
	sent   []SentMessage
	logger *log.Logger
}

func NewProofChannel(logger *log.Logger) *ProofChannel {
	return &ProofChannel{logger: logger}
}

func (p *ProofChannel) Send(ctx context.Context, contact *models.Contact, message models.OutreachMessage, metadata map[string]string) models.DeliveryResult {
	if err := ctx.Err(); err != nil {
		return models.DeliveryResult{Err: err, Retryable: true}
	}
	ref := "proof-" + uuid.NewString()
	copied := make(map[string]string, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}

	p.mu.Lock()
	p.sent = append(p.sent, SentMessage{
		ProviderRef: ref,
		ContactID:   contact.ID,
		Recipient:   contact.Email,
		Message:     message,
		Metadata:    copied,
		SentAt:      utils.UTCNow(),
	})
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Printf("proof: would send %q to %s", message.TemplateKey, contact.Email)
	}
	return models.DeliveryResult{ProviderRef: ref}
}

// Sent returns a copy of the recorded messages
func (p *ProofChannel) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.sent))
	copy(out, p.sent)
	return out
}

// Reset clears the recorded messages
func (p *ProofChannel) Reset() {
	p.mu.Lock()
	p.sent = nil
	p.mu.Unlock()
}
