package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/orochi-outreach/config"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the part of the SES v2 client the email channel uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESChannel sends email touches through Amazon SES
type SESChannel struct {
	client           SESAPI
	fromEmail        string
	configurationSet string
}

// NewSESChannelFromConfig builds the SES client from the default AWS credential chain
func NewSESChannelFromConfig(ctx context.Context, cfg config.EmailConfig) (*SESChannel, error) {
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("SES_FROM_EMAIL is not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESChannel(sesv2.NewFromConfig(awsCfg), cfg), nil
}

func NewSESChannel(client SESAPI, cfg config.EmailConfig) *SESChannel {
	return &SESChannel{client: client, fromEmail: cfg.FromEmail, configurationSet: cfg.ConfigurationSet}
}

func (s *SESChannel) Send(ctx context.Context, contact *models.Contact, message models.OutreachMessage, metadata map[string]string) models.DeliveryResult {
	if contact.Email == "" {
		return models.DeliveryResult{Err: fmt.Errorf("%w: contact %d has no email", ErrMissingAddress, contact.ID)}
	}
	from := s.fromEmail
	if message.Sender != "" {
		from = message.Sender
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{contact.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(message.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(message.Body)},
				},
			},
		},
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}
	if key := metadata["idempotency_key"]; key != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("attempt"), Value: aws.String(sanitizeTag(key))}}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return models.DeliveryResult{Err: fmt.Errorf("ses send: %w", err), Retryable: sesRetryable(err)}
	}
	return models.DeliveryResult{ProviderRef: aws.ToString(out.MessageId)}
}

// sesRetryable reports whether an SES error is worth retrying with the same attempt
func sesRetryable(err error) bool {
	var (
		rejected   *types.MessageRejected
		badRequest *types.BadRequestException
		notFound   *types.NotFoundException
		unverified *types.MailFromDomainNotVerifiedException
	)
	if errors.As(err, &rejected) || errors.As(err, &badRequest) || errors.As(err, &notFound) || errors.As(err, &unverified) {
		return false
	}
	// Throttling, paused sending, network failures and timeouts
	return true
}

// sanitizeTag keeps the characters SES allows in tag values
func sanitizeTag(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
