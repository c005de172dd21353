package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"
)

// SESAPI is the subset of the SES client used by the dispatcher.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESDispatcher sends credential notifications through AWS SES.
type SESDispatcher struct {
	client SESAPI
	sender string
}

// NewSESDispatcher creates a dispatcher sending from the given address.
func NewSESDispatcher(client SESAPI, sender string) *SESDispatcher {
	return &SESDispatcher{client: client, sender: sender}
}

// SendCredentialProvisionedEmail sends the temporary credential to the
// recipient. Failures are reported in the result, never escalated by
// callers.
func (d *SESDispatcher) SendCredentialProvisionedEmail(ctx context.Context, notice CredentialNotice) (*SendResult, error) {
	auditID := uuid.New().String()

	if d.client == nil || d.sender == "" {
		return &SendResult{Skipped: true, Reason: "sender not configured", AuditID: auditID}, nil
	}
	if notice.Recipient == "" {
		return &SendResult{Skipped: true, Reason: "no recipient", AuditID: auditID}, nil
	}

	subject := "Your account credentials"
	if notice.DisplayContext != "" {
		subject = fmt.Sprintf("Your %s account credentials", notice.DisplayContext)
	}
	body := fmt.Sprintf(
		"An account has been provisioned for %s.\n\nTemporary password: %s\n\nYou will be asked to change it on first sign-in.\n",
		notice.Recipient, notice.TemporaryPassword,
	)

	out, err := d.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.sender),
		Destination: &types.Destination{
			ToAddresses: []string{notice.Recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return &SendResult{Reason: err.Error(), AuditID: auditID}, err
	}

	return &SendResult{
		Sent:      true,
		MessageID: aws.ToString(out.MessageId),
		AuditID:   auditID,
	}, nil
}
