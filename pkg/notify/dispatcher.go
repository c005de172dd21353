package notify

import (
	"context"

	"github.com/google/uuid"
)

// CredentialNotice carries a freshly issued temporary credential to its
// recipient.
type CredentialNotice struct {
	Recipient         string
	TemporaryPassword string
	DisplayContext    string // account or enterprise name shown in the mail
}

// SendResult is the tagged outcome of a dispatch attempt.
type SendResult struct {
	Sent      bool   `json:"sent"`
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	AuditID   string `json:"audit_id,omitempty"`
}

// Dispatcher sends credential notifications.
type Dispatcher interface {
	SendCredentialProvisionedEmail(ctx context.Context, notice CredentialNotice) (*SendResult, error)
}

// NoopDispatcher skips every notification. Used when no mail transport is
// configured.
type NoopDispatcher struct{}

// SendCredentialProvisionedEmail records the notice as skipped.
func (NoopDispatcher) SendCredentialProvisionedEmail(ctx context.Context, notice CredentialNotice) (*SendResult, error) {
	return &SendResult{
		Skipped: true,
		Reason:  "notification transport not configured",
		AuditID: uuid.New().String(),
	}, nil
}
