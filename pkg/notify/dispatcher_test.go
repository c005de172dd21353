package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	sendErr error
	input   *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESDispatcherSends(t *testing.T) {
	client := &fakeSES{}
	dispatcher := NewSESDispatcher(client, "noreply@example.com")

	result, err := dispatcher.SendCredentialProvisionedEmail(context.Background(), CredentialNotice{
		Recipient:         "ada@example.com",
		TemporaryPassword: "Temp123!",
		DisplayContext:    "Acme",
	})
	require.NoError(t, err)

	assert.True(t, result.Sent)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.NotEmpty(t, result.AuditID)

	require.NotNil(t, client.input)
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(client.input.Content.Simple.Subject.Data), "Acme")
	assert.Contains(t, aws.ToString(client.input.Content.Simple.Body.Text.Data), "Temp123!")
}

func TestSESDispatcherUnconfiguredSkips(t *testing.T) {
	dispatcher := NewSESDispatcher(nil, "")

	result, err := dispatcher.SendCredentialProvisionedEmail(context.Background(), CredentialNotice{
		Recipient: "ada@example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "sender not configured", result.Reason)
}

func TestSESDispatcherNoRecipientSkips(t *testing.T) {
	dispatcher := NewSESDispatcher(&fakeSES{}, "noreply@example.com")

	result, err := dispatcher.SendCredentialProvisionedEmail(context.Background(), CredentialNotice{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestSESDispatcherFailureIsReported(t *testing.T) {
	client := &fakeSES{sendErr: errors.New("mailbox quota exceeded")}
	dispatcher := NewSESDispatcher(client, "noreply@example.com")

	result, err := dispatcher.SendCredentialProvisionedEmail(context.Background(), CredentialNotice{
		Recipient: "ada@example.com",
	})
	require.Error(t, err)
	assert.False(t, result.Sent)
	assert.Contains(t, result.Reason, "quota")
	assert.NotEmpty(t, result.AuditID)
}

func TestNoopDispatcherSkips(t *testing.T) {
	result, err := NoopDispatcher{}.SendCredentialProvisionedEmail(context.Background(), CredentialNotice{
		Recipient: "ada@example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.AuditID)
}
