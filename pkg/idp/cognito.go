package idp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the Cognito identity-provider client used by
// the adapter.
type CognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cognitoidentityprovider.AdminUpdateUserAttributesInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminUpdateUserAttributesOutput, error)
	AdminDeleteUser(ctx context.Context, params *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
	AdminGetUser(ctx context.Context, params *cognitoidentityprovider.AdminGetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminGetUserOutput, error)
}

// CognitoAdapter implements Adapter against an AWS Cognito user pool.
type CognitoAdapter struct {
	client     CognitoAPI
	userPoolID string
}

// NewCognitoAdapter creates an adapter for the given user pool. An empty
// pool id yields an unconfigured adapter; every call then reports skipped.
func NewCognitoAdapter(client CognitoAPI, userPoolID string) *CognitoAdapter {
	return &CognitoAdapter{client: client, userPoolID: userPoolID}
}

// IsConfigured reports whether a user pool is wired up.
func (a *CognitoAdapter) IsConfigured() bool {
	return a.client != nil && a.userPoolID != ""
}

// CreateUser provisions the principal in the user pool. If the email already
// exists upstream the attributes are updated instead and the result reports
// OutcomeUpdated with the existing subject id.
func (a *CognitoAdapter) CreateUser(ctx context.Context, profile Profile) (*ProvisionResult, error) {
	if !a.IsConfigured() {
		return &ProvisionResult{Outcome: OutcomeSkipped, Reason: "identity provider not configured"}, nil
	}

	tempPassword, err := generateTemporaryPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate temporary password: %w", err)
	}

	out, err := a.client.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId:        aws.String(a.userPoolID),
		Username:          aws.String(profile.Email),
		TemporaryPassword: aws.String(tempPassword),
		MessageAction:     types.MessageActionTypeSuppress,
		UserAttributes:    profileAttributes(profile),
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return a.updateExisting(ctx, profile)
		}
		return nil, &ProviderUnavailableError{Op: "create user", Err: err}
	}

	result := &ProvisionResult{
		Outcome:           OutcomeCreated,
		TemporaryPassword: tempPassword,
	}
	if out.User != nil {
		result.ExternalSubject = subjectFromAttributes(out.User.Attributes)
	}
	return result, nil
}

// UpdateUser syncs mutable attributes to the user pool.
func (a *CognitoAdapter) UpdateUser(ctx context.Context, profile Profile) error {
	if !a.IsConfigured() {
		return nil
	}

	_, err := a.client.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(a.userPoolID),
		Username:       aws.String(profile.Email),
		UserAttributes: profileAttributes(profile),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("upstream principal %s not found", profile.Email)
		}
		return &ProviderUnavailableError{Op: "update user", Err: err}
	}
	return nil
}

// DeleteUser removes the upstream principal. A principal already absent
// upstream is reported as skipped, not an error.
func (a *CognitoAdapter) DeleteUser(ctx context.Context, email string) (*DeleteResult, error) {
	if !a.IsConfigured() {
		return &DeleteResult{Skipped: true, Reason: "identity provider not configured"}, nil
	}

	_, err := a.client.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(a.userPoolID),
		Username:   aws.String(email),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return &DeleteResult{Skipped: true, Reason: "not found upstream"}, nil
		}
		return nil, &ProviderUnavailableError{Op: "delete user", Err: err}
	}
	return &DeleteResult{Deleted: true}, nil
}

func (a *CognitoAdapter) updateExisting(ctx context.Context, profile Profile) (*ProvisionResult, error) {
	_, err := a.client.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(a.userPoolID),
		Username:       aws.String(profile.Email),
		UserAttributes: profileAttributes(profile),
	})
	if err != nil {
		return nil, &ProviderUnavailableError{Op: "update existing user", Err: err}
	}

	existing, err := a.client.AdminGetUser(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(a.userPoolID),
		Username:   aws.String(profile.Email),
	})
	if err != nil {
		return nil, &ProviderUnavailableError{Op: "lookup existing user", Err: err}
	}

	return &ProvisionResult{
		Outcome:         OutcomeUpdated,
		ExternalSubject: subjectFromAttributes(existing.UserAttributes),
		Reason:          "email already registered upstream",
	}, nil
}

func profileAttributes(profile Profile) []types.AttributeType {
	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(profile.Email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	if profile.FirstName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("given_name"), Value: aws.String(profile.FirstName)})
	}
	if profile.LastName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("family_name"), Value: aws.String(profile.LastName)})
	}
	if profile.AccountID != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("custom:account_id"), Value: aws.String(profile.AccountID)})
	}
	return attrs
}

func subjectFromAttributes(attrs []types.AttributeType) string {
	for _, attr := range attrs {
		if aws.ToString(attr.Name) == "sub" {
			return aws.ToString(attr.Value)
		}
	}
	return ""
}

const (
	passwordLength  = 16
	passwordCharset = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%"
)

// generateTemporaryPassword produces a random password satisfying the pool's
// default complexity policy.
func generateTemporaryPassword() (string, error) {
	buf := make([]byte, passwordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordCharset))))
		if err != nil {
			return "", err
		}
		buf[i] = passwordCharset[n.Int64()]
	}
	// Guarantee one of each required class.
	buf[0] = 'a'
	buf[1] = 'A'
	buf[2] = '7'
	buf[3] = '!'
	return string(buf), nil
}
