package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESMailer sends password-reset emails using AWS SES
type AWSSESMailer struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESMailer creates a new AWS SES mailer
func NewAWSSESMailer(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESMailer{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendPasswordResetEmail sends a reset link to the account's address
func (s *AWSSESMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	expiresIn := time.Until(expiresAt).Round(time.Minute)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body>
    <p>A password reset was requested for your account.</p>
    <p><a href="%s">Reset your password</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p>This link will expire in %s and can be used once.</p>
    <p>If you did not request a reset, you can ignore this email. Your password will not change.</p>
</body>
</html>
`, resetLink, resetLink, expiresIn)

	textBody := fmt.Sprintf(`A password reset was requested for your account.

%s

This link will expire in %s and can be used once.

If you did not request a reset, you can ignore this email. Your password will not change.
`, resetLink, expiresIn)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Reset your password"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	s.logger.Info("password reset email sent")
	return nil
}

// NoopMailer is used when email delivery is not configured. The reset token
// still lands in the database; operators can deliver it out of band.
type NoopMailer struct {
	logger *slog.Logger
}

// NewNoopMailer creates a mailer that only logs
func NewNoopMailer(logger *slog.Logger) *NoopMailer {
	return &NoopMailer{logger: logger}
}

// SendPasswordResetEmail logs the attempt and drops the message
func (s *NoopMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("email delivery disabled, skipping reset email")
	return nil
}
