package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"eventportal/internal/adapters/awsconfig"
	"eventportal/internal/domain"
)

const charset = "UTF-8"

// MailerConfig selects the delivery backend. Provider "ses" sends through Amazon SES;
// "noop" (or empty) only logs.
type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         awsconfig.Settings
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func NewMailer(config MailerConfig, logger *slog.Logger) (domain.Mailer, error) {
	switch config.Provider {
	case "noop", "":
		return &noopMailer{logger: logger}, nil
	case "ses":
		source, err := sourceAddress(config.FromName, config.FromAddress)
		if err != nil {
			return nil, err
		}
		return &sesMailer{
			client: ses.NewFromConfig(awsconfig.New(config.SES, logger)),
			source: source,
			logger: logger,
		}, nil
	}
	logger.Warn("unknown email provider, falling back to noop", "provider", config.Provider)
	return &noopMailer{logger: logger}, nil
}

// sourceAddress renders the From header, quoting the display name when present.
func sourceAddress(name, address string) (string, error) {
	if address == "" {
		return "", errors.New("email: from address is required for the ses provider")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return "", fmt.Errorf("email: invalid from address %q: %w", address, err)
	}
	if name == "" {
		return parsed.Address, nil
	}
	return (&mail.Address{Name: name, Address: parsed.Address}).String(), nil
}

type sesMailer struct {
	client sesAPI
	source string
	logger *slog.Logger
}

func content(s string) *types.Content {
	if s == "" {
		return nil
	}
	return &types.Content{Data: aws.String(s), Charset: aws.String(charset)}
}

func (m *sesMailer) Send(ctx context.Context, to, subject, html, text string) error {
	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.source),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: content(subject),
			Body:    &types.Body{Html: content(html), Text: content(text)},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	m.logger.InfoContext(ctx, "email sent", "provider", "ses", "message_id", aws.ToString(out.MessageId))
	return nil
}

type noopMailer struct {
	logger *slog.Logger
}

func (n *noopMailer) Send(ctx context.Context, to, subject, _, _ string) error {
	n.logger.InfoContext(ctx, "email not sent, noop provider", "to", to, "subject", subject)
	return nil
}
