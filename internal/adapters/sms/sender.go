package sms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"eventportal/internal/adapters/awsconfig"
	"eventportal/internal/domain"
)

// SenderConfig holds configuration for creating an SMS sender.
type SenderConfig struct {
	Provider string
	SenderID string
	SNS      awsconfig.Settings
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewSender creates an SMS sender. Provider "sns" uses AWS SNS; "noop" or unknown logs instead of sending.
func NewSender(config SenderConfig, logger *slog.Logger) domain.SMSSender {
	switch config.Provider {
	case "sns":
		return &snsSender{
			client:   sns.NewFromConfig(awsconfig.New(config.SNS, logger)),
			senderID: config.SenderID,
			logger:   logger,
		}
	case "noop", "":
		return &noopSender{logger: logger}
	default:
		logger.Warn("unknown sms provider, using noop", "provider", config.Provider)
		return &noopSender{logger: logger}
	}
}

type snsSender struct {
	client   snsAPI
	senderID string
	logger   *slog.Logger
}

func (s *snsSender) Send(ctx context.Context, to, message string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to send sms via SNS: %w", err)
	}
	s.logger.InfoContext(ctx, "sms sent via SNS", "message_id", aws.ToString(out.MessageId))
	return nil
}

type noopSender struct {
	logger *slog.Logger
}

// Send logs the recipient only; the message body carries a one-time code.
func (n *noopSender) Send(ctx context.Context, to, message string) error {
	n.logger.InfoContext(ctx, "sms would be sent (noop)", "to", to, "length", len(message))
	return nil
}
