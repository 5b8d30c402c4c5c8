// Package notification escalates fatal run errors to an SNS topic.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/erp/catalogsync/internal/domain/integration"
	"go.uber.org/zap"
)

// SNS subjects are limited to 100 characters.
const maxSubjectLen = 100

// ErrMissingDefault is returned when the message map lacks a "default" body.
var ErrMissingDefault = errors.New("notification: message requires a default body")

// SNSAPI is the subset of the SNS client in use.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier implements integration.Notifier.
type SNSNotifier struct {
	api    SNSAPI
	logger *zap.Logger
}

// NewSNSNotifier wraps api.
func NewSNSNotifier(api SNSAPI, logger *zap.Logger) *SNSNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SNSNotifier{api: api, logger: logger.Named("notifier")}
}

// NewSNSClient builds an SNS client, honouring an endpoint override.
func NewSNSClient(cfg aws.Config, endpoint *string) *sns.Client {
	return sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

// Publish sends message as a per-protocol JSON structure to topic.
func (n *SNSNotifier) Publish(ctx context.Context, topic, subject string, message map[string]string) error {
	if topic == "" {
		return integration.ErrInvalidTarget
	}
	if _, ok := message["default"]; !ok {
		return ErrMissingDefault
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("notification: encode message: %w", err)
	}
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}

	input := &sns.PublishInput{
		TopicArn:         aws.String(topic),
		Message:          aws.String(string(body)),
		MessageStructure: aws.String("json"),
	}
	if subject != "" {
		input.Subject = aws.String(subject)
	}
	out, err := n.api.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("notification: publish to %s: %w", topic, err)
	}
	n.logger.Info("Failure notification published",
		zap.String("topic", topic),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}

var _ integration.Notifier = (*SNSNotifier)(nil)
