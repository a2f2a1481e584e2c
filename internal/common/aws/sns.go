// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Alert is an operator-facing notification. It may carry internal details and
// must never be shown to end users.
type Alert struct {
	Subject  string                 `json:"subject"`
	Code     string                 `json:"code"`
	Details  string                 `json:"details,omitempty"`
	ThreadID string                 `json:"threadId,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Alerter publishes operator alerts.
type Alerter interface {
	PublishAlert(ctx context.Context, alert Alert) error
}

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes alerts to a single topic.
type SNSClient struct {
	client   snsPublisher
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func (s *SNSClient) PublishAlert(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	subject := alert.Subject
	if len(subject) > 100 {
		subject = subject[:100]
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// NoopAlerter drops alerts; used when no topic is configured.
type NoopAlerter struct{}

func (NoopAlerter) PublishAlert(context.Context, Alert) error { return nil }
