package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/voltlake/go-aws/awsconfig"
)

type Config struct {
	// Region overrides AWS_REGION / the library default region.
	Region string
}

// Topic wraps one SNS topic. CreateTopic is idempotent on the service side,
// so init both creates the topic when missing and resolves its ARN.
type Topic struct {
	name   string
	region string
	arn    string
	client *sns.Client
	mu     sync.Mutex
}

func New(topicName string, config ...Config) *Topic {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Topic{
		name:   topicName,
		region: awsconfig.Region(cfg.Region),
	}
}

func (t *Topic) init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}

	cfg, err := awsconfig.Get(ctx, t.region)
	if err != nil {
		return err
	}

	client := sns.NewFromConfig(cfg)

	resp, err := client.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String(t.name),
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", t.name, err)
	}

	t.client = client
	t.arn = *resp.TopicArn

	return nil
}

// ARN returns the topic ARN, empty until the first publish resolves it.
func (t *Topic) ARN() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arn
}

// Publish sends a JSON message with the given subject. The message is
// wrapped in the {"default": …} json message structure so queue subscribers
// receive the double-encoded notification body.
func (t *Topic) Publish(ctx context.Context, subject string, message any) error {
	if err := t.init(ctx); err != nil {
		return err
	}

	inner, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to json: %w", err)
	}

	wrapped, err := json.Marshal(map[string]string{"default": string(inner)})
	if err != nil {
		return fmt.Errorf("failed to wrap message: %w", err)
	}

	_, err = t.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(t.arn),
		Subject:          aws.String(subject),
		Message:          aws.String(string(wrapped)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", t.name, err)
	}

	return nil
}
