package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/voltlake/go-aws/awsconfig"
	"github.com/voltlake/go-aws/utils"
)

// Queue wraps one SQS queue for sending, receiving and deleting messages,
// plus one-shot provisioning via SubscribeTopic. The underlying client is
// created on first use; the mutex ensures a single client is built even under
// concurrent first-use.
type Queue struct {
	name   string
	url    string
	region string
	client *sqs.Client
	mu     sync.Mutex
}

func New(queueName string, config ...Config) *Queue {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Queue{
		name:   queueName,
		url:    cfg.URL,
		region: awsconfig.Region(cfg.Region),
	}
}

func (q *Queue) init(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.client != nil {
		return nil
	}

	cfg, err := awsconfig.Get(ctx, q.region)
	if err != nil {
		return err
	}

	q.client = sqs.NewFromConfig(cfg)

	if q.url == "" {
		resp, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(q.name),
		})
		if err != nil {
			q.client = nil
			return fmt.Errorf("failed to get queue URL for %s: %w", q.name, err)
		}
		q.url = *resp.QueueUrl
	}

	return nil
}

// URL returns the resolved queue URL, empty until the first operation or
// SubscribeTopic resolves it.
func (q *Queue) URL() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.url
}

// Send publishes a message to the queue. The payload must be serializable to
// JSON.
func (q *Queue) Send(ctx context.Context, payload any) error {
	if err := q.init(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload to json: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Receive consumes up to options.MaxMessages messages, long-polling for
// options.WaitTimeSeconds. The receive count attribute is always requested so
// consumers can apply retry ceilings.
func (q *Queue) Receive(ctx context.Context, options ...ReceiveOptions) ([]Message, error) {
	if err := q.init(ctx); err != nil {
		return nil, err
	}

	opts := ReceiveOptions{MaxMessages: 1}
	if len(options) > 0 {
		opts = options[0]
		opts.MaxMessages = utils.IntOrDefault(opts.MaxMessages, 1)
	}

	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(opts.MaxMessages),
		WaitTimeSeconds:     int32(opts.WaitTimeSeconds),
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeName(sqstypes.MessageSystemAttributeNameApproximateReceiveCount),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]Message, len(resp.Messages))
	for i, msg := range resp.Messages {
		receiveCount := 0
		if countStr, ok := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if count, err := strconv.Atoi(countStr); err == nil {
				receiveCount = count
			}
		}

		messages[i] = Message{
			MessageID:     aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			ReceiveCount:  receiveCount,
			ReceivedAt:    time.Now(),
		}
	}

	return messages, nil
}

// Delete removes one delivery from the queue. Safe to call once per
// successfully processed message; deleting an already-deleted message is a
// no-op on the service side.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	if err := q.init(ctx); err != nil {
		return err
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// Count returns the approximate number of visible messages in the queue.
func (q *Queue) Count(ctx context.Context) (int, error) {
	if err := q.init(ctx); err != nil {
		return 0, err
	}

	resp, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.url),
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get queue attributes: %w", err)
	}

	return parseMessageCount(resp.Attributes)
}

func parseMessageCount(attrs map[string]string) (int, error) {
	countStr := attrs[string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)]
	if countStr == "" {
		return 0, errors.New("queue attribute not found")
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid ApproximateNumberOfMessages %q: %w", countStr, err)
	}

	return count, nil
}

// SubscribeTopic provisions the queue end to end: creates the queue if
// needed, grants the topic permission to deliver to it and subscribes the
// queue to the topic. Intended as one-time setup, not a hot path.
func (q *Queue) SubscribeTopic(ctx context.Context, topicName string) error {
	cfg, err := awsconfig.Get(ctx, q.region)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.client == nil {
		q.client = sqs.NewFromConfig(cfg)
	}
	q.mu.Unlock()

	created, err := q.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(q.name),
	})
	if err != nil {
		return fmt.Errorf("failed to create queue %s: %w", q.name, err)
	}

	q.mu.Lock()
	q.url = *created.QueueUrl
	q.mu.Unlock()

	attrs, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       created.QueueUrl,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return fmt.Errorf("failed to get queue attributes: %w", err)
	}

	queueArn := attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]

	snsClient := sns.NewFromConfig(cfg)

	topic, err := snsClient.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String(topicName),
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topicName, err)
	}

	policy, changed, err := mergeQueuePolicy(
		attrs.Attributes[string(sqstypes.QueueAttributeNamePolicy)],
		queueArn,
		*topic.TopicArn,
	)
	if err != nil {
		return err
	}

	if changed {
		_, err = q.client.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
			QueueUrl: created.QueueUrl,
			Attributes: map[string]string{
				string(sqstypes.QueueAttributeNamePolicy): policy,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to set queue policy: %w", err)
		}
	}

	_, err = snsClient.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: topic.TopicArn,
		Protocol: aws.String("sqs"),
		Endpoint: aws.String(queueArn),
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe queue to topic %s: %w", topicName, err)
	}

	return nil
}
