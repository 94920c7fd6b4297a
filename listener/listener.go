package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/voltlake/go-aws/awsconfig"
	"github.com/voltlake/go-aws/log"
	"github.com/voltlake/go-aws/metrics"
	"github.com/voltlake/go-aws/utils"
)

const (
	metricReceived   = "messages_received_total"
	metricDeleted    = "messages_deleted_total"
	metricFailures   = "message_failures_total"
	metricInFlight   = "messages_in_flight"
	metricHandleTime = "handler_duration_seconds"
)

// Listener continuously polls an SQS queue and dispatches decoded
// notifications to handlers, keeping at most Options.MaxInFlight messages
// processing at once. Messages are deleted only after a handler acknowledges
// them; messages redelivered more than MaxRetryCount times are deleted
// without processing.
type Listener struct {
	queueURL   string
	dispatcher Dispatcher
	options    Options
	client     SQSClient
	collector  *metrics.PrometheusCollector
	logger     log.LoggerInterface
}

// New validates the configuration and builds a Listener. No network call is
// made here; the SQS client is constructed lazily from the shared AWS config
// unless Options.Client is supplied.
func New(queueURL string, dispatcher Dispatcher, options ...Options) (*Listener, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("queue URL is required")
	}

	if err := dispatcher.validate(); err != nil {
		return nil, err
	}

	opts, err := getOptions(options...)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewPrometheusCollector(opts.Namespace)

	err = collector.RegisterCustomMetrics(
		metrics.CustomMetric{
			Name:        metricReceived,
			Description: "Messages received from the queue",
			Type:        metrics.Counter,
			Labels:      []string{"queue"},
		},
		metrics.CustomMetric{
			Name:        metricDeleted,
			Description: "Messages deleted from the queue, by reason (handled or poison)",
			Type:        metrics.Counter,
			Labels:      []string{"queue", "reason"},
		},
		metrics.CustomMetric{
			Name:        metricFailures,
			Description: "Messages left for redelivery, by reason (decode, unhandled_subject, handler or nack)",
			Type:        metrics.Counter,
			Labels:      []string{"queue", "reason"},
		},
		metrics.CustomMetric{
			Name:        metricInFlight,
			Description: "Messages currently being processed",
			Type:        metrics.Gauge,
			Labels:      []string{"queue"},
		},
		metrics.CustomMetric{
			Name:        metricHandleTime,
			Description: "Handler execution time in seconds",
			Type:        metrics.Histogram,
			Labels:      []string{"queue"},
			Buckets:     []float64{0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register listener metrics: %w", err)
	}

	return &Listener{
		queueURL:   queueURL,
		dispatcher: dispatcher,
		options:    opts,
		client:     opts.Client,
		collector:  collector,
		logger:     log.New(context.Background(), nil),
	}, nil
}

// MetricsHandler returns an http.Handler serving the listener's prometheus
// metrics.
func (l *Listener) MetricsHandler() interface{} {
	return l.collector.GetMetricsHandler()
}

func (l *Listener) initClient(ctx context.Context) error {
	if l.client != nil {
		return nil
	}

	cfg, err := awsconfig.Get(ctx, l.options.Region)
	if err != nil {
		return err
	}

	l.client = sqs.NewFromConfig(cfg)

	return nil
}

// Run polls and dispatches until ctx is cancelled. Receive failures end the
// loop with an error so process supervision can back off and restart; all
// per-message failures are contained and logged.
//
// On cancellation Run stops polling and waits up to Options.DrainTimeout for
// in-flight handlers before returning ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	if err := l.initClient(ctx); err != nil {
		return err
	}

	done := make(chan struct{}, l.options.MaxInFlight)
	inFlight := 0

	for {
		if ctx.Err() != nil {
			return l.drain(ctx, inFlight, done)
		}

		// Never ask for more messages than there is processing capacity for.
		want := l.options.MaxInFlight - inFlight

		if want > 0 {
			out, err := l.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(l.queueURL),
				MaxNumberOfMessages: int32(want),
				WaitTimeSeconds:     int32(l.options.WaitTimeSeconds),
				AttributeNames: []sqstypes.QueueAttributeName{
					sqstypes.QueueAttributeName(sqstypes.MessageSystemAttributeNameApproximateReceiveCount),
				},
			})

			if err != nil {
				if ctx.Err() != nil {
					return l.drain(ctx, inFlight, done)
				}
				return fmt.Errorf("failed to receive messages: %w", err)
			}

			for _, msg := range out.Messages {
				l.collector.IncrementCounter(ctx, metricReceived, l.labels(), 1)

				env, err := decodeEnvelope(msg)
				if err != nil {
					// The message stays queued and becomes visible again
					// after the visibility timeout.
					l.logger.ErrorFields("Dropping message with unusable envelope", map[string]any{
						"queue": l.queueURL,
						"error": err.Error(),
					})
					l.collector.IncrementCounter(ctx, metricFailures, l.failureLabels("decode"), 1)
					continue
				}

				inFlight++
				l.collector.SetGauge(ctx, metricInFlight, l.labels(), float64(inFlight))

				go func(env envelope) {
					defer func() { done <- struct{}{} }()
					l.process(ctx, env)
				}(env)
			}
		}

		if inFlight == 0 {
			continue
		}

		// First-completion race: block until one slot frees, then collect any
		// other completions without blocking so capacity refills immediately.
		select {
		case <-done:
			inFlight--
		case <-ctx.Done():
			return l.drain(ctx, inFlight, done)
		}

	drained:
		for inFlight > 0 {
			select {
			case <-done:
				inFlight--
			default:
				break drained
			}
		}

		l.collector.SetGauge(ctx, metricInFlight, l.labels(), float64(inFlight))
	}
}

// process handles one message from poison check to ack decision. Errors are
// logged and contained; they never propagate to the poll loop.
func (l *Listener) process(ctx context.Context, env envelope) {
	if env.receiveCount > *l.options.MaxRetryCount {
		l.logger.ErrorFields("Message exceeded the retry ceiling and will be deleted without processing", map[string]any{
			"queue":          l.queueURL,
			"message_id":     env.messageID,
			"receipt_handle": env.receiptHandle,
			"body":           env.body,
			"receive_count":  env.receiveCount,
		})
		l.deleteMessage(env.receiptHandle)
		l.collector.IncrementCounter(ctx, metricDeleted, l.deleteLabels("poison"), 1)
		return
	}

	msg, err := decodeNotification(env.body)
	if err != nil {
		l.logger.ErrorFields("Failed to decode message, leaving it for redelivery", map[string]any{
			"queue":      l.queueURL,
			"message_id": env.messageID,
			"error":      err.Error(),
		})
		l.collector.IncrementCounter(ctx, metricFailures, l.failureLabels("decode"), 1)
		return
	}

	handler, err := l.dispatcher.handler(msg.Subject)
	if err != nil {
		l.logger.ErrorFields("No handler for message, leaving it for redelivery", map[string]any{
			"queue":      l.queueURL,
			"message_id": env.messageID,
			"subject":    msg.Subject,
		})
		l.collector.IncrementCounter(ctx, metricFailures, l.failureLabels("unhandled_subject"), 1)
		return
	}

	start := time.Now()

	// A panicking handler counts as a failed one.
	ack, err := utils.TryReturn(func() (bool, error) {
		return handler(ctx, msg)
	})

	l.collector.ObserveHistogram(ctx, metricHandleTime, l.labels(), time.Since(start).Seconds())

	if err != nil {
		l.logger.ErrorFields("Message handler failed, leaving message for redelivery", map[string]any{
			"queue":      l.queueURL,
			"message_id": env.messageID,
			"subject":    msg.Subject,
			"error":      err.Error(),
		})
		l.collector.IncrementCounter(ctx, metricFailures, l.failureLabels("handler"), 1)
		return
	}

	if !ack {
		l.logger.DebugFields("Handler declined message, leaving it for redelivery", map[string]any{
			"queue":      l.queueURL,
			"message_id": env.messageID,
		})
		l.collector.IncrementCounter(ctx, metricFailures, l.failureLabels("nack"), 1)
		return
	}

	l.deleteMessage(env.receiptHandle)
	l.collector.IncrementCounter(ctx, metricDeleted, l.deleteLabels("handled"), 1)
}

// deleteMessage acknowledges one delivery. It uses a background context so an
// ack still lands while the listener is shutting down; a failed delete is
// logged and the message simply redelivers later.
func (l *Listener) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(l.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})

	if err != nil {
		l.logger.Errorf("Failed to delete message from queue %s: %v", l.queueURL, err)
	}
}

func (l *Listener) drain(ctx context.Context, inFlight int, done chan struct{}) error {
	if inFlight > 0 {
		l.logger.Infof("Shutting down, waiting for %d in-flight handlers", inFlight)

		timer := time.NewTimer(l.options.DrainTimeout)
		defer timer.Stop()

		for inFlight > 0 {
			select {
			case <-done:
				inFlight--
			case <-timer.C:
				l.logger.Warning(fmt.Sprintf("Drain timeout reached with %d handlers still in flight", inFlight))
				return ctx.Err()
			}
		}
	}

	return ctx.Err()
}

func (l *Listener) labels() map[string]string {
	return map[string]string{"queue": l.queueURL}
}

func (l *Listener) deleteLabels(reason string) map[string]string {
	return map[string]string{"queue": l.queueURL, "reason": reason}
}

func (l *Listener) failureLabels(reason string) map[string]string {
	return map[string]string{"queue": l.queueURL, "reason": reason}
}
