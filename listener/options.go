package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/voltlake/go-aws/awsconfig"
	"github.com/voltlake/go-aws/utils"
)

// SQSClient is the subset of the SQS API the listener uses. It is satisfied
// by *sqs.Client and by test doubles.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Options configures a Listener.
//
// MaxInFlight must be between 1 and 10 (SQS caps a single receive call at 10
// messages); a value outside that range fails validation before any network
// call. When no Options value is supplied at all, defaults apply.
type Options struct {
	// MaxInFlight bounds the number of concurrently processing messages.
	MaxInFlight int
	// WaitTimeSeconds is the long-poll wait on each receive call. Default 2.
	WaitTimeSeconds int
	// MaxRetryCount is the redelivery ceiling: a message received more than
	// MaxRetryCount times is deleted without invoking a handler. Default 3.
	// A pointer so an explicit zero is distinguishable from unset.
	MaxRetryCount *int
	// Region overrides AWS_REGION / the library default region.
	Region string
	// DrainTimeout bounds how long Run waits for in-flight handlers after
	// its context is cancelled. Default 30s.
	DrainTimeout time.Duration
	// Namespace is the prometheus namespace for listener metrics.
	Namespace string
	// Client overrides the SQS client, mainly for tests.
	Client SQSClient
}

const (
	defaultWaitTimeSeconds = 2
	defaultMaxRetryCount   = 3
	defaultDrainTimeout    = 30 * time.Second
	defaultNamespace       = "sqs_listener"

	// SQS rejects ReceiveMessage calls asking for more than 10 messages.
	maxReceiveBatch = 10
)

func getOptions(options ...Options) (Options, error) {
	defaults := Options{
		MaxInFlight:     1,
		WaitTimeSeconds: defaultWaitTimeSeconds,
		DrainTimeout:    defaultDrainTimeout,
		Namespace:       defaultNamespace,
		Region:          awsconfig.Region(""),
	}

	if len(options) == 0 {
		retries := defaultMaxRetryCount
		defaults.MaxRetryCount = &retries
		return defaults, nil
	}

	opts := options[0]

	// MaxInFlight is deliberately not defaulted: an explicit Options value
	// must carry a valid bound.
	if opts.MaxInFlight < 1 || opts.MaxInFlight > maxReceiveBatch {
		return Options{}, fmt.Errorf("MaxInFlight must be between 1 and %d, got %d", maxReceiveBatch, opts.MaxInFlight)
	}

	opts.WaitTimeSeconds = utils.IntOrDefault(opts.WaitTimeSeconds, defaultWaitTimeSeconds)
	opts.DrainTimeout = utils.DurationOrDefault(opts.DrainTimeout, defaultDrainTimeout)
	opts.Namespace = utils.StringOrDefault(opts.Namespace, defaultNamespace)
	opts.Region = awsconfig.Region(opts.Region)

	if opts.MaxRetryCount == nil {
		retries := defaultMaxRetryCount
		opts.MaxRetryCount = &retries
	} else if *opts.MaxRetryCount < 0 {
		return Options{}, fmt.Errorf("MaxRetryCount must not be negative, got %d", *opts.MaxRetryCount)
	}

	return opts, nil
}
