package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/voltlake/go-aws/awsconfig"
	"github.com/voltlake/go-aws/log"
	"github.com/voltlake/go-aws/utils"
)

const (
	defaultRetries = 3
	defaultTimeout = 120 * time.Second
	retryDelay     = time.Second
)

type InvokeOptions struct {
	// Retries bounds how many invocation attempts are made. Default 3.
	Retries int
	// Timeout bounds a single attempt. Default 120s.
	Timeout time.Duration
	// Region overrides AWS_REGION / the library default region.
	Region string
}

var (
	mu      sync.Mutex
	clients = map[string]*awslambda.Client{}
)

func getClient(ctx context.Context, region string) (*awslambda.Client, error) {
	region = awsconfig.Region(region)

	mu.Lock()
	defer mu.Unlock()

	if client, ok := clients[region]; ok {
		return client, nil
	}

	cfg, err := awsconfig.Get(ctx, region)
	if err != nil {
		return nil, err
	}

	client := awslambda.NewFromConfig(cfg)
	clients[region] = client

	return client, nil
}

// Invoke calls a Lambda function synchronously with a JSON payload and
// unmarshals the JSON response into T. Failed attempts are retried with a
// short delay; a function error reported by the service counts as a failed
// attempt.
func Invoke[T any](ctx context.Context, funcName string, payload any, options ...InvokeOptions) (T, error) {
	var result T

	opts := InvokeOptions{}
	if len(options) > 0 {
		opts = options[0]
	}
	utils.MergeObjects(&opts, InvokeOptions{Retries: defaultRetries, Timeout: defaultTimeout})

	client, err := getClient(ctx, opts.Region)
	if err != nil {
		return result, fmt.Errorf("failed to create lambda client: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("failed to marshal payload to json: %w", err)
	}

	logger := log.FromContext(ctx)

	output, err := utils.Retry(ctx, opts.Retries, retryDelay, func(retryCount int) (*awslambda.InvokeOutput, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		out, err := client.Invoke(attemptCtx, &awslambda.InvokeInput{
			FunctionName: aws.String(funcName),
			Payload:      body,
		})
		if err != nil {
			logger.Errorf("Failed to invoke %s (attempt %d): %v", funcName, retryCount+1, err)
			return nil, err
		}

		if out.FunctionError != nil {
			err = fmt.Errorf("function %s returned error %s: %s", funcName, *out.FunctionError, string(out.Payload))
			logger.Errorf("%v (attempt %d)", err, retryCount+1)
			return nil, err
		}

		return out, nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to invoke %s: %w", funcName, err)
	}

	if len(output.Payload) == 0 {
		return result, nil
	}

	if err := json.Unmarshal(output.Payload, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal response from %s: %w", funcName, err)
	}

	return result, nil
}
