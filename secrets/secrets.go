package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/voltlake/go-aws/awsconfig"
	"github.com/voltlake/go-aws/utils"
)

var (
	mu      sync.Mutex
	clients = map[string]*secretsmanager.Client{}
)

func getClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
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

	client := secretsmanager.NewFromConfig(cfg)
	clients[region] = client

	return client, nil
}

// Get fetches a secret value from Secrets Manager. String secrets are
// returned as-is; binary secrets are returned as the raw bytes converted to a
// string.
func Get(ctx context.Context, secretName string, region ...string) (string, error) {
	regionName := ""
	if len(region) > 0 {
		regionName = region[0]
	}

	client, err := getClient(ctx, regionName)
	if err != nil {
		return "", fmt.Errorf("failed to create secrets manager client: %w", err)
	}

	resp, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}

	if resp.SecretString != nil {
		return *resp.SecretString, nil
	}

	return string(resp.SecretBinary), nil
}

// GetParsed fetches a secret and unmarshals its JSON payload into T.
func GetParsed[T any](ctx context.Context, secretName string, region ...string) (T, error) {
	var parsed T

	secret, err := Get(ctx, secretName, region...)
	if err != nil {
		return parsed, err
	}

	parsed, err = utils.ParseJson[T](secret)
	if err != nil {
		return parsed, fmt.Errorf("failed to parse secret %s as json: %w", secretName, err)
	}

	return parsed, nil
}
