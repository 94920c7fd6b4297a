package awsconfig

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/voltlake/go-aws/env"
)

const DefaultRegion = "eu-west-1"

var (
	mu      sync.Mutex
	configs = map[string]aws.Config{}
)

// Region resolves the effective region: an explicit value wins, otherwise
// AWS_REGION from the environment, otherwise DefaultRegion.
func Region(region string) string {
	if region != "" {
		return region
	}
	return env.GetOrDefault("AWS_REGION", DefaultRegion)
}

// Get returns the shared aws.Config for the given region, loading it on first
// use. The lock ensures exactly one config (and its credential chain) is
// created per region even under concurrent first-use.
func Get(ctx context.Context, region string) (aws.Config, error) {
	region = Region(region)

	mu.Lock()
	defer mu.Unlock()

	if cfg, ok := configs[region]; ok {
		return cfg, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	configs[region] = cfg

	return cfg, nil
}

// Reset drops all cached configs. Subsequent Get calls reload from the
// default credential chain.
func Reset() {
	mu.Lock()
	configs = map[string]aws.Config{}
	mu.Unlock()
}
